// Package epubtest builds small EPUB archives for tests.
package epubtest

import (
	"archive/zip"
	"fmt"
	"html"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
)

// Chapter is a content document listed in both manifest and spine.
type Chapter struct {
	ID   string
	Href string // relative to the package document
	Body string // full markup; generated from Title when empty
	// Title is used when Body is empty.
	Title string
}

// NavPoint is one flat navigation entry.
type NavPoint struct {
	Label string
	Src   string
}

// Resource is an extra manifest item that is not in the spine.
type Resource struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
	Data       []byte
}

// Book describes an archive to write.
type Book struct {
	Title    string
	OPFDir   string // defaults to "OEBPS"; "-" puts the OPF at the root
	Chapters []Chapter
	// NCX entries are written to toc.ncx and referenced from the spine.
	NCX []NavPoint
	// Nav entries are written to an EPUB 3 nav.xhtml.
	Nav       []NavPoint
	Resources []Resource
	CoverID   string // EPUB 2 meta name="cover"
}

func (b Book) opfDir() string {
	switch b.OPFDir {
	case "":
		return "OEBPS"
	case "-":
		return ""
	default:
		return b.OPFDir
	}
}

// Write writes the book to dir/name and returns the full path.
func (b Book) Write(t testing.TB, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("epubtest: create %s: %v", p, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	put := func(name string, data []byte, method uint16) {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("epubtest: create entry %s: %v", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("epubtest: write entry %s: %v", name, err)
		}
	}

	dirPrefix := ""
	if d := b.opfDir(); d != "" {
		dirPrefix = d + "/"
	}
	put("mimetype", []byte("application/epub+zip"), zip.Store)
	put("META-INF/container.xml", []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%scontent.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`, dirPrefix)), zip.Deflate)
	put(dirPrefix+"content.opf", []byte(b.opf()), zip.Deflate)

	if len(b.NCX) > 0 {
		put(dirPrefix+"toc.ncx", []byte(ncxDocument(b.Title, b.NCX)), zip.Deflate)
	}
	if len(b.Nav) > 0 {
		put(dirPrefix+"nav.xhtml", []byte(navDocument(b.Nav)), zip.Deflate)
	}
	for _, c := range b.Chapters {
		body := c.Body
		if body == "" {
			body = XHTML(c.Title, "<h1>"+html.EscapeString(c.Title)+"</h1><p>Text of "+html.EscapeString(c.Title)+".</p>")
		}
		put(dirPrefix+pathUnescape(c.Href), []byte(body), zip.Deflate)
	}
	for _, r := range b.Resources {
		if r.Data == nil {
			continue
		}
		put(dirPrefix+r.Href, r.Data, zip.Deflate)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("epubtest: close zip: %v", err)
	}
	return p
}

func (b Book) opf() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">urn:uuid:epubtest</dc:identifier>
    <dc:title>` + html.EscapeString(b.Title) + `</dc:title>
    <dc:language>vi</dc:language>
`)
	if b.CoverID != "" {
		fmt.Fprintf(&sb, "    <meta name=\"cover\" content=\"%s\"/>\n", b.CoverID)
	}
	sb.WriteString("  </metadata>\n  <manifest>\n")
	if len(b.NCX) > 0 {
		sb.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
	}
	if len(b.Nav) > 0 {
		sb.WriteString(`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	}
	for _, c := range b.Chapters {
		fmt.Fprintf(&sb, "    <item id=%q href=%q media-type=\"application/xhtml+xml\"/>\n", c.ID, c.Href)
	}
	for _, r := range b.Resources {
		props := ""
		if r.Properties != "" {
			props = fmt.Sprintf(" properties=%q", r.Properties)
		}
		fmt.Fprintf(&sb, "    <item id=%q href=%q media-type=%q%s/>\n", r.ID, r.Href, r.MediaType, props)
	}
	sb.WriteString("  </manifest>\n")
	if len(b.NCX) > 0 {
		sb.WriteString("  <spine toc=\"ncx\">\n")
	} else {
		sb.WriteString("  <spine>\n")
	}
	for _, c := range b.Chapters {
		fmt.Fprintf(&sb, "    <itemref idref=%q/>\n", c.ID)
	}
	sb.WriteString("  </spine>\n</package>\n")
	return sb.String()
}

func ncxDocument(title string, points []NavPoint) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head><meta name="dtb:uid" content="urn:uuid:epubtest"/></head>
  <docTitle><text>` + html.EscapeString(title) + `</text></docTitle>
  <navMap>
`)
	for i, p := range points {
		fmt.Fprintf(&sb, "    <navPoint id=\"np%d\" playOrder=\"%d\"><navLabel><text>%s</text></navLabel><content src=%q/></navPoint>\n",
			i+1, i+1, html.EscapeString(p.Label), p.Src)
	}
	sb.WriteString("  </navMap>\n</ncx>\n")
	return sb.String()
}

func navDocument(points []NavPoint) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Nav</title></head>
<body>
<nav epub:type="toc"><ol>
`)
	for _, p := range points {
		fmt.Fprintf(&sb, "  <li><a href=%q>%s</a></li>\n", p.Src, html.EscapeString(p.Label))
	}
	sb.WriteString("</ol></nav>\n</body>\n</html>\n")
	return sb.String()
}

// XHTML wraps body markup in a minimal XHTML document.
func XHTML(title, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>` + html.EscapeString(title) + `</title></head>
<body>` + body + `</body>
</html>`
}

func pathUnescape(href string) string {
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	return path.Clean(href)
}
