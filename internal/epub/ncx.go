package epub

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NCX represents the parsed navigation structure from an NCX or NAV document.
type NCX struct {
	UID       string
	Depth     int
	DocTitle  string
	NavPoints []NavPoint
}

// NavPoint represents a single navigation point in the table of contents.
type NavPoint struct {
	ID          string
	PlayOrder   int
	Label       string
	ContentPath string // fragment-free archive path
	Fragment    string // fragment identifier (without #)
	Children    []NavPoint
}

type ncxDocument struct {
	Head struct {
		Meta []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"head"`
	DocTitle struct {
		Text string `xml:"text"`
	} `xml:"docTitle"`
	NavMap struct {
		NavPoints []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	ID        string `xml:"id,attr"`
	PlayOrder string `xml:"playOrder,attr"`
	Label     struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

// LoadNCX loads the book's navigation. The EPUB 2 NCX referenced by the
// spine is preferred; the EPUB 3 navigation document is the fallback, also
// when the NCX is missing, empty or unparsable. It returns (nil, nil) when
// the book declares neither, and the NCX error when that was the only
// candidate.
func LoadNCX(r *Reader, opf *OPF) (*NCX, error) {
	var ncxErr error
	if opf.NCXPath != "" {
		ncx, err := readNCX(r, opf.NCXPath)
		if err == nil && len(ncx.NavPoints) > 0 {
			return ncx, nil
		}
		ncxErr = err
	}

	navPath := findNAVPath(opf)
	if navPath == "" {
		return nil, ncxErr
	}
	data, err := r.ReadFile(navPath)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, ncxErr
		}
		return nil, fmt.Errorf("failed to read NAV: %w", err)
	}
	return parseNAV(data, path.Dir(navPath))
}

func readNCX(r *Reader, name string) (*NCX, error) {
	data, err := r.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read NCX: %w", err)
	}
	return parseNCX(data, path.Dir(name))
}

// findNAVPath returns the archive path of the manifest item flagged with
// the "nav" property, or "".
func findNAVPath(opf *OPF) string {
	for _, id := range opf.ManifestOrder {
		if item := opf.Manifest[id]; item.HasProperty("nav") {
			return item.Href
		}
	}
	return ""
}

// parseNCX parses an NCX document. dir is the NCX file's archive directory.
func parseNCX(data []byte, dir string) (*NCX, error) {
	var doc ncxDocument
	if err := decodeXML(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	ncx := &NCX{DocTitle: strings.TrimSpace(doc.DocTitle.Text)}
	for _, m := range doc.Head.Meta {
		switch m.Name {
		case "dtb:uid":
			ncx.UID = m.Content
		case "dtb:depth":
			ncx.Depth, _ = strconv.Atoi(m.Content)
		}
	}
	ncx.NavPoints = convertNavPoints(doc.NavMap.NavPoints, dir)
	return ncx, nil
}

func convertNavPoints(points []ncxNavPoint, dir string) []NavPoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]NavPoint, 0, len(points))
	for _, p := range points {
		np := NavPoint{
			ID:    p.ID,
			Label: collapseSpace(p.Label.Text),
		}
		np.PlayOrder, _ = strconv.Atoi(strings.TrimSpace(p.PlayOrder))
		np.ContentPath, np.Fragment = resolveSrc(dir, p.Content.Src)
		np.Children = convertNavPoints(p.Children, dir)
		out = append(out, np)
	}
	return out
}

// parseNAV parses an EPUB 3 navigation document. Only the nav element whose
// epub:type includes "toc" is read. dir is the document's archive directory.
func parseNAV(data []byte, dir string) (*NCX, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ExpandSelfClosing(string(stripBOM(data)))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse NAV: %w", err)
	}

	ncx := &NCX{DocTitle: strings.TrimSpace(doc.Find("title").First().Text())}
	doc.Find("nav").EachWithBreak(func(_ int, nav *goquery.Selection) bool {
		if !hasEpubType(nav, "toc") {
			return true
		}
		counter := 0
		ncx.NavPoints = parseNavList(nav.Find("ol").First(), dir, &counter)
		return false
	})
	return ncx, nil
}

func parseNavList(ol *goquery.Selection, dir string, counter *int) []NavPoint {
	var out []NavPoint
	ol.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		*counter++
		np := NavPoint{
			ID:        "nav-" + strconv.Itoa(*counter),
			PlayOrder: *counter,
		}
		if a := li.ChildrenFiltered("a").First(); a.Length() > 0 {
			np.Label = collapseSpace(a.Text())
			href, _ := a.Attr("href")
			np.ContentPath, np.Fragment = resolveSrc(dir, href)
		} else {
			np.Label = collapseSpace(li.ChildrenFiltered("span").First().Text())
		}
		if child := li.ChildrenFiltered("ol").First(); child.Length() > 0 {
			np.Children = parseNavList(child, dir, counter)
		}
		out = append(out, np)
	})
	return out
}

func hasEpubType(s *goquery.Selection, token string) bool {
	val, _ := s.Attr("epub:type")
	for _, t := range strings.Fields(val) {
		if t == token {
			return true
		}
	}
	return false
}

// resolveSrc splits src into an archive path resolved against dir and a fragment.
func resolveSrc(dir, src string) (string, string) {
	p, fragment := splitFragment(strings.TrimSpace(src))
	if p == "" {
		return "", fragment
	}
	return joinPath(dir, p), fragment
}

// splitFragment splits a source path into the path and fragment identifier.
func splitFragment(src string) (path, fragment string) {
	if src == "" {
		return "", ""
	}
	parts := strings.SplitN(src, "#", 2)
	path = parts[0]
	if len(parts) == 2 {
		fragment = parts[1]
	}
	return path, fragment
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Flatten walks the navigation depth-first and returns every point that has
// both a label and a target. Points missing either are skipped; their
// children are still visited.
func (n *NCX) Flatten() []NavPoint {
	if n == nil {
		return nil
	}
	var out []NavPoint
	var walk func([]NavPoint)
	walk = func(points []NavPoint) {
		for _, p := range points {
			if p.Label != "" && p.ContentPath != "" {
				out = append(out, p)
			}
			walk(p.Children)
		}
	}
	walk(n.NavPoints)
	return out
}
