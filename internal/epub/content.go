package epub

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Content represents a parsed XHTML content part.
type Content struct {
	Name      string            // part name
	Document  *goquery.Document // parsed markup
	CSSLinks  []string          // referenced stylesheet part names
	ImageRefs []string          // referenced image part names
}

// LoadContent parses markup belonging to the part called name. Relative
// stylesheet and image references are resolved against name, so they come
// back in the same namespace as Archive part names.
func LoadContent(name string, content []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ExpandSelfClosing(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	c := &Content{
		Name:      name,
		Document:  doc,
		CSSLinks:  []string{},
		ImageRefs: []string{},
	}

	doc.Find("link[rel='stylesheet']").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			if resolved := resolveRef(name, href); resolved != "" {
				c.CSSLinks = append(c.CSSLinks, resolved)
			}
		}
	})

	seen := make(map[string]bool)
	addImage := func(ref string) {
		if resolved := resolveRef(name, ref); resolved != "" && !seen[resolved] {
			seen[resolved] = true
			c.ImageRefs = append(c.ImageRefs, resolved)
		}
	}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			addImage(src)
		}
	})
	doc.Find("image").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("xlink:href"); ok {
			addImage(href)
		} else if href, ok := s.Attr("href"); ok {
			addImage(href)
		}
	})

	return c, nil
}

// resolveRef resolves a markup reference against the part that contains it.
// External URLs, data URIs and fragment-only references resolve to "".
func resolveRef(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "data:") {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return ""
	}
	ref, _ = splitFragment(ref)
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = decoded
	}
	return resolvePath(path.Clean(base), ref)
}
