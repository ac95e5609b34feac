package converter

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/otruyen/otruyen-api/internal/epub"
)

var (
	reHorizontalSpace = regexp.MustCompile(`[ \t]+`)
	reLineEdgeSpace   = regexp.MustCompile(`(?m)^ +| +$`)
	reExcessNewlines  = regexp.MustCompile(`\n{4,}`)
)

const (
	removedElements = "script, style, nav, header, footer, aside"
	headingElements = "h1, h2, h3, h4, h5, h6"
	blockChildren   = "p, h1, h2, h3, h4, h5, h6"
)

// ToPlainText converts chapter markup into readable plain text.
//
// Structural markers (blank lines around headings and paragraphs, bullets,
// quotes) are inserted as text nodes before the tags are stripped, so their
// order below matters. The result never contains four consecutive newlines.
func ToPlainText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(epub.ExpandSelfClosing(markup)))
	if err != nil {
		// The HTML5 parser only fails on reader errors.
		return normalizeWhitespace(markup)
	}

	doc.Find(removedElements).Remove()

	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.HasPrefix(href, "#") || a.HasClass("nav") {
			a.Remove()
		}
	})

	doc.Find(headingElements).Each(func(_ int, h *goquery.Selection) {
		surround(h, "\n\n", "\n")
	})

	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		surround(p, "", "\n\n")
	})

	doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		if strings.TrimSpace(div.Text()) != "" && div.Find(blockChildren).Length() == 0 {
			surround(div, "", "\n")
		}
	})

	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithNodes(textNode("\n"))
	})

	doc.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		surround(list, "\n", "\n")
	})
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		surround(li, "• ", "\n")
	})

	doc.Find("blockquote").Each(func(_ int, q *goquery.Selection) {
		surround(q, "\n\"", "\"\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return normalizeWhitespace(root.Text())
}

// normalizeWhitespace collapses horizontal runs, strips spaces at line edges,
// caps blank runs at two lines and trims the result.
func normalizeWhitespace(text string) string {
	text = reHorizontalSpace.ReplaceAllString(text, " ")
	text = reLineEdgeSpace.ReplaceAllString(text, "")
	text = reExcessNewlines.ReplaceAllString(text, "\n\n\n")
	return strings.TrimSpace(text)
}

func surround(s *goquery.Selection, before, after string) {
	if before != "" {
		s.BeforeNodes(textNode(before))
	}
	if after != "" {
		s.AfterNodes(textNode(after))
	}
}

func textNode(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}
