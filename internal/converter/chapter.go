package converter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/unicode"

	"github.com/otruyen/otruyen-api/internal/epub"
)

// ChapterContent is one chapter rendered for reading.
type ChapterContent struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	HTMLContent string   `json:"html_content"`
	Images      []string `json:"images,omitempty"`
}

var titleTags = []string{"h1", "h2", "h3", "title"}

// GetChapter reads the part an href points at and renders it.
func GetChapter(src PartSource, href string) (*ChapterContent, error) {
	part, ok := Locate(src, href)
	if !ok {
		return nil, newError(KindChapterNotFound, nil, "no part matches %q", href)
	}
	data, err := src.ReadPart(part.Name)
	if err != nil {
		return nil, partError(part.Name, err)
	}

	markup := decodeText(data)
	c := &ChapterContent{
		Title:       ExtractTitle(markup),
		Content:     ToPlainText(markup),
		HTMLContent: markup,
	}
	if doc, err := epub.LoadContent(part.Name, []byte(markup)); err == nil {
		c.Images = doc.ImageRefs
	}
	return c, nil
}

// ExtractTitle returns the text of the first non-empty h1, h2, h3 or
// title element, in that order of preference.
func ExtractTitle(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(epub.ExpandSelfClosing(markup)))
	if err != nil {
		return ""
	}
	for _, tag := range titleTags {
		var title string
		doc.Find(tag).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			title = strings.Join(strings.Fields(s.Text()), " ")
			return title == ""
		})
		if title != "" {
			return title
		}
	}
	return ""
}

// decodeText decodes UTF-8 leniently. A leading BOM is dropped and invalid
// sequences become U+FFFD.
func decodeText(data []byte) string {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(strings.TrimPrefix(string(data), "\ufeff"), "\ufffd")
	}
	return string(out)
}
