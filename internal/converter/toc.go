package converter

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/otruyen/otruyen-api/internal/epub"
)

// ChapterEntry is one resolved table-of-contents entry.
type ChapterEntry struct {
	Order int    `json:"order"`
	Title string `json:"title"`
	Href  string `json:"href"`
}

// ContentChapterEntry is a chapter that survived boilerplate filtering.
// Number is dense and 1-based; OriginalOrder points back into the
// unfiltered table of contents.
type ContentChapterEntry struct {
	Number        int    `json:"number"`
	Title         string `json:"title"`
	Href          string `json:"href"`
	OriginalOrder int    `json:"original_order"`
}

// TOCSource is the subset of an opened archive the resolver needs.
type TOCSource interface {
	Navigation() []epub.NavEntry
	ReadingOrder() []string
	PartForID(id string) (epub.Part, bool)
}

// ResolveTOC builds the ordered entry list for a book. Declared navigation
// wins; without it every reading-order item becomes an entry titled after
// its file name. The result may be empty.
func ResolveTOC(src TOCSource) []ChapterEntry {
	if nav := src.Navigation(); len(nav) > 0 {
		entries := make([]ChapterEntry, 0, len(nav))
		for i, n := range nav {
			entries = append(entries, ChapterEntry{Order: i + 1, Title: n.Title, Href: n.Href})
		}
		return entries
	}

	var entries []ChapterEntry
	for i, id := range src.ReadingOrder() {
		part, ok := src.PartForID(id)
		if !ok {
			continue
		}
		entries = append(entries, ChapterEntry{
			Order: i + 1,
			Title: titleFromFilename(part.Name),
			Href:  part.Name,
		})
	}
	return entries
}

// titleFromFilename turns "text/chapter_one.xhtml" into "Chapter One".
func titleFromFilename(name string) string {
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.ReplaceAll(base, "_", " ")
	// Casers keep state and must not be shared between goroutines.
	return cases.Title(language.Und).String(base)
}

var (
	// DefaultTitleKeywords mark front-matter entries by title.
	DefaultTitleKeywords = []string{
		"mục lục", "toc", "chào mừng", "welcome",
		"giới thiệu", "introduction", "table of contents",
	}
	// DefaultHrefPatterns mark front-matter entries by target document.
	DefaultHrefPatterns = []string{"toc.html", "welcome.html", "intro.html"}
)

// BoilerplateFilter drops front-matter entries from a table of contents.
// Matching is case-insensitive substring containment.
type BoilerplateFilter struct {
	titleKeywords []string
	hrefPatterns  []string
}

// NewBoilerplateFilter returns a filter for the given lists. Nil lists fall
// back to the defaults; empty non-nil lists disable that check.
func NewBoilerplateFilter(titleKeywords, hrefPatterns []string) *BoilerplateFilter {
	if titleKeywords == nil {
		titleKeywords = DefaultTitleKeywords
	}
	if hrefPatterns == nil {
		hrefPatterns = DefaultHrefPatterns
	}
	return &BoilerplateFilter{
		titleKeywords: lowerAll(titleKeywords),
		hrefPatterns:  lowerAll(hrefPatterns),
	}
}

// DefaultBoilerplateFilter uses the built-in keyword and pattern lists.
func DefaultBoilerplateFilter() *BoilerplateFilter {
	return NewBoilerplateFilter(nil, nil)
}

// IsBoilerplate reports whether an entry looks like front matter.
func (f *BoilerplateFilter) IsBoilerplate(e ChapterEntry) bool {
	title := strings.ToLower(e.Title)
	for _, kw := range f.titleKeywords {
		if kw != "" && strings.Contains(title, kw) {
			return true
		}
	}
	href := strings.ToLower(e.Href)
	for _, p := range f.hrefPatterns {
		if p != "" && strings.Contains(href, p) {
			return true
		}
	}
	return false
}

// Filter keeps content chapters in order and renumbers them from 1.
func (f *BoilerplateFilter) Filter(entries []ChapterEntry) []ContentChapterEntry {
	chapters := make([]ContentChapterEntry, 0, len(entries))
	for _, e := range entries {
		if f.IsBoilerplate(e) {
			continue
		}
		chapters = append(chapters, ContentChapterEntry{
			Number:        len(chapters) + 1,
			Title:         e.Title,
			Href:          e.Href,
			OriginalOrder: e.Order,
		})
	}
	return chapters
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}
