package converter

import (
	"reflect"
	"testing"

	"github.com/otruyen/otruyen-api/internal/epub"
)

// fakeBook is an in-memory TOCSource and PartSource.
type fakeBook struct {
	nav      []epub.NavEntry
	spine    []string
	parts    []epub.Part
	contents map[string][]byte
	failures map[string]error
}

func (b *fakeBook) Navigation() []epub.NavEntry { return b.nav }
func (b *fakeBook) ReadingOrder() []string      { return b.spine }
func (b *fakeBook) Parts() []epub.Part          { return b.parts }

func (b *fakeBook) PartForID(id string) (epub.Part, bool) {
	for _, p := range b.parts {
		if p.ID == id {
			return p, true
		}
	}
	return epub.Part{}, false
}

func (b *fakeBook) ReadPart(name string) ([]byte, error) {
	if err := b.failures[name]; err != nil {
		return nil, err
	}
	data, ok := b.contents[name]
	if !ok {
		return nil, epub.ErrFileNotFound
	}
	return data, nil
}

func TestResolveTOC_Navigation(t *testing.T) {
	book := &fakeBook{
		nav: []epub.NavEntry{
			{Title: "Mục lục", Href: "toc.html"},
			{Title: "Chương 1", Href: "c1.html"},
			{Title: "Chương 2", Href: "c2.html#s1"},
		},
		spine: []string{"ignored"},
	}

	got := ResolveTOC(book)
	want := []ChapterEntry{
		{Order: 1, Title: "Mục lục", Href: "toc.html"},
		{Order: 2, Title: "Chương 1", Href: "c1.html"},
		{Order: 3, Title: "Chương 2", Href: "c2.html#s1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveTOC() = %+v, want %+v", got, want)
	}
}

func TestResolveTOC_SpineFallback(t *testing.T) {
	book := &fakeBook{
		spine: []string{"c1", "missing", "c2"},
		parts: []epub.Part{
			{ID: "c1", Name: "text/ch01.xhtml"},
			{ID: "c2", Name: "chapter_two.html"},
		},
	}

	got := ResolveTOC(book)
	want := []ChapterEntry{
		{Order: 1, Title: "Ch01", Href: "text/ch01.xhtml"},
		{Order: 3, Title: "Chapter Two", Href: "chapter_two.html"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveTOC() = %+v, want %+v", got, want)
	}
}

func TestResolveTOC_Empty(t *testing.T) {
	if got := ResolveTOC(&fakeBook{}); len(got) != 0 {
		t.Errorf("ResolveTOC() = %+v, want empty", got)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"ch01.xhtml", "Ch01"},
		{"OEBPS/text/part_one_intro.html", "Part One Intro"},
		{"PROLOGUE.html", "Prologue"},
		{"noext", "Noext"},
	}
	for _, tt := range tests {
		if got := titleFromFilename(tt.name); got != tt.want {
			t.Errorf("titleFromFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestBoilerplateFilter_Defaults(t *testing.T) {
	entries := []ChapterEntry{
		{Order: 1, Title: "Mục lục", Href: "toc.html"},
		{Order: 2, Title: "Chương 1", Href: "c1.html"},
		{Order: 3, Title: "WELCOME to the book", Href: "front.html"},
		{Order: 4, Title: "Chương 2", Href: "c2.html"},
		{Order: 5, Title: "About", Href: "text/INTRO.HTML"},
		{Order: 6, Title: "Giới Thiệu", Href: "g.html"},
		{Order: 7, Title: "Table of Contents", Href: "contents.html"},
	}

	got := DefaultBoilerplateFilter().Filter(entries)
	want := []ContentChapterEntry{
		{Number: 1, Title: "Chương 1", Href: "c1.html", OriginalOrder: 2},
		{Number: 2, Title: "Chương 2", Href: "c2.html", OriginalOrder: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter() = %+v, want %+v", got, want)
	}
}

func TestBoilerplateFilter_Custom(t *testing.T) {
	f := NewBoilerplateFilter([]string{"Lời Nói Đầu"}, []string{})
	entries := []ChapterEntry{
		{Order: 1, Title: "Lời nói đầu", Href: "a.html"},
		{Order: 2, Title: "Welcome", Href: "welcome.html"},
	}

	got := f.Filter(entries)
	if len(got) != 1 || got[0].Title != "Welcome" || got[0].Number != 1 || got[0].OriginalOrder != 2 {
		t.Errorf("Filter() = %+v", got)
	}
}

func TestBoilerplateFilter_NumbersAreDense(t *testing.T) {
	var entries []ChapterEntry
	for i := 1; i <= 20; i++ {
		title := "Chapter"
		if i%3 == 0 {
			title = "Welcome"
		}
		entries = append(entries, ChapterEntry{Order: i, Title: title, Href: "c.html"})
	}

	got := DefaultBoilerplateFilter().Filter(entries)
	prev := 0
	for i, c := range got {
		if c.Number != i+1 {
			t.Errorf("chapter %d has Number %d", i, c.Number)
		}
		if c.OriginalOrder <= prev {
			t.Errorf("OriginalOrder not increasing at %d: %d after %d", i, c.OriginalOrder, prev)
		}
		prev = c.OriginalOrder
	}
	if len(got) != 14 {
		t.Errorf("len(Filter()) = %d, want 14", len(got))
	}
}
