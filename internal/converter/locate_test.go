package converter

import (
	"testing"

	"github.com/otruyen/otruyen-api/internal/epub"
)

func TestLocate(t *testing.T) {
	book := &fakeBook{parts: []epub.Part{
		{ID: "toc", Name: "toc.ncx"},
		{ID: "c1", Name: "text/ch01.html"},
		{ID: "c10", Name: "text/ch10.html"},
		{ID: "img", Name: "images/ch01.png"},
	}}

	tests := []struct {
		name   string
		href   string
		wantID string
		found  bool
	}{
		{"exact", "text/ch10.html", "c10", true},
		{"fragment ignored", "text/ch01.html#start", "c1", true},
		{"href inside part name", "ch10.html", "c10", true},
		{"part name inside href", "OEBPS/text/ch01.html", "c1", true},
		{"first match in manifest order", "ch01", "c1", true},
		{"no match", "text/ch02.html", "", false},
		{"empty href", "", "", false},
		{"fragment only", "#top", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Locate(book, tt.href)
			if ok != tt.found {
				t.Fatalf("Locate(%q) found = %v, want %v", tt.href, ok, tt.found)
			}
			if got.ID != tt.wantID {
				t.Errorf("Locate(%q) = %q, want %q", tt.href, got.ID, tt.wantID)
			}
		})
	}
}

func TestLocate_ExactBeatsEarlierSubstring(t *testing.T) {
	book := &fakeBook{parts: []epub.Part{
		{ID: "long", Name: "text/a.html.bak"},
		{ID: "exact", Name: "text/a.html"},
	}}
	got, ok := Locate(book, "text/a.html")
	if !ok || got.ID != "exact" {
		t.Errorf("Locate() = %+v, %v, want exact", got, ok)
	}
}
