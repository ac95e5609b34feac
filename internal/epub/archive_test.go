package epub

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otruyen/otruyen-api/internal/epubtest"
)

func sampleBook() epubtest.Book {
	return epubtest.Book{
		Title: "Sample",
		Chapters: []epubtest.Chapter{
			{ID: "welcome", Href: "text/welcome.html", Title: "Welcome"},
			{ID: "c1", Href: "text/ch01.html", Title: "One"},
			{ID: "c2", Href: "text/ch02.html", Title: "Two"},
		},
		NCX: []epubtest.NavPoint{
			{Label: "Welcome", Src: "text/welcome.html"},
			{Label: "Chapter One", Src: "text/ch01.html#start"},
			{Label: "", Src: "text/ch02.html"},
			{Label: "Chapter Two", Src: "text/ch02.html"},
		},
		Resources: []epubtest.Resource{
			{ID: "cover", Href: "images/cover.jpg", MediaType: "image/jpeg", Properties: "cover-image", Data: []byte("jpeg")},
		},
	}
}

func TestOpenArchive(t *testing.T) {
	p := sampleBook().Write(t, t.TempDir(), "sample.epub")

	a, err := OpenArchive(p)
	if err != nil {
		t.Fatalf("OpenArchive() error = %v", err)
	}
	defer a.Close()

	if a.Metadata().Title != "Sample" {
		t.Errorf("Title = %q, want %q", a.Metadata().Title, "Sample")
	}

	var names []string
	for _, part := range a.Parts() {
		names = append(names, part.Name)
	}
	wantNames := "toc.ncx,text/welcome.html,text/ch01.html,text/ch02.html,images/cover.jpg"
	if strings.Join(names, ",") != wantNames {
		t.Errorf("Parts() names = %v, want %s", names, wantNames)
	}

	nav := a.Navigation()
	wantNav := []NavEntry{
		{Title: "Welcome", Href: "text/welcome.html"},
		{Title: "Chapter One", Href: "text/ch01.html#start"},
		{Title: "Chapter Two", Href: "text/ch02.html"},
	}
	if len(nav) != len(wantNav) {
		t.Fatalf("Navigation() = %+v, want %+v", nav, wantNav)
	}
	for i := range wantNav {
		if nav[i] != wantNav[i] {
			t.Errorf("Navigation()[%d] = %+v, want %+v", i, nav[i], wantNav[i])
		}
	}

	if got := strings.Join(a.ReadingOrder(), ","); got != "welcome,c1,c2" {
		t.Errorf("ReadingOrder() = %s", got)
	}

	part, ok := a.PartForID("c2")
	if !ok || part.Name != "text/ch02.html" || part.Path != "OEBPS/text/ch02.html" {
		t.Errorf("PartForID(c2) = %+v, %v", part, ok)
	}

	data, err := a.ReadPart("text/ch01.html")
	if err != nil {
		t.Fatalf("ReadPart() error = %v", err)
	}
	if !strings.Contains(string(data), "Text of One.") {
		t.Errorf("ReadPart() = %q", data)
	}

	if _, err := a.ReadPart("text/missing.html"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ReadPart(missing) error = %v, want ErrFileNotFound", err)
	}

	cover, ok := a.Cover()
	if !ok || cover.Name != "images/cover.jpg" {
		t.Errorf("Cover() = %+v, %v", cover, ok)
	}
}

func TestOpenArchive_RootLevelOPF(t *testing.T) {
	book := epubtest.Book{
		Title:    "Flat",
		OPFDir:   "-",
		Chapters: []epubtest.Chapter{{ID: "a", Href: "a.xhtml", Title: "A"}},
		Nav:      []epubtest.NavPoint{{Label: "A", Src: "a.xhtml"}},
	}
	a, err := OpenArchive(book.Write(t, t.TempDir(), "flat.epub"))
	if err != nil {
		t.Fatalf("OpenArchive() error = %v", err)
	}
	defer a.Close()

	nav := a.Navigation()
	if len(nav) != 1 || nav[0].Href != "a.xhtml" {
		t.Errorf("Navigation() = %+v", nav)
	}
	if _, ok := a.Part("a.xhtml"); !ok {
		t.Error("Part(a.xhtml) not found")
	}
}

func TestOpenArchive_NoNavigation(t *testing.T) {
	book := epubtest.Book{
		Title:    "Bare",
		Chapters: []epubtest.Chapter{{ID: "a", Href: "a.xhtml", Title: "A"}},
	}
	a, err := OpenArchive(book.Write(t, t.TempDir(), "bare.epub"))
	if err != nil {
		t.Fatalf("OpenArchive() error = %v", err)
	}
	defer a.Close()

	if nav := a.Navigation(); len(nav) != 0 {
		t.Errorf("Navigation() = %+v, want empty", nav)
	}
}

func TestOpenArchive_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenArchive(filepath.Join(dir, "missing.epub"))
	if !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("missing file error = %v, want ErrArchiveNotFound", err)
	}

	garbage := filepath.Join(dir, "garbage.epub")
	if err := os.WriteFile(garbage, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = OpenArchive(garbage)
	if !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("garbage file error = %v, want ErrArchiveCorrupt", err)
	}

	_, err = OpenArchive(dir)
	if !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("directory error = %v, want ErrArchiveCorrupt", err)
	}

	badMime := createNCXTestEPUB(t, nil)
	if err := os.WriteFile(badMime, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenArchive(badMime); !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("truncated zip error = %v, want ErrArchiveCorrupt", err)
	}

	noOPF := createNCXTestEPUB(t, map[string]string{})
	_, err = OpenArchive(noOPF)
	if !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("missing OPF error = %v, want ErrArchiveCorrupt", err)
	}
	if errors.Is(err, ErrArchiveNotFound) {
		t.Error("missing OPF must not be reported as ErrArchiveNotFound")
	}
}

func TestArchive_MaterializeAndClose(t *testing.T) {
	p := sampleBook().Write(t, t.TempDir(), "sample.epub")
	a, err := OpenArchive(p)
	if err != nil {
		t.Fatalf("OpenArchive() error = %v", err)
	}

	if err := a.Materialize(); err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	// The zip handle is released; reads come from memory.
	if err := os.Remove(p); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := a.ReadPart("text/ch02.html"); err != nil {
		t.Errorf("ReadPart() after Materialize error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	b, err := OpenArchive(sampleBook().Write(t, t.TempDir(), "again.epub"))
	if err != nil {
		t.Fatalf("OpenArchive() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := b.ReadPart("text/ch01.html"); err == nil {
		t.Error("ReadPart() after Close should fail")
	}
}
