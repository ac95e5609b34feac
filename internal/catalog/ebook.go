package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/otruyen/otruyen-api/internal/converter"
)

// Ebook is an item backed by an EPUB file in the media tree.
type Ebook struct {
	Key  string
	Item Item
	// Slug names the item's media directory.
	Slug string
	Path string
}

// Ebook finds an EPUB-backed item by key, then by ebook_ and text_story_
// prefixed keys, and resolves its file path. The file must exist.
func (s *Service) Ebook(ctx context.Context, slugOrID string) (*Ebook, error) {
	key, it, err := s.lookup(ctx, slugOrID, "ebook_", "text_story_")
	if err != nil {
		return nil, err
	}
	if it.ItemType != TypeEbook {
		return nil, fmt.Errorf("%w: %s", ErrNotEbook, key)
	}
	if it.LocalEpubFilename == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEpub, key)
	}

	eb := &Ebook{Key: key, Item: s.FormatItem(key, it), Slug: ebookSlug(key, it)}
	eb.Path, err = s.mediaPath(eb.Slug, it.LocalEpubFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEpubMissing, err)
	}
	info, err := os.Stat(eb.Path)
	if err != nil || info.IsDir() {
		if err == nil {
			err = fs.ErrInvalid
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrEpubMissing, eb.Path, err)
	}
	return eb, nil
}

// MediaPath returns the file system path of a file in an item's media
// directory. Names that would leave the directory are rejected.
func (s *Service) MediaPath(slug, filename string) (string, error) {
	return s.mediaPath(slug, filename)
}

func (s *Service) mediaPath(slug, filename string) (string, error) {
	if !safeSegment(slug) {
		return "", fmt.Errorf("%w: invalid media directory %q", fs.ErrNotExist, slug)
	}
	clean := filepath.Clean(filepath.FromSlash(filename))
	if filename == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: invalid media file %q", fs.ErrNotExist, filename)
	}
	return filepath.Join(s.cfg.MediaRoot, s.cfg.EbooksSubpath, slug, clean), nil
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func ebookSlug(key string, it Item) string {
	if it.Slug != "" {
		return it.Slug
	}
	return strings.Replace(key, "ebook_", "", 1)
}

// TOCReader lists the content chapters of an EPUB file.
type TOCReader interface {
	TableOfContents(path string) (*converter.TableOfContents, error)
}

// StoryContent summarizes what a text story offers for reading.
type StoryContent struct {
	Chapters      []ChapterServer `json:"chapters"`
	Content       string          `json:"content"`
	TotalChapters int             `json:"totalChapters"`
	HasContent    bool            `json:"hasContent"`
	IsEpub        bool            `json:"isEpub"`
	EpubInfo      *EpubInfo       `json:"epubInfo,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// EpubInfo links to the reading endpoints of an EPUB story.
type EpubInfo struct {
	TOCEndpoint     string `json:"tocEndpoint"`
	ChapterEndpoint string `json:"chapterEndpoint"`
}

// TextStory is a text story with its reading summary.
type TextStory struct {
	Item    Item
	Content StoryContent
}

// TOCPath returns the table-of-contents endpoint for a story slug.
func TOCPath(slug string) string {
	return "/v1/api/truyen-chu/" + slug + "/muc-luc"
}

// ChapterPath returns the chapter endpoint for a story slug and number.
func ChapterPath(slug string, number int) string {
	return fmt.Sprintf("/v1/api/truyen-chu/%s/chuong/%d", slug, number)
}

// TextStory loads an ebook or text story. For EPUB ebooks the chapter list
// is read from the file; reading failures are reported inside the content
// summary rather than as errors.
func (s *Service) TextStory(ctx context.Context, slugOrID string, toc TOCReader) (*TextStory, error) {
	key, it, err := s.lookup(ctx, slugOrID, "ebook_", "text_story_")
	if err != nil {
		return nil, err
	}
	if it.ItemType != TypeEbook && it.ItemType != TypeTextStory {
		return nil, fmt.Errorf("%w: %s", ErrNotTextStory, key)
	}
	item := s.FormatItem(key, it)
	story := &TextStory{Item: item, Content: storedContent(item)}

	if it.ItemType != TypeEbook || it.LocalEpubFilename == "" {
		return story, nil
	}

	story.Content.IsEpub = true
	slug := ebookSlug(key, it)
	path, err := s.mediaPath(slug, it.LocalEpubFilename)
	if err == nil {
		var info os.FileInfo
		if info, err = os.Stat(path); err == nil && info.IsDir() {
			err = fs.ErrNotExist
		}
	}
	if err != nil {
		s.logger.Warn("EPUB file missing", "key", key, "path", path, "error", err)
		story.Content.Content = "File EPUB không tồn tại trên server"
		story.Content.TotalChapters = 0
		story.Content.HasContent = false
		story.Content.Error = "File EPUB không tồn tại"
		return story, nil
	}

	contents, err := toc.TableOfContents(path)
	if err != nil {
		s.logger.Warn("failed to read EPUB table of contents", "key", key, "path", path, "error", err)
		story.Content.Error = "Không thể đọc EPUB: " + err.Error()
		return story, nil
	}

	links := make([]ChapterLink, 0, len(contents.Chapters))
	for _, c := range contents.Chapters {
		links = append(links, ChapterLink{
			Filename:       fmt.Sprintf("Chapter %d", c.Number),
			ChapterName:    fmt.Sprint(c.Number),
			ChapterTitle:   c.Title,
			ChapterAPIData: ChapterPath(slug, c.Number),
		})
	}
	story.Content = StoryContent{
		Chapters:      []ChapterServer{{ServerName: "EPUB Reader", ServerData: links}},
		Content:       fmt.Sprintf("Ebook EPUB với %d chương. Sử dụng API endpoint để đọc từng chương.", len(links)),
		TotalChapters: len(links),
		HasContent:    len(links) > 0,
		IsEpub:        true,
		EpubInfo: &EpubInfo{
			TOCEndpoint:     TOCPath(slug),
			ChapterEndpoint: "/v1/api/truyen-chu/" + slug + "/chuong/{chapter_number}",
		},
	}
	return story, nil
}

// storedContent summarizes the chapters and text stored on the item itself.
func storedContent(it Item) StoryContent {
	chapters := it.Chapters
	if chapters == nil {
		chapters = []ChapterServer{}
	}
	return StoryContent{
		Chapters:      chapters,
		Content:       it.Content,
		TotalChapters: len(it.Chapters),
		HasContent:    it.Content != "" || len(it.Chapters) > 0,
	}
}
