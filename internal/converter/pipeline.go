package converter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/otruyen/otruyen-api/internal/epub"
)

// Options holds options for the reading pipeline.
type Options struct {
	// Filter drops front matter; nil uses the default lists.
	Filter *BoilerplateFilter
	// CacheEntries bounds the archive cache; 0 opens every archive afresh.
	CacheEntries int
	Thumbnailer  *Thumbnailer
	Logger       *slog.Logger
	// ObserveRender, when set, receives how long each chapter took to render.
	ObserveRender func(time.Duration)
}

// Pipeline answers table-of-contents and chapter requests for EPUB files.
// It is safe for concurrent use.
type Pipeline struct {
	filter        atomic.Pointer[BoilerplateFilter]
	cache         *ArchiveCache
	thumbs        *Thumbnailer
	logger        *slog.Logger
	observeRender func(time.Duration)
}

// TableOfContents is the resolved and filtered navigation of one book.
type TableOfContents struct {
	Metadata epub.Metadata
	// Entries is the unfiltered list.
	Entries  []ChapterEntry
	Chapters []ContentChapterEntry
}

// Chapter is one content chapter together with its neighbours.
type Chapter struct {
	Entry    ContentChapterEntry
	Content  *ChapterContent
	Total    int
	Previous *int
	Next     *int
}

// NewPipeline creates a reading pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	p := &Pipeline{
		thumbs:        opts.Thumbnailer,
		logger:        opts.Logger,
		observeRender: opts.ObserveRender,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.thumbs == nil {
		p.thumbs = NewThumbnailer()
	}
	filter := opts.Filter
	if filter == nil {
		filter = DefaultBoilerplateFilter()
	}
	p.filter.Store(filter)

	if opts.CacheEntries > 0 {
		cache, err := NewArchiveCache(opts.CacheEntries)
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}
	return p, nil
}

// SetFilter replaces the boilerplate filter for subsequent requests.
func (p *Pipeline) SetFilter(f *BoilerplateFilter) {
	if f == nil {
		f = DefaultBoilerplateFilter()
	}
	p.filter.Store(f)
}

// Filter returns the boilerplate filter in use.
func (p *Pipeline) Filter() *BoilerplateFilter {
	return p.filter.Load()
}

// Cache returns the archive cache, or nil when caching is disabled.
func (p *Pipeline) Cache() *ArchiveCache {
	return p.cache
}

// TableOfContents opens the archive at path and lists its content chapters.
func (p *Pipeline) TableOfContents(path string) (*TableOfContents, error) {
	a, release, err := p.acquire(path)
	if err != nil {
		return nil, err
	}
	defer release()

	entries := ResolveTOC(a)
	toc := &TableOfContents{
		Metadata: a.Metadata(),
		Entries:  entries,
		Chapters: p.Filter().Filter(entries),
	}
	p.logger.Debug("resolved table of contents",
		"path", path, "entries", len(entries), "chapters", len(toc.Chapters))
	return toc, nil
}

// Chapter renders content chapter number (1-based) of the archive at path.
func (p *Pipeline) Chapter(path string, number int) (*Chapter, error) {
	a, release, err := p.acquire(path)
	if err != nil {
		return nil, err
	}
	defer release()

	chapters := p.Filter().Filter(ResolveTOC(a))
	total := len(chapters)
	if number < 1 || number > total {
		return nil, newError(KindChapterNumberOutOfRange, nil,
			"chapter %d out of range, book has %d content chapters", number, total)
	}
	entry := chapters[number-1]

	start := time.Now()
	content, err := GetChapter(a, entry.Href)
	if err != nil {
		return nil, err
	}
	if p.observeRender != nil {
		p.observeRender(time.Since(start))
	}
	if content.Title == "" {
		content.Title = entry.Title
	}

	ch := &Chapter{Entry: entry, Content: content, Total: total}
	if number > 1 {
		prev := number - 1
		ch.Previous = &prev
	}
	if number < total {
		next := number + 1
		ch.Next = &next
	}
	return ch, nil
}

// Cover renders the book's cover image at most width pixels wide.
func (p *Pipeline) Cover(path string, width int) (Thumbnail, error) {
	a, release, err := p.acquire(path)
	if err != nil {
		return Thumbnail{}, err
	}
	defer release()
	return CoverThumbnail(a, p.thumbs, width)
}

// Resource returns a manifest part, such as an image referenced by a
// chapter, along with its media type.
func (p *Pipeline) Resource(path, name string) ([]byte, string, error) {
	a, release, err := p.acquire(path)
	if err != nil {
		return nil, "", err
	}
	defer release()

	part, ok := a.Part(name)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", epub.ErrFileNotFound, name)
	}
	data, err := a.ReadPart(part.Name)
	if err != nil {
		if errors.Is(err, epub.ErrFileNotFound) {
			return nil, "", err
		}
		return nil, "", partError(part.Name, err)
	}
	return data, part.MediaType, nil
}

// acquire opens the archive at path, through the cache when enabled. The
// returned release func must be called once the archive is no longer used.
func (p *Pipeline) acquire(path string) (*epub.Archive, func(), error) {
	if p.cache != nil {
		a, err := p.cache.Get(path)
		if err != nil {
			return nil, nil, p.openFailed(path, err)
		}
		return a, func() {}, nil
	}

	a, err := epub.OpenArchive(path)
	if err != nil {
		return nil, nil, p.openFailed(path, err)
	}
	return a, func() {
		if err := a.Close(); err != nil {
			p.logger.Warn("failed to close archive", "path", path, "error", err)
		}
	}, nil
}

func (p *Pipeline) openFailed(path string, err error) error {
	if !errors.Is(err, epub.ErrArchiveNotFound) {
		p.logger.Warn("failed to open archive", "path", path, "error", err)
	}
	return archiveError(path, err)
}
