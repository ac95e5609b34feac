// Package catalog implements the library listings on top of the item store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/otruyen/otruyen-api/internal/store"
)

var (
	ErrItemNotFound    = errors.New("catalog: item not found")
	ErrNotTextStory    = errors.New("catalog: item is not a text story")
	ErrNotEbook        = errors.New("catalog: item is not an EPUB ebook")
	ErrNoEpub          = errors.New("catalog: item has no EPUB file")
	ErrEpubMissing     = errors.New("catalog: EPUB file does not exist on server")
	ErrKeywordRequired = errors.New("catalog: keyword is required")
)

const (
	defaultItemsPerPage = 24
	defaultHomeWindow   = 100
	defaultPageRanges   = 5
)

// Config holds the catalog settings.
type Config struct {
	MediaRoot      string
	EbooksSubpath  string
	MediaBaseURL   string
	CDNImageDomain string
	ItemsPerPage   int
	HomeWindow     int
}

// Service answers listing and detail queries.
type Service struct {
	store  store.Store
	cfg    Config
	logger *slog.Logger
}

// NewService creates a catalog over st.
func NewService(st store.Store, cfg Config, logger *slog.Logger) *Service {
	if cfg.ItemsPerPage <= 0 {
		cfg.ItemsPerPage = defaultItemsPerPage
	}
	if cfg.HomeWindow <= 0 {
		cfg.HomeWindow = defaultHomeWindow
	}
	if cfg.EbooksSubpath == "" {
		cfg.EbooksSubpath = "ebooks"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: st, cfg: cfg, logger: logger}
}

// Config returns the effective settings.
func (s *Service) Config() Config { return s.cfg }

// Pagination describes one page of a listing.
type Pagination struct {
	TotalItems        int `json:"totalItems"`
	TotalItemsPerPage int `json:"totalItemsPerPage"`
	CurrentPage       int `json:"currentPage"`
	PageRanges        int `json:"pageRanges"`
	TotalPages        int `json:"totalPages"`
}

// Page is a slice of a listing plus its pagination.
type Page struct {
	Items      []Item
	Pagination Pagination
}

// Paginate computes pagination for total items. Pages below 1 count as 1.
func Paginate(total, page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultItemsPerPage
	}
	return Pagination{
		TotalItems:        total,
		TotalItemsPerPage: perPage,
		CurrentPage:       page,
		PageRanges:        defaultPageRanges,
		TotalPages:        (total + perPage - 1) / perPage,
	}
}

func (s *Service) page(items []Item, page int) Page {
	p := Paginate(len(items), page, s.cfg.ItemsPerPage)
	// Compare page indexes before multiplying so huge pages cannot overflow.
	start := len(items)
	if p.CurrentPage-1 <= len(items)/p.TotalItemsPerPage {
		start = min((p.CurrentPage-1)*p.TotalItemsPerPage, len(items))
	}
	end := start + min(p.TotalItemsPerPage, len(items)-start)
	return Page{Items: items[start:end], Pagination: p}
}

// Home lists the most recently created items, newest first.
func (s *Service) Home(ctx context.Context, page int) (Page, error) {
	items, err := s.query(ctx, store.Query{OrderBy: "createdAt", LimitToLast: s.cfg.HomeWindow}, nil)
	if err != nil {
		return Page{}, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return s.page(items, page), nil
}

var listFilters = map[string]func(Item) bool{
	"truyen-moi":     func(it Item) bool { return it.ItemType == TypeComic },
	"ebook-moi":      func(it Item) bool { return it.ItemType == TypeEbook },
	"hoan-thanh":     func(it Item) bool { return it.Status == "completed" },
	"dang-phat-hanh": func(it Item) bool { return it.Status == "ongoing" },
	"sap-ra-mat":     func(it Item) bool { return it.Status == "coming_soon" },
}

// List returns the items of a named listing, most recently updated first.
// An unknown listing is empty.
func (s *Service) List(ctx context.Context, typeSlug string, page int) (Page, error) {
	match, ok := listFilters[typeSlug]
	if !ok {
		return s.page(nil, page), nil
	}
	items, err := s.query(ctx, store.Query{OrderBy: "updatedAt"}, match)
	if err != nil {
		return Page{}, err
	}
	sortByUpdatedDesc(items)
	return s.page(items, page), nil
}

// TitleFromSlug turns "dang-phat-hanh" into "Dang Phat Hanh".
func TitleFromSlug(slug string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(slug, "-", " "))
}

// Categories returns every category used by an item, unique by slug and
// sorted by slug. A category without an id uses its slug.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	items, err := s.query(ctx, store.Query{}, nil)
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]Category)
	for _, it := range items {
		for _, c := range it.Category {
			if c.ID == "" {
				c.ID = c.Slug
			}
			bySlug[c.Slug] = c
		}
	}
	out := make([]Category, 0, len(bySlug))
	for _, c := range bySlug {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// ByCategory lists items tagged with the category slug.
func (s *Service) ByCategory(ctx context.Context, slug string, page int) (Page, error) {
	items, err := s.query(ctx, store.Query{}, func(it Item) bool { return it.Category.Has(slug) })
	if err != nil {
		return Page{}, err
	}
	sortByUpdatedDesc(items)
	return s.page(items, page), nil
}

// Search matches keyword, case-insensitively, against names and original
// names. Results are sorted by name.
func (s *Service) Search(ctx context.Context, keyword string, page int) (Page, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return Page{}, ErrKeywordRequired
	}
	items, err := s.query(ctx, store.Query{}, func(it Item) bool {
		return strings.Contains(strings.ToLower(it.Name), keyword) ||
			strings.Contains(strings.ToLower(it.OriginName.Joined()), keyword)
	})
	if err != nil {
		return Page{}, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return s.page(items, page), nil
}

// Detail finds an item by key, then by comic_ and ebook_ prefixed keys.
func (s *Service) Detail(ctx context.Context, slugOrID string) (Item, error) {
	key, it, err := s.lookup(ctx, slugOrID, "comic_", "ebook_")
	if err != nil {
		return Item{}, err
	}
	return s.FormatItem(key, it), nil
}

// lookup tries slugOrID and then each prefixed variant.
func (s *Service) lookup(ctx context.Context, slugOrID string, prefixes ...string) (string, Item, error) {
	keys := []string{slugOrID}
	for _, p := range prefixes {
		keys = append(keys, p+slugOrID)
	}
	for _, key := range keys {
		rec, err := s.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", Item{}, fmt.Errorf("get %s: %w", key, err)
		}
		if it, ok := decodeItem(rec); ok {
			return key, it, nil
		}
	}
	return "", Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, slugOrID)
}

// query loads records, drops values that are not items and keeps the
// formatted items accepted by match.
func (s *Service) query(ctx context.Context, q store.Query, match func(Item) bool) ([]Item, error) {
	records, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	items := make([]Item, 0, len(records))
	for _, rec := range records {
		it, ok := decodeItem(rec)
		if !ok {
			s.logger.Debug("skipping malformed item", "key", rec.Key)
			continue
		}
		it = s.FormatItem(rec.Key, it)
		if match == nil || match(it) {
			items = append(items, it)
		}
	}
	return items, nil
}

func sortByUpdatedDesc(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.Compare(items[j].UpdatedAt) > 0
	})
}
