package catalog

import (
	"strings"
)

// FormatItem prepares a stored item for clients: it fills the id from the
// key, builds absolute cover URLs and derives the latest chapter.
func (s *Service) FormatItem(key string, it Item) Item {
	if it.ID == "" {
		it.ID = key
	}

	switch it.ItemType {
	case TypeComic:
		if strings.HasPrefix(it.ThumbURL, "http") {
			it.ThumbURL = it.ThumbURL[strings.LastIndex(it.ThumbURL, "/")+1:]
		}
	case TypeEbook:
		it.ThumbURL = it.LocalCoverFilename
	}
	it.ThumbURLFull = s.thumbURL(it)

	if it.Category == nil {
		it.Category = CategoryList{}
	}

	it.ChaptersLatest = []ChapterLink{}
	if n := len(it.Chapters); n > 0 {
		if data := it.Chapters[n-1].ServerData; len(data) > 0 {
			it.ChaptersLatest = []ChapterLink{data[len(data)-1]}
		}
	}
	return it
}

// thumbURL builds the client-facing cover URL. Ebook covers are served from
// the media tree: relative to this server when the media base URL points
// at a local address, absolute otherwise. Comic covers live on the CDN.
func (s *Service) thumbURL(it Item) string {
	switch it.ItemType {
	case TypeEbook:
		cover := it.LocalCoverFilename
		if cover == "" {
			return ""
		}
		base := strings.TrimRight(s.cfg.MediaBaseURL, "/")
		sub := strings.Trim(s.cfg.EbooksSubpath, "/")
		switch {
		case isLocalBase(base):
			if it.Slug == "" {
				return ""
			}
			return "/" + sub + "/" + it.Slug + "/" + cover
		case base != "" && it.Slug != "":
			return base + "/" + sub + "/" + it.Slug + "/" + cover
		default:
			return sub + "/" + it.Slug + "/" + cover
		}
	case TypeComic:
		if it.ThumbURL == "" {
			return ""
		}
		return strings.TrimRight(s.cfg.CDNImageDomain, "/") + "/uploads/comics/" + it.ThumbURL
	}
	return ""
}

func isLocalBase(base string) bool {
	return strings.HasPrefix(base, "http://localhost") || strings.HasPrefix(base, "http://127.0.0.1")
}
