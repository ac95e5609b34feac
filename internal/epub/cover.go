package epub

import (
	"path"
	"strings"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string // "properties", "meta", "guide", "filename"
}

// DetectCover finds the cover image, trying in order:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. guide type="cover" pointing at an image item
//  4. an image whose basename contains "cover" (SVG excluded)
//
// Returns nil if no cover image is found.
func (opf *OPF) DetectCover() *CoverInfo {
	detectors := []struct {
		method string
		find   func() (ManifestItem, bool)
	}{
		{"properties", opf.coverByProperty},
		{"meta", opf.coverByMeta},
		{"guide", opf.coverByGuide},
		{"filename", opf.coverByFilename},
	}
	for _, d := range detectors {
		if item, ok := d.find(); ok {
			return &CoverInfo{
				ManifestID:      item.ID,
				Href:            item.Href,
				MediaType:       item.MediaType,
				DetectionMethod: d.method,
			}
		}
	}
	return nil
}

func (opf *OPF) coverByProperty() (ManifestItem, bool) {
	for _, id := range opf.ManifestOrder {
		if item := opf.Manifest[id]; item.HasProperty("cover-image") {
			return item, true
		}
	}
	return ManifestItem{}, false
}

func (opf *OPF) coverByMeta() (ManifestItem, bool) {
	if opf.Metadata.CoverID == "" {
		return ManifestItem{}, false
	}
	item, ok := opf.Manifest[opf.Metadata.CoverID]
	return item, ok
}

func (opf *OPF) coverByGuide() (ManifestItem, bool) {
	for _, ref := range opf.Guide {
		if ref.Type != "cover" {
			continue
		}
		target, _ := splitFragment(ref.Href)
		for _, id := range opf.ManifestOrder {
			item := opf.Manifest[id]
			if isImageMediaType(item.MediaType) && item.Href == target {
				return item, true
			}
		}
	}
	return ManifestItem{}, false
}

func (opf *OPF) coverByFilename() (ManifestItem, bool) {
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if !isImageMediaType(item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			return item, true
		}
	}
	return ManifestItem{}, false
}

// isImageMediaType checks if a media type is a raster image (SVG excluded).
func isImageMediaType(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
