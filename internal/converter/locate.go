package converter

import (
	"strings"

	"github.com/otruyen/otruyen-api/internal/epub"
)

// PartSource is the subset of an opened archive chapter reading needs.
type PartSource interface {
	Parts() []epub.Part
	ReadPart(name string) ([]byte, error)
}

// Locate finds the part an entry href points at. An exact name match wins;
// otherwise the first part, in manifest order, whose name contains the
// href or is contained in it is returned. Fragments are ignored.
func Locate(src PartSource, href string) (epub.Part, bool) {
	target, _, _ := strings.Cut(href, "#")
	if target == "" {
		return epub.Part{}, false
	}

	parts := src.Parts()
	for _, p := range parts {
		if p.Name == target {
			return p, true
		}
	}
	for _, p := range parts {
		if strings.Contains(p.Name, target) || strings.Contains(target, p.Name) {
			return p, true
		}
	}
	return epub.Part{}, false
}
