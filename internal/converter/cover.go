package converter

import (
	"errors"
	"fmt"

	"github.com/otruyen/otruyen-api/internal/epub"
)

// ErrNoCover is returned when a book declares no usable cover image.
var ErrNoCover = errors.New("book has no cover image")

// CoverSource is the subset of an opened archive cover rendering needs.
type CoverSource interface {
	Cover() (epub.Part, bool)
	ReadPart(name string) ([]byte, error)
}

// CoverThumbnail renders the detected cover image at most width pixels wide.
func CoverThumbnail(src CoverSource, t *Thumbnailer, width int) (Thumbnail, error) {
	part, ok := src.Cover()
	if !ok {
		return Thumbnail{}, ErrNoCover
	}
	data, err := src.ReadPart(part.Name)
	if err != nil {
		if errors.Is(err, epub.ErrFileNotFound) {
			return Thumbnail{}, fmt.Errorf("%w: %s missing from archive", ErrNoCover, part.Name)
		}
		return Thumbnail{}, partError(part.Name, err)
	}
	if t == nil {
		t = NewThumbnailer()
	}
	return t.Render(data, part.MediaType, width)
}
