package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"

	// Decoders for cover formats found in the wild.
	_ "image/gif"
)

const (
	defaultThumbnailWidth = 300
	maxThumbnailWidth     = 1200
	defaultJPEGQuality    = 85
	defaultMaxPixels      = 100 * 1000 * 1000 // 100 megapixels
)

// Thumbnailer scales cover images down for listing pages.
type Thumbnailer struct {
	DefaultWidth int
	JPEGQuality  int
	MaxPixels    int // Total pixel count limit for decode (width * height)
}

// Thumbnail holds an encoded image and its dimensions.
type Thumbnail struct {
	Data      []byte
	Width     int
	Height    int
	MediaType string
}

// NewThumbnailer creates a thumbnailer with defaults.
func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{
		DefaultWidth: defaultThumbnailWidth,
		JPEGQuality:  defaultJPEGQuality,
		MaxPixels:    defaultMaxPixels,
	}
}

// Render scales input to width pixels wide, keeping the aspect ratio.
// A width of 0 selects the default; images narrower than width are not
// enlarged. Opaque images are encoded as JPEG, transparent PNGs stay PNG.
func (t *Thumbnailer) Render(input []byte, mediaType string, width int) (Thumbnail, error) {
	if width <= 0 {
		width = t.DefaultWidth
	}
	if width > maxThumbnailWidth {
		width = maxThumbnailWidth
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("decode cover config: %w", err)
	}
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); t.MaxPixels > 0 && pixels > uint64(t.MaxPixels) {
		return Thumbnail{}, fmt.Errorf("cover too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
	}

	src, format, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("decode cover: %w", err)
	}

	img := src
	if src.Bounds().Dx() > width {
		img = imaging.Resize(src, width, 0, imaging.Lanczos)
	}

	out := Thumbnail{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if chooseTargetFormat(mediaType, format, img) == "png" {
		out.Data, err = encodePNG(img)
		out.MediaType = "image/png"
	} else {
		out.Data, err = encodeJPEG(img, t.JPEGQuality)
		out.MediaType = "image/jpeg"
	}
	if err != nil {
		return Thumbnail{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	return out, nil
}

// chooseTargetFormat keeps transparent PNGs as PNG to preserve alpha and
// converts everything else to JPEG.
func chooseTargetFormat(mediaType, detected string, img image.Image) string {
	isPNG := strings.EqualFold(mediaType, "image/png") || strings.EqualFold(detected, "png")
	if isPNG && hasAlpha(img) {
		return "png"
	}
	return "jpeg"
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hasAlpha(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xFFFF {
				return true
			}
		}
	}
	return false
}
