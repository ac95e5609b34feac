package converter

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/otruyen/otruyen-api/internal/epub"
)

func makePNG(t *testing.T, w, h int, alpha uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: alpha})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestThumbnailer_Render(t *testing.T) {
	th := NewThumbnailer()

	tests := []struct {
		name      string
		input     []byte
		width     int
		wantW     int
		wantH     int
		wantMedia string
	}{
		{"opaque png scaled to jpeg", makePNG(t, 40, 20, 0xFF), 10, 10, 5, "image/jpeg"},
		{"transparent png stays png", makePNG(t, 40, 20, 0x80), 20, 20, 10, "image/png"},
		{"narrow image not enlarged", makePNG(t, 8, 8, 0xFF), 100, 8, 8, "image/jpeg"},
		{"oversized width clamped", makePNG(t, 16, 4, 0xFF), 5000, 16, 4, "image/jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := th.Render(tt.input, "image/png", tt.width)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got.Width != tt.wantW || got.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", got.Width, got.Height, tt.wantW, tt.wantH)
			}
			if got.MediaType != tt.wantMedia {
				t.Errorf("MediaType = %q, want %q", got.MediaType, tt.wantMedia)
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(got.Data))
			if err != nil {
				t.Fatalf("output does not decode: %v", err)
			}
			if cfg.Width != tt.wantW {
				t.Errorf("encoded width = %d, want %d", cfg.Width, tt.wantW)
			}
		})
	}
}

func TestThumbnailer_RenderErrors(t *testing.T) {
	th := NewThumbnailer()
	if _, err := th.Render([]byte("not an image"), "image/jpeg", 10); err == nil {
		t.Error("Render(garbage) should fail")
	}

	th.MaxPixels = 10
	if _, err := th.Render(makePNG(t, 5, 5, 0xFF), "image/png", 10); err == nil {
		t.Error("Render() over the pixel limit should fail")
	}
}

type fakeCover struct {
	part epub.Part
	has  bool
	data []byte
}

func (c fakeCover) Cover() (epub.Part, bool) { return c.part, c.has }

func (c fakeCover) ReadPart(name string) ([]byte, error) {
	if c.data == nil {
		return nil, epub.ErrFileNotFound
	}
	return c.data, nil
}

func TestCoverThumbnail(t *testing.T) {
	src := fakeCover{
		part: epub.Part{Name: "images/cover.png", MediaType: "image/png"},
		has:  true,
		data: makePNG(t, 30, 60, 0xFF),
	}
	got, err := CoverThumbnail(src, nil, 15)
	if err != nil {
		t.Fatalf("CoverThumbnail() error = %v", err)
	}
	if got.Width != 15 || got.Height != 30 {
		t.Errorf("size = %dx%d, want 15x30", got.Width, got.Height)
	}

	if _, err := CoverThumbnail(fakeCover{}, nil, 15); !errors.Is(err, ErrNoCover) {
		t.Errorf("no cover error = %v, want ErrNoCover", err)
	}

	src.data = nil
	if _, err := CoverThumbnail(src, nil, 15); !errors.Is(err, ErrNoCover) {
		t.Errorf("missing cover bytes error = %v, want ErrNoCover", err)
	}
}
