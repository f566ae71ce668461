// Package imageio loads stereo inputs as grayscale images and writes
// disparity maps as viewable images.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"

	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/cwbudde/blockmatch/internal/disparity"
)

// ErrFlatMap is returned when a disparity map has no value range to
// normalize over.
var ErrFlatMap = errors.New("disparity map has a single value")

// ErrUnknownFormat is returned when an output extension has no encoder.
var ErrUnknownFormat = errors.New("unknown image format")

// LoadOptions controls how an input image is prepared.
type LoadOptions struct {
	// Scale resizes the image by this factor. Values <= 0 or 1 keep the
	// original size.
	Scale float64
}

// LoadGray decodes the image at path (PNG, JPEG, GIF, BMP or TIFF) and
// converts it to 8-bit grayscale.
func LoadGray(path string, opts LoadOptions) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: %s", disparity.ErrEmptyImage, path)
	}

	if opts.Scale > 0 && opts.Scale != 1 {
		w := uint(math.Max(1, math.Round(float64(b.Dx())*opts.Scale)))
		h := uint(math.Max(1, math.Round(float64(b.Dy())*opts.Scale)))
		img = resize.Resize(w, h, img, resize.Bilinear)
	}

	gray := ToGray(img)
	slog.Debug("Loaded image", "path", path, "format", format,
		"width", gray.Rect.Dx(), "height", gray.Rect.Dy())
	return gray, nil
}

// ToGray converts img to a zero-origin *image.Gray. A zero-origin Gray input
// is returned unchanged.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Rect, img, b.Min, draw.Src)
	return gray
}

// Visualize maps the finite range of m linearly onto 0..255. Non-finite
// values are drawn black.
func Visualize(m *disparity.Map) (*image.Gray, error) {
	lo, hi, ok := m.MinMax()
	if !ok || hi == lo {
		return nil, ErrFlatMap
	}

	out := image.NewGray(m.Bounds())
	scale := 255 / float64(hi-lo)
	for i, v := range m.Pix {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out.Pix[i] = uint8(math.Round((f - float64(lo)) * scale))
	}
	return out, nil
}

// Save encodes img to path choosing the format from the extension.
func Save(path string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(path))
	var encode func(f *os.File) error
	switch ext {
	case ".png", "":
		encode = func(f *os.File) error { return png.Encode(f, img) }
	case ".jpg", ".jpeg":
		encode = func(f *os.File) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 95}) }
	case ".bmp":
		encode = func(f *os.File) error { return bmp.Encode(f, img) }
	case ".tif", ".tiff":
		encode = func(f *os.File) error { return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}) }
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
