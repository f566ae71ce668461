package disparity

import (
	"image"
	"math"
)

// Map is a row-major grid of float32 disparities in pixel units.
type Map struct {
	Width  int
	Height int
	Pix    []float32
}

// NewMap allocates a zeroed width×height disparity map.
func NewMap(width, height int) *Map {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &Map{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// NewMapFor allocates a map matching the dimensions of img.
func NewMapFor(img *image.Gray) *Map {
	b := img.Bounds()
	return NewMap(b.Dx(), b.Dy())
}

// Bounds returns the map rectangle anchored at the origin.
func (m *Map) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// At returns the disparity at (x, y).
func (m *Map) At(x, y int) float32 {
	return m.Pix[y*m.Width+x]
}

// Set stores the disparity at (x, y).
func (m *Map) Set(x, y int, v float32) {
	m.Pix[y*m.Width+x] = v
}

// MinMax returns the smallest and largest finite values in the map.
// ok is false when the map holds no finite value.
func (m *Map) MinMax() (lo, hi float32, ok bool) {
	lo = float32(math.Inf(1))
	hi = float32(math.Inf(-1))
	for _, v := range m.Pix {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
		ok = true
	}
	return lo, hi, ok
}

// plane is a zero-origin view of an *image.Gray.
type plane struct {
	pix    []uint8
	stride int
	width  int
	height int
}

func planeOf(img *image.Gray) plane {
	b := img.Bounds()
	return plane{
		pix:    img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
		stride: img.Stride,
		width:  b.Dx(),
		height: b.Dy(),
	}
}

// packed returns the plane as a contiguous width*height slice, copying into
// buf only when rows are strided.
func (p plane) packed(buf []uint8) []uint8 {
	n := p.width * p.height
	if p.stride == p.width && len(p.pix) >= n {
		return p.pix[:n]
	}
	buf = buf[:n]
	for y := 0; y < p.height; y++ {
		copy(buf[y*p.width:(y+1)*p.width], p.pix[y*p.stride:y*p.stride+p.width])
	}
	return buf
}
