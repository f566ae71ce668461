package disparity

import (
	"image"
	"math"
	"testing"
)

func TestMap_MinMax(t *testing.T) {
	m := NewMap(3, 2)
	copy(m.Pix, []float32{2, float32(math.NaN()), -1, 4.5, float32(math.Inf(1)), 0})

	lo, hi, ok := m.MinMax()
	if !ok || lo != -1 || hi != 4.5 {
		t.Errorf("MinMax() = %v, %v, %v; want -1, 4.5, true", lo, hi, ok)
	}

	empty := NewMap(0, 0)
	if _, _, ok := empty.MinMax(); ok {
		t.Error("MinMax() on an empty map reported ok")
	}
}

func TestMap_AtSet(t *testing.T) {
	m := NewMap(4, 3)
	m.Set(3, 2, 1.25)
	if got := m.At(3, 2); got != 1.25 {
		t.Errorf("At(3,2) = %v", got)
	}
	if got := m.Pix[2*4+3]; got != 1.25 {
		t.Errorf("row-major index holds %v", got)
	}
	if m.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Errorf("Bounds() = %v", m.Bounds())
	}
}

func TestPlane_Packed(t *testing.T) {
	big := randomGray(10, 8, 5)

	full := planeOf(big)
	if got := full.packed(nil); &got[0] != &big.Pix[0] {
		t.Error("contiguous plane was copied")
	}

	sub := big.SubImage(image.Rect(2, 1, 7, 6)).(*image.Gray)
	p := planeOf(sub)
	buf := make([]uint8, p.width*p.height)
	got := p.packed(buf)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if want := big.GrayAt(2+x, 1+y).Y; got[y*5+x] != want {
				t.Fatalf("(%d,%d) = %d, want %d", x, y, got[y*5+x], want)
			}
		}
	}
}
