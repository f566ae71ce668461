package disparity

import (
	"encoding/binary"
	"log/slog"

	"golang.org/x/sys/cpu"
)

// SAD (Sum of Absolute Differences) over a template window.
//
// Two reductions are provided:
//   - sadScalar: one byte per iteration, the reference semantics
//   - sadLanes:  8-byte words split into 16-bit lanes (SWAR), processed in
//     chunks of laneWidth bytes; inactive lanes of the last word are masked
//
// The lane width follows the widest byte vector the CPU offers so that a
// template row maps onto one register load on the vectorized hardware path.

// sadFunc returns the SAD between two width×height windows. a and b start at
// the top-left pixel of their window.
type sadFunc func(a, b []uint8, aStride, bStride, width, height int) int32

// SADBackend indicates which lane configuration is active for vectorized SAD.
type SADBackend int

const (
	SADBackendWord SADBackend = iota
	SADBackendSSE2
	SADBackendNEON
	SADBackendAVX2
)

func (b SADBackend) String() string {
	switch b {
	case SADBackendAVX2:
		return "AVX2"
	case SADBackendNEON:
		return "NEON"
	case SADBackendSSE2:
		return "SSE2"
	case SADBackendWord:
		return "word"
	default:
		return "unknown"
	}
}

// LaneWidth returns the number of byte lanes processed per chunk.
func (b SADBackend) LaneWidth() int {
	switch b {
	case SADBackendAVX2:
		return 32
	case SADBackendSSE2, SADBackendNEON:
		return 16
	default:
		return wordBytes
	}
}

// ActiveSADBackend reports which lane configuration was selected at startup.
var ActiveSADBackend SADBackend

func init() {
	switch {
	case cpu.X86.HasAVX2:
		ActiveSADBackend = SADBackendAVX2
	case cpu.ARM64.HasASIMD:
		ActiveSADBackend = SADBackendNEON
	case cpu.X86.HasSSE2:
		ActiveSADBackend = SADBackendSSE2
	default:
		ActiveSADBackend = SADBackendWord
	}
	slog.Debug("SAD kernel initialized", "backend", ActiveSADBackend.String(), "lanes", ActiveSADBackend.LaneWidth())
}

func sadScalar(a, b []uint8, aStride, bStride, width, height int) int32 {
	var sum int32
	for y := 0; y < height; y++ {
		ra := a[y*aStride : y*aStride+width]
		rb := b[y*bStride : y*bStride+width]
		for x := range ra {
			d := int32(ra[x]) - int32(rb[x])
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return sum
}

const (
	wordBytes    = 8
	maxLaneWidth = 256

	evenBytes = 0x00FF00FF00FF00FF
	bias16    = 0x0100010001000100
	lowBits16 = 0x0001000100010001
)

// normalizeLaneWidth rounds n up to a multiple of 8 within [8, maxLaneWidth].
// Non-positive values select the active backend's width.
func normalizeLaneWidth(n int) int {
	if n <= 0 {
		return ActiveSADBackend.LaneWidth()
	}
	n = (n + wordBytes - 1) / wordBytes * wordBytes
	return min(n, maxLaneWidth)
}

// lanesSAD returns a sadFunc with the given lane width (a positive multiple of 8).
func lanesSAD(laneWidth int) sadFunc {
	return func(a, b []uint8, aStride, bStride, width, height int) int32 {
		return sadLanes(a, b, aStride, bStride, width, height, laneWidth)
	}
}

func sadLanes(a, b []uint8, aStride, bStride, width, height, laneWidth int) int32 {
	var sum int32
	for y := 0; y < height; y++ {
		ra := a[y*aStride:]
		rb := b[y*bStride:]
		for start := 0; start < width; start += laneWidth {
			active := min(laneWidth, width-start)
			var acc uint64
			for off := 0; off < active; off += wordBytes {
				mask := laneMask(active - off)
				wa := loadWord(ra, start+off) & mask
				wb := loadWord(rb, start+off) & mask
				acc += absDiff16(wa&evenBytes, wb&evenBytes)
				acc += absDiff16((wa>>8)&evenBytes, (wb>>8)&evenBytes)
			}
			// A lane gains at most 510 per word, so for laneWidth <= maxLaneWidth
			// the four-lane total still fits in 16 bits.
			sum += int32((acc * lowBits16) >> 48)
		}
	}
	return sum
}

// absDiff16 computes |a-b| per 16-bit lane for lanes holding values in [0,255].
func absDiff16(a, b uint64) uint64 {
	fwd := (a | bias16) - b
	rev := (b | bias16) - a
	sel := ((fwd >> 8) & lowBits16) * 0xFF
	return (fwd & sel) | (rev &^ sel & evenBytes)
}

// laneMask keeps the low n bytes of a word.
func laneMask(n int) uint64 {
	if n >= wordBytes {
		return ^uint64(0)
	}
	return (uint64(1) << (8 * uint(n))) - 1
}

// loadWord reads 8 little-endian bytes at off. Near the end of p the missing
// bytes read as zero, so the load never goes past the slice.
func loadWord(p []uint8, off int) uint64 {
	if off+wordBytes <= len(p) {
		return binary.LittleEndian.Uint64(p[off:])
	}
	var w uint64
	for i := 0; off+i < len(p) && i < wordBytes; i++ {
		w |= uint64(p[off+i]) << (8 * uint(i))
	}
	return w
}
