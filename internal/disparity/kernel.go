package disparity

import "math"

// window is the edge-clipped template around a target pixel. Near the image
// border the half extents shrink independently, so the template is smaller
// and off-centre rather than padded.
type window struct {
	leftHalf, rightHalf  int
	topHalf, bottomHalf  int
	width, height        int
	minStartX, maxStartX int
}

func clipWindow(y, x, width, height, k, leftSteps, rightSteps int) window {
	w := window{
		leftHalf:   min(x, k),
		rightHalf:  min(width-x-1, k),
		topHalf:    min(y, k),
		bottomHalf: min(height-y-1, k),
	}
	w.width = w.leftHalf + w.rightHalf + 1
	w.height = w.topHalf + w.bottomHalf + 1
	w.minStartX = max(0, x-leftSteps-w.leftHalf)
	w.maxStartX = min(width-w.width, x+rightSteps-w.leftHalf)
	return w
}

// matcher evaluates the block-matching kernel for single pixels.
type matcher struct {
	k          int
	leftSteps  int
	rightSteps int
	sad        sadFunc
}

func newMatcher(p Parameters, sad sadFunc) matcher {
	return matcher{
		k:          p.HalfWidth(),
		leftSteps:  p.LeftScanSteps,
		rightSteps: p.RightScanSteps,
		sad:        sad,
	}
}

func (m matcher) scratchLen() int {
	return m.leftSteps + m.rightSteps + 1
}

// match returns the refined disparity at (y, x). scratch must hold at least
// scratchLen values and must not be shared with a concurrent call.
func (m matcher) match(left, right plane, y, x int, scratch []int32) float32 {
	w := clipWindow(y, x, left.width, left.height, m.k, m.leftSteps, m.rightSteps)

	minY := y - w.topHalf
	tmpl := left.pix[minY*left.stride+x-w.leftHalf:]
	row := minY * right.stride

	costs := scratch[:w.maxStartX-w.minStartX+1]
	bestIndex := 0
	bestSAD := int32(math.MaxInt32)
	for xx := w.minStartX; xx <= w.maxStartX; xx++ {
		sad := m.sad(tmpl, right.pix[row+xx:], left.stride, right.stride, w.width, w.height)
		costs[xx-w.minStartX] = sad
		if sad < bestSAD {
			bestSAD = sad
			bestIndex = xx - w.minStartX
		}
	}

	return refine(costs, bestIndex, x-w.minStartX-w.leftHalf)
}

// refine converts the winning search index into a disparity and applies
// parabolic sub-pixel interpolation over its two neighbours. No refinement
// is applied at either end of the range, for a perfect match, or when the
// three samples are collinear.
func refine(costs []int32, bestIndex, zeroIndex int) float32 {
	d := bestIndex - zeroIndex
	if d < 0 {
		d = -d
	}
	disparity := float64(d)

	if bestIndex == 0 || bestIndex == len(costs)-1 || costs[bestIndex] == 0 {
		return float32(disparity)
	}

	c1 := float64(costs[bestIndex-1])
	c2 := float64(costs[bestIndex])
	c3 := float64(costs[bestIndex+1])
	denom := c1 - 2*c2 + c3
	if denom == 0 {
		return float32(disparity)
	}
	return float32(disparity - 0.5*(c3-c1)/denom)
}
