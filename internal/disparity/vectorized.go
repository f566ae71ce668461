package disparity

import "image"

// Vectorized is Sequential with the lane-parallel SAD reduction.
type Vectorized struct {
	cpuState
	laneWidth int
}

// NewVectorized validates params and returns a ready strategy.
func NewVectorized(params Parameters, opts ...Option) (*Vectorized, error) {
	o := buildOptions(opts)
	v := &Vectorized{laneWidth: o.laneWidth}
	if err := v.Configure(params); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vectorized) Name() string { return string(AlgorithmVectorized) }

func (v *Vectorized) Configure(params Parameters) error { return v.configure(params) }

func (v *Vectorized) Parameters() Parameters { return v.params }

// LaneWidth returns the number of byte lanes per SAD chunk.
func (v *Vectorized) LaneWidth() int { return v.laneWidth }

func (v *Vectorized) ComputeDisparity(left, right *image.Gray, out *Map) error {
	if err := v.ready(); err != nil {
		return err
	}
	if err := checkInputs(left, right, out); err != nil {
		return err
	}
	l, r := planeOf(left), planeOf(right)
	matchPixels(newMatcher(v.params, lanesSAD(v.laneWidth)), l, r, out.Pix, 0, l.width*l.height)
	return nil
}

func (v *Vectorized) Close() error { return nil }
