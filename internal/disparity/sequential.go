package disparity

import "image"

// Sequential scans pixels in row-major order on the calling goroutine with
// the scalar SAD loop. It is the reference for every other strategy.
type Sequential struct {
	cpuState
}

// NewSequential validates params and returns a ready strategy.
func NewSequential(params Parameters) (*Sequential, error) {
	s := &Sequential{}
	if err := s.Configure(params); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sequential) Name() string { return string(AlgorithmSequential) }

func (s *Sequential) Configure(params Parameters) error { return s.configure(params) }

func (s *Sequential) Parameters() Parameters { return s.params }

func (s *Sequential) ComputeDisparity(left, right *image.Gray, out *Map) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := checkInputs(left, right, out); err != nil {
		return err
	}
	l, r := planeOf(left), planeOf(right)
	matchPixels(newMatcher(s.params, sadScalar), l, r, out.Pix, 0, l.width*l.height)
	return nil
}

func (s *Sequential) Close() error { return nil }
