package disparity

import (
	"image"
	"log/slog"
)

// Threaded partitions the flattened row×column pixel space across a fixed
// worker pool. Pixels are independent, each chunk owns its scratch buffer
// and writes a disjoint slice of the output, so no locking is needed.
type Threaded struct {
	cpuState
	workers   int
	vectorize bool
	laneWidth int
}

// NewThreaded returns a worker-pool strategy using the scalar SAD loop.
func NewThreaded(params Parameters, opts ...Option) (*Threaded, error) {
	return newThreaded(params, false, opts)
}

// NewThreadedVectorized returns a worker-pool strategy using the
// lane-parallel SAD reduction.
func NewThreadedVectorized(params Parameters, opts ...Option) (*Threaded, error) {
	return newThreaded(params, true, opts)
}

func newThreaded(params Parameters, vectorize bool, opts []Option) (*Threaded, error) {
	o := buildOptions(opts)
	t := &Threaded{
		workers:   o.workers,
		vectorize: vectorize,
		laneWidth: o.laneWidth,
	}
	if err := t.Configure(params); err != nil {
		return nil, err
	}
	slog.Debug("Threaded strategy created", "name", t.Name(), "workers", t.workers)
	return t, nil
}

func (t *Threaded) Name() string {
	if t.vectorize {
		return string(AlgorithmThreadedVectorized)
	}
	return string(AlgorithmThreaded)
}

func (t *Threaded) Configure(params Parameters) error { return t.configure(params) }

func (t *Threaded) Parameters() Parameters { return t.params }

// Workers returns the pool size.
func (t *Threaded) Workers() int { return t.workers }

func (t *Threaded) ComputeDisparity(left, right *image.Gray, out *Map) error {
	if err := t.ready(); err != nil {
		return err
	}
	if err := checkInputs(left, right, out); err != nil {
		return err
	}

	sad := sadScalar
	if t.vectorize {
		sad = lanesSAD(t.laneWidth)
	}
	m := newMatcher(t.params, sad)
	l, r := planeOf(left), planeOf(right)

	return parallelRange(l.width*l.height, t.workers, func(start, end int) error {
		matchPixels(m, l, r, out.Pix, start, end)
		return nil
	})
}

func (t *Threaded) Close() error { return nil }
