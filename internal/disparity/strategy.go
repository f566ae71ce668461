package disparity

import (
	"fmt"
	"image"
	"runtime"
)

// Strategy computes a disparity map for a rectified grayscale stereo pair.
//
// Every implementation applies the same block-matching kernel and produces
// results equal to Sequential within floating tolerance.
type Strategy interface {
	// Name returns the selector name of the strategy.
	Name() string

	// Configure validates and installs new parameters. On error the previous
	// parameters stay in effect.
	Configure(params Parameters) error

	// Parameters returns the active parameters.
	Parameters() Parameters

	// ComputeDisparity fills out with the disparity of every pixel. left, right
	// and out must share the same non-zero dimensions.
	ComputeDisparity(left, right *image.Gray, out *Map) error

	// Close releases resources held by the strategy.
	Close() error
}

// Option tunes strategy construction.
type Option func(*options)

type options struct {
	workers   int
	laneWidth int
	opener    DeviceOpener
}

func defaultOptions() options {
	return options{
		workers: runtime.GOMAXPROCS(0),
		opener:  OpenCLDevice,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	o.laneWidth = normalizeLaneWidth(o.laneWidth)
	return o
}

// WithWorkers sets the worker pool size of the threaded strategies.
// Values below one select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		o.workers = n
	}
}

// WithLaneWidth overrides the byte lane width of the vectorized strategies.
// The width is rounded up to a multiple of 8 and capped at 256.
func WithLaneWidth(n int) Option {
	return func(o *options) {
		o.laneWidth = n
	}
}

// WithDevice sets how the offload strategy opens its device.
func WithDevice(open DeviceOpener) Option {
	return func(o *options) {
		if open != nil {
			o.opener = open
		}
	}
}

// checkInputs rejects empty or mismatched inputs before any pixel is touched.
func checkInputs(left, right *image.Gray, out *Map) error {
	if left == nil || left.Bounds().Empty() {
		return fmt.Errorf("%w: left image", ErrEmptyImage)
	}
	if right == nil || right.Bounds().Empty() {
		return fmt.Errorf("%w: right image", ErrEmptyImage)
	}
	lb, rb := left.Bounds(), right.Bounds()
	if lb.Dx() != rb.Dx() || lb.Dy() != rb.Dy() {
		return fmt.Errorf("%w: left image (%dx%d), right image (%dx%d)",
			ErrImageSizeMismatch, lb.Dy(), lb.Dx(), rb.Dy(), rb.Dx())
	}
	if out == nil {
		return fmt.Errorf("%w: nil disparity map", ErrImageSizeMismatch)
	}
	if out.Width != lb.Dx() || out.Height != lb.Dy() || len(out.Pix) < out.Width*out.Height {
		return fmt.Errorf("%w: images (%dx%d), disparity map (%dx%d)",
			ErrImageSizeMismatch, lb.Dy(), lb.Dx(), out.Height, out.Width)
	}
	return nil
}

// cpuState is the configuration shared by the CPU strategies.
type cpuState struct {
	params     Parameters
	configured bool
}

func (s *cpuState) configure(params Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.params = params
	s.configured = true
	return nil
}

func (s *cpuState) ready() error {
	if !s.configured {
		return ErrNotConfigured
	}
	return nil
}
