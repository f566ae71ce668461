package disparity

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
)

// Offload runs the block-matching kernel on a Device. Device resources are
// acquired on the first ComputeDisparity and sized from that call's images;
// later calls must use the same dimensions. Each call uploads both images,
// launches once and downloads the result, all blocking.
//
// Calling Configure after resources exist releases them; the next
// ComputeDisparity rebuilds them with the new parameters bound.
type Offload struct {
	mu         sync.Mutex
	params     Parameters
	configured bool
	opener     DeviceOpener
	res        *deviceResources
	closed     bool
}

// deviceResources is everything acquired for one (parameters, size) pair.
type deviceResources struct {
	device  Device
	left    Buffer
	right   Buffer
	out     Buffer
	kernel  Kernel
	width   int
	height  int
	staging []uint8
}

// NewOffload validates params and returns a strategy whose device is opened
// lazily with the opener set by WithDevice (OpenCL by default).
func NewOffload(params Parameters, opts ...Option) (*Offload, error) {
	o := buildOptions(opts)
	s := &Offload{opener: o.opener}
	if err := s.Configure(params); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Offload) Name() string { return string(AlgorithmOffload) }

func (s *Offload) Configure(params Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.params = params
	s.configured = true
	if s.res != nil {
		slog.Debug("Offload reconfigured, releasing device resources",
			"block_size", params.BlockSize,
			"left_scan_steps", params.LeftScanSteps,
			"right_scan_steps", params.RightScanSteps)
		err := s.res.release()
		s.res = nil
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Offload) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Initialized reports whether device resources are currently held.
func (s *Offload) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res != nil
}

func (s *Offload) ComputeDisparity(left, right *image.Gray, out *Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.configured {
		return ErrNotConfigured
	}
	if err := checkInputs(left, right, out); err != nil {
		return err
	}

	l, r := planeOf(left), planeOf(right)
	if s.res == nil {
		res, err := acquireDevice(s.opener, s.params, l.width, l.height)
		if err != nil {
			return err
		}
		s.res = res
	} else if s.res.width != l.width || s.res.height != l.height {
		return fmt.Errorf("%w: device buffers sized for (%dx%d), got (%dx%d)",
			ErrImageSizeMismatch, s.res.height, s.res.width, l.height, l.width)
	}

	return s.res.run(l, r, out.Pix[:l.width*l.height])
}

// Close releases every device resource. It is safe to call more than once.
func (s *Offload) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.res == nil {
		return nil
	}
	err := s.res.release()
	s.res = nil
	return err
}

// acquireDevice opens the device, allocates the three buffers, builds the
// kernel and binds its arguments. On failure everything acquired so far is
// released before returning.
func acquireDevice(open DeviceOpener, p Parameters, width, height int) (_ *deviceResources, err error) {
	dev, err := open()
	if err != nil {
		return nil, err
	}

	res := &deviceResources{device: dev, width: width, height: height}
	defer func() {
		if err != nil {
			err = errors.Join(err, res.release())
		}
	}()

	pixels := width * height
	if res.left, err = dev.NewBuffer(BufferReadOnly, pixels); err != nil {
		return nil, err
	}
	if res.right, err = dev.NewBuffer(BufferReadOnly, pixels); err != nil {
		return nil, err
	}
	if res.out, err = dev.NewBuffer(BufferWriteOnly, pixels*4); err != nil {
		return nil, err
	}
	if res.kernel, err = dev.Build(KernelSource, KernelEntry); err != nil {
		return nil, err
	}

	args := [kernelArgCount]any{
		ArgHeight:         int32(height),
		ArgWidth:          int32(width),
		ArgBlockSize:      int32(p.BlockSize),
		ArgLeftScanSteps:  int32(p.LeftScanSteps),
		ArgRightScanSteps: int32(p.RightScanSteps),
		ArgLeftImage:      res.left,
		ArgRightImage:     res.right,
		ArgDisparity:      res.out,
	}
	for i, v := range args {
		if err = res.kernel.SetArg(i, v); err != nil {
			return nil, fmt.Errorf("bind kernel argument %d: %w", i, err)
		}
	}

	slog.Debug("Offload device resources acquired",
		"device", dev.Name(), "width", width, "height", height)
	return res, nil
}

func (r *deviceResources) run(left, right plane, out []float32) error {
	if len(r.staging) == 0 && (left.stride != left.width || right.stride != right.width) {
		r.staging = make([]uint8, r.width*r.height)
	}
	if err := r.device.WriteBytes(r.left, left.packed(r.staging)); err != nil {
		return err
	}
	if err := r.device.WriteBytes(r.right, right.packed(r.staging)); err != nil {
		return err
	}
	if err := r.device.Launch(r.kernel, r.width*r.height); err != nil {
		return err
	}
	return r.device.ReadFloats(r.out, out)
}

// release frees resources in reverse acquisition order and closes the device.
func (r *deviceResources) release() error {
	var errs []error
	if r.kernel != nil {
		errs = append(errs, r.kernel.Release())
	}
	for _, b := range []Buffer{r.out, r.right, r.left} {
		if b != nil {
			errs = append(errs, b.Release())
		}
	}
	if r.device != nil {
		errs = append(errs, r.device.Close())
	}
	*r = deviceResources{}
	return errors.Join(errs...)
}
