package disparity

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwbudde/blockmatch/internal/gpu"
)

// OpenCLDevice opens the first usable OpenCL device. Without '-tags gpu' or
// without an installed driver it fails with ErrBackendUnavailable.
func OpenCLDevice() (Device, error) {
	rt, err := gpu.InitOpenCL()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	slog.Info("OpenCL backend initialised",
		"device", rt.Device.Name,
		"vendor", rt.Device.Vendor,
		"compute_units", rt.Device.MaxComputeUnits)

	return &openCLDevice{rt: rt}, nil
}

type openCLDevice struct {
	rt *gpu.Runtime

	mu       sync.Mutex
	programs []*gpu.Program
}

type openCLBuffer struct {
	buf *gpu.Buffer
}

func (b *openCLBuffer) Size() int { return b.buf.Size() }

func (b *openCLBuffer) Release() error {
	b.buf.Release()
	return nil
}

type openCLKernel struct {
	k *gpu.Kernel
}

func (k *openCLKernel) SetArg(index int, value any) error {
	if index < 0 || index >= kernelArgCount {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidKernelArg, index, kernelArgCount)
	}
	switch v := value.(type) {
	case int32:
		return k.k.SetArgInt32(index, v)
	case *openCLBuffer:
		return k.k.SetArgBuffer(index, v.buf)
	default:
		return fmt.Errorf("%w: index %d has unsupported type %T", ErrInvalidKernelArg, index, value)
	}
}

func (k *openCLKernel) Release() error {
	k.k.Release()
	return nil
}

func (d *openCLDevice) Name() string {
	return d.rt.Device.String()
}

func (d *openCLDevice) NewBuffer(access BufferAccess, size int) (Buffer, error) {
	mode := gpu.MemReadOnly
	if access == BufferWriteOnly {
		mode = gpu.MemWriteOnly
	}
	buf, err := d.rt.CreateBuffer(mode, size)
	if err != nil {
		return nil, &DeviceError{Op: "NewBuffer", Err: err}
	}
	return &openCLBuffer{buf: buf}, nil
}

func (d *openCLDevice) Build(source, entry string) (Kernel, error) {
	program, err := d.rt.BuildProgram(source)
	if err != nil {
		var buildErr *gpu.BuildError
		if errors.As(err, &buildErr) {
			return nil, &DeviceError{Op: "Build", Err: errors.New(buildErr.Status), Log: buildErr.Log}
		}
		return nil, &DeviceError{Op: "Build", Err: err}
	}

	k, err := program.CreateKernel(entry)
	if err != nil {
		program.Release()
		return nil, &DeviceError{Op: "Build", Err: err}
	}

	d.mu.Lock()
	d.programs = append(d.programs, program)
	d.mu.Unlock()

	return &openCLKernel{k: k}, nil
}

func (d *openCLDevice) WriteBytes(dst Buffer, src []uint8) error {
	b, ok := dst.(*openCLBuffer)
	if !ok {
		return &DeviceError{Op: "WriteBytes", Err: fmt.Errorf("foreign buffer %T", dst)}
	}
	if err := d.rt.WriteBytes(b.buf, src); err != nil {
		return &DeviceError{Op: "WriteBytes", Err: err}
	}
	return nil
}

func (d *openCLDevice) ReadFloats(src Buffer, dst []float32) error {
	b, ok := src.(*openCLBuffer)
	if !ok {
		return &DeviceError{Op: "ReadFloats", Err: fmt.Errorf("foreign buffer %T", src)}
	}
	if err := d.rt.ReadFloats(b.buf, dst); err != nil {
		return &DeviceError{Op: "ReadFloats", Err: err}
	}
	return nil
}

func (d *openCLDevice) Launch(k Kernel, globalSize int) error {
	ck, ok := k.(*openCLKernel)
	if !ok {
		return &DeviceError{Op: "Launch", Err: fmt.Errorf("foreign kernel %T", k)}
	}
	if err := d.rt.RunKernel1D(ck.k, globalSize); err != nil {
		return &DeviceError{Op: "Launch", Err: err}
	}
	return nil
}

func (d *openCLDevice) Close() error {
	d.mu.Lock()
	for _, p := range d.programs {
		p.Release()
	}
	d.programs = nil
	d.mu.Unlock()

	d.rt.Close()
	return nil
}
