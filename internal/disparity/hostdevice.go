package disparity

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// HostDevice is an in-process Device that executes the block-matching kernel
// on a goroutine pool. It honours the same buffer, build and positional
// argument contract as a real accelerator, which makes the offload host path
// testable without OpenCL.
type HostDevice struct {
	workers int

	mu     sync.Mutex
	closed bool
	live   int // buffers and kernels not yet released
}

// NewHostDevice returns a host device with the given pool size.
// Values below one select GOMAXPROCS.
func NewHostDevice(workers int) *HostDevice {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &HostDevice{workers: workers}
}

// HostDeviceOpener returns a DeviceOpener creating HostDevices.
func HostDeviceOpener(workers int) DeviceOpener {
	return func() (Device, error) {
		return NewHostDevice(workers), nil
	}
}

var errDeviceClosed = errors.New("device closed")

type hostBuffer struct {
	dev    *HostDevice
	access BufferAccess
	data   []byte
	floats []float32
}

func (b *hostBuffer) Size() int {
	if b.floats != nil {
		return len(b.floats) * 4
	}
	return len(b.data)
}

func (b *hostBuffer) Release() error {
	b.dev.untrack()
	b.data, b.floats = nil, nil
	return nil
}

type hostKernel struct {
	dev  *HostDevice
	args [kernelArgCount]any
	set  [kernelArgCount]bool
}

func (k *hostKernel) SetArg(index int, value any) error {
	if index < 0 || index >= kernelArgCount {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidKernelArg, index, kernelArgCount)
	}
	switch index {
	case ArgHeight, ArgWidth, ArgBlockSize, ArgLeftScanSteps, ArgRightScanSteps:
		if _, ok := value.(int32); !ok {
			return fmt.Errorf("%w: index %d expects int32, got %T", ErrInvalidKernelArg, index, value)
		}
	default:
		buf, ok := value.(*hostBuffer)
		if !ok {
			return fmt.Errorf("%w: index %d expects a host buffer, got %T", ErrInvalidKernelArg, index, value)
		}
		if buf.dev != k.dev {
			return fmt.Errorf("%w: index %d buffer belongs to another device", ErrInvalidKernelArg, index)
		}
	}
	k.args[index] = value
	k.set[index] = true
	return nil
}

func (k *hostKernel) Release() error {
	k.dev.untrack()
	return nil
}

func (d *HostDevice) Name() string {
	return fmt.Sprintf("host (%d workers)", d.workers)
}

func (d *HostDevice) track() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDeviceClosed
	}
	d.live++
	return nil
}

func (d *HostDevice) untrack() {
	d.mu.Lock()
	d.live--
	d.mu.Unlock()
}

// Live reports how many buffers and kernels have not been released.
func (d *HostDevice) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Closed reports whether Close was called.
func (d *HostDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *HostDevice) NewBuffer(access BufferAccess, size int) (Buffer, error) {
	if size <= 0 {
		return nil, &DeviceError{Op: "NewBuffer", Err: fmt.Errorf("invalid buffer size %d", size)}
	}
	if err := d.track(); err != nil {
		return nil, &DeviceError{Op: "NewBuffer", Err: err}
	}
	b := &hostBuffer{dev: d, access: access}
	if access == BufferWriteOnly {
		b.floats = make([]float32, (size+3)/4)
	} else {
		b.data = make([]byte, size)
	}
	return b, nil
}

// Build checks that source declares entry; the host device executes the Go
// rendition of the same kernel.
func (d *HostDevice) Build(source, entry string) (Kernel, error) {
	if entry != KernelEntry || !strings.Contains(source, "__kernel void "+entry) {
		return nil, &DeviceError{
			Op:  "Build",
			Err: errors.New("program build failure"),
			Log: fmt.Sprintf("error: no kernel named '%s' in program source", entry),
		}
	}
	if err := d.track(); err != nil {
		return nil, &DeviceError{Op: "Build", Err: err}
	}
	return &hostKernel{dev: d}, nil
}

func (d *HostDevice) WriteBytes(dst Buffer, src []uint8) error {
	b, ok := dst.(*hostBuffer)
	if !ok || b.data == nil {
		return &DeviceError{Op: "WriteBytes", Err: errors.New("not a readable host buffer")}
	}
	if len(src) > len(b.data) {
		return &DeviceError{Op: "WriteBytes", Err: fmt.Errorf("write of %d bytes exceeds buffer of %d", len(src), len(b.data))}
	}
	copy(b.data, src)
	return nil
}

func (d *HostDevice) ReadFloats(src Buffer, dst []float32) error {
	b, ok := src.(*hostBuffer)
	if !ok || b.floats == nil {
		return &DeviceError{Op: "ReadFloats", Err: errors.New("not a writable host buffer")}
	}
	if len(dst) > len(b.floats) {
		return &DeviceError{Op: "ReadFloats", Err: fmt.Errorf("read of %d floats exceeds buffer of %d", len(dst), len(b.floats))}
	}
	copy(dst, b.floats)
	return nil
}

func (d *HostDevice) Launch(k Kernel, globalSize int) error {
	hk, ok := k.(*hostKernel)
	if !ok || hk.dev != d {
		return &DeviceError{Op: "Launch", Err: errors.New("kernel not built on this device")}
	}
	for i, set := range hk.set {
		if !set {
			return &DeviceError{Op: "Launch", Err: fmt.Errorf("%w: argument %d not set", ErrInvalidKernelArg, i)}
		}
	}

	height := int(hk.args[ArgHeight].(int32))
	width := int(hk.args[ArgWidth].(int32))
	params := Parameters{
		BlockSize:      int(hk.args[ArgBlockSize].(int32)),
		LeftScanSteps:  int(hk.args[ArgLeftScanSteps].(int32)),
		RightScanSteps: int(hk.args[ArgRightScanSteps].(int32)),
	}
	leftBuf := hk.args[ArgLeftImage].(*hostBuffer)
	rightBuf := hk.args[ArgRightImage].(*hostBuffer)
	outBuf := hk.args[ArgDisparity].(*hostBuffer)

	pixels := width * height
	if leftBuf.data == nil || rightBuf.data == nil || outBuf.floats == nil ||
		len(leftBuf.data) < pixels || len(rightBuf.data) < pixels || len(outBuf.floats) < pixels {
		return &DeviceError{Op: "Launch", Err: fmt.Errorf("buffers too small for %dx%d image", height, width)}
	}

	l := plane{pix: leftBuf.data, stride: width, width: width, height: height}
	r := plane{pix: rightBuf.data, stride: width, width: width, height: height}
	m := newMatcher(params, sadScalar)
	n := min(globalSize, pixels)

	return parallelRange(n, d.workers, func(start, end int) error {
		matchPixels(m, l, r, outBuf.floats, start, end)
		return nil
	})
}

func (d *HostDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
