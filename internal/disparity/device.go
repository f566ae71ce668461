package disparity

import (
	_ "embed"
)

// Kernel argument positions of the device entry point. The device contract
// is positional: any backend must accept exactly these eight arguments.
const (
	ArgHeight = iota
	ArgWidth
	ArgBlockSize
	ArgLeftScanSteps
	ArgRightScanSteps
	ArgLeftImage
	ArgRightImage
	ArgDisparity

	kernelArgCount
)

// KernelEntry is the name of the device entry point.
const KernelEntry = "computeDisparityKernel"

// KernelSource is the OpenCL C source of the block-matching kernel.
//
//go:embed kernels/block_match.cl
var KernelSource string

// BufferAccess describes how the kernel uses a device buffer.
type BufferAccess int

const (
	BufferReadOnly BufferAccess = iota
	BufferWriteOnly
)

// Buffer is device-resident memory.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() int
	Release() error
}

// Kernel is a built device entry point with bindable arguments.
type Kernel interface {
	// SetArg binds value to the argument at index. Scalars are int32,
	// memory arguments are Buffers obtained from the same Device.
	SetArg(index int, value any) error
	Release() error
}

// Device is an accelerator able to run KernelSource. All transfers and
// launches are blocking.
type Device interface {
	Name() string
	NewBuffer(access BufferAccess, size int) (Buffer, error)

	// Build compiles source and returns the named entry point. Build failures
	// are returned as *DeviceError carrying the backend log verbatim.
	Build(source, entry string) (Kernel, error)

	WriteBytes(dst Buffer, src []uint8) error
	ReadFloats(src Buffer, dst []float32) error

	// Launch runs k over a one-dimensional range of globalSize work items and
	// waits for completion.
	Launch(k Kernel, globalSize int) error

	// Close releases the context, queue and any built programs.
	Close() error
}

// DeviceOpener creates a Device on first use.
type DeviceOpener func() (Device, error)
