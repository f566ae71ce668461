// Package gpu wraps the OpenCL runtime used by the offload strategy.
//
// The cgo implementation is compiled with '-tags gpu'. Without the tag every
// entry point returns ErrNotBuilt so callers can fall back cleanly.
package gpu

import (
	"errors"
	"fmt"
)

// ErrNotBuilt indicates the binary was built without GPU support.
var ErrNotBuilt = errors.New("opencl support requires building with '-tags gpu'")

// DeviceType describes the class of an OpenCL device.
type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

// DeviceInfo captures metadata about an OpenCL device.
type DeviceInfo struct {
	Name             string
	Vendor           string
	Version          string
	Type             DeviceType
	MaxComputeUnits  uint32
	MaxWorkGroupSize uint64
	GlobalMemBytes   uint64
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (%s, %s, %d CUs)", d.Name, d.Vendor, d.Type, d.MaxComputeUnits)
}

// PlatformInfo captures metadata about an OpenCL platform and its devices.
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
	Devices []DeviceInfo
}

// MemAccess selects how a kernel accesses a buffer.
type MemAccess int

const (
	MemReadOnly MemAccess = iota
	MemWriteOnly
	MemReadWrite
)

// BuildError is returned when a program fails to compile. Log holds the
// compiler output exactly as reported by the driver.
type BuildError struct {
	Status string
	Log    string
}

func (e *BuildError) Error() string {
	if e.Log == "" {
		return "clBuildProgram: " + e.Status
	}
	return "clBuildProgram: " + e.Status + "\n" + e.Log
}
