//go:build gpu

package gpu

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>

static const char* blockmatch_cl_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_BUFFER_SIZE: return "CL_INVALID_BUFFER_SIZE";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_ARG_SIZE: return "CL_INVALID_ARG_SIZE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_DIMENSION: return "CL_INVALID_WORK_DIMENSION";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	case CL_INVALID_WORK_ITEM_SIZE: return "CL_INVALID_WORK_ITEM_SIZE";
	case CL_INVALID_OPERATION: return "CL_INVALID_OPERATION";
	default: return "CL_UNKNOWN_ERROR";
	}
}

static cl_command_queue blockmatch_create_queue(cl_context ctx, cl_device_id device, cl_int *status) {
#if CL_TARGET_OPENCL_VERSION >= 200
	const cl_queue_properties props[] = {0};
	return clCreateCommandQueueWithProperties(ctx, device, props, status);
#else
	return clCreateCommandQueue(ctx, device, 0, status);
#endif
}

static cl_program blockmatch_create_program(cl_context ctx, const char *src, cl_int *status) {
	return clCreateProgramWithSource(ctx, 1, &src, NULL, status);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"
)

// Runtime owns the OpenCL context and command queue of one device.
type Runtime struct {
	platformID C.cl_platform_id
	deviceID   C.cl_device_id
	context    C.cl_context
	queue      C.cl_command_queue
	Platform   PlatformInfo
	Device     DeviceInfo
}

// Buffer is a device memory object.
type Buffer struct {
	mem  C.cl_mem
	size int
}

// Program is a compiled OpenCL program.
type Program struct {
	rt      *Runtime
	program C.cl_program
}

// Kernel is an entry point of a Program.
type Kernel struct {
	kernel C.cl_kernel
}

// ErrNoDevices indicates that no usable OpenCL devices were found.
var ErrNoDevices = errors.New("no OpenCL devices found")

// InitOpenCL selects a device (GPU preferred, then CPU) and creates a context.
func InitOpenCL() (*Runtime, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	platform, device, ok := pickDevice(records)
	if !ok {
		return nil, ErrNoDevices
	}

	var status C.cl_int

	context := C.clCreateContext(nil, 1, &device.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}

	queue := C.blockmatch_create_queue(context, device.id, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseContext(context)
		return nil, statusError("clCreateCommandQueue", status)
	}

	slog.Debug("OpenCL context created", "platform", platform.info.Name, "device", device.info.Name)

	return &Runtime{
		platformID: platform.id,
		deviceID:   device.id,
		context:    context,
		queue:      queue,
		Platform:   platform.info,
		Device:     device.info,
	}, nil
}

func pickDevice(records []platformRecord) (platformRecord, deviceRecord, bool) {
	for _, want := range []DeviceType{DeviceTypeGPU, DeviceTypeCPU} {
		for _, platform := range records {
			for _, device := range platform.devices {
				if device.info.Type == want {
					return platform, device, true
				}
			}
		}
	}
	for _, platform := range records {
		if len(platform.devices) > 0 {
			return platform, platform.devices[0], true
		}
	}
	return platformRecord{}, deviceRecord{}, false
}

// Close flushes the queue and releases the queue and context.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.queue != nil {
		C.clFinish(r.queue)
		C.clReleaseCommandQueue(r.queue)
		r.queue = nil
	}
	if r.context != nil {
		C.clReleaseContext(r.context)
		r.context = nil
	}
}

// CreateBuffer allocates size bytes of device memory.
func (r *Runtime) CreateBuffer(access MemAccess, size int) (*Buffer, error) {
	flags := C.cl_mem_flags(C.CL_MEM_READ_WRITE)
	switch access {
	case MemReadOnly:
		flags = C.CL_MEM_READ_ONLY
	case MemWriteOnly:
		flags = C.CL_MEM_WRITE_ONLY
	}

	var status C.cl_int
	mem := C.clCreateBuffer(r.context, flags, C.size_t(size), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer", status)
	}
	return &Buffer{mem: mem, size: size}, nil
}

// BuildProgram compiles source for the runtime's device. A failed build
// returns *BuildError with the driver's build log.
func (r *Runtime) BuildProgram(source string) (*Program, error) {
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))

	var status C.cl_int
	program := C.blockmatch_create_program(r.context, src, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}

	status = C.clBuildProgram(program, 1, &r.deviceID, nil, nil, nil)
	if status != C.CL_SUCCESS {
		buildErr := &BuildError{
			Status: C.GoString(C.blockmatch_cl_error_string(status)),
			Log:    r.buildLog(program),
		}
		C.clReleaseProgram(program)
		return nil, buildErr
	}

	return &Program{rt: r, program: program}, nil
}

func (r *Runtime) buildLog(program C.cl_program) string {
	var size C.size_t
	if status := C.clGetProgramBuildInfo(program, r.deviceID, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log size", "err", int(status))
		return ""
	}
	if size == 0 {
		return ""
	}

	buf := make([]byte, int(size))
	if status := C.clGetProgramBuildInfo(program, r.deviceID, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log", "err", int(status))
		return ""
	}
	return trimNull(buf)
}

// WriteBytes copies src into b and blocks until the transfer completes.
func (r *Runtime) WriteBytes(b *Buffer, src []byte) error {
	if len(src) == 0 {
		return nil
	}
	if len(src) > b.size {
		return fmt.Errorf("clEnqueueWriteBuffer: %d bytes exceed buffer of %d", len(src), b.size)
	}
	status := C.clEnqueueWriteBuffer(r.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(src)), unsafe.Pointer(&src[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueWriteBuffer", status)
	}
	return nil
}

// ReadFloats copies len(dst) floats out of b and blocks until done.
func (r *Runtime) ReadFloats(b *Buffer, dst []float32) error {
	if len(dst) == 0 {
		return nil
	}
	n := len(dst) * int(unsafe.Sizeof(float32(0)))
	if n > b.size {
		return fmt.Errorf("clEnqueueReadBuffer: %d bytes exceed buffer of %d", n, b.size)
	}
	status := C.clEnqueueReadBuffer(r.queue, b.mem, C.CL_TRUE, 0, C.size_t(n), unsafe.Pointer(&dst[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueReadBuffer", status)
	}
	return nil
}

// RunKernel1D launches k over global work items and waits for completion.
// The local size is left to the driver because global need not be a
// multiple of any work-group size.
func (r *Runtime) RunKernel1D(k *Kernel, global int) error {
	g := C.size_t(global)
	status := C.clEnqueueNDRangeKernel(r.queue, k.kernel, 1, nil, &g, nil, 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueNDRangeKernel", status)
	}
	status = C.clFinish(r.queue)
	if status != C.CL_SUCCESS {
		return statusError("clFinish", status)
	}
	return nil
}

// Size returns the allocation size in bytes.
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return b.size
}

// Release frees the device memory.
func (b *Buffer) Release() {
	if b == nil || b.mem == nil {
		return
	}
	C.clReleaseMemObject(b.mem)
	b.mem = nil
}

// CreateKernel returns the named entry point.
func (p *Program) CreateKernel(name string) (*Kernel, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var status C.cl_int
	kernel := C.clCreateKernel(p.program, cname, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateKernel("+name+")", status)
	}
	return &Kernel{kernel: kernel}, nil
}

// Release frees the program.
func (p *Program) Release() {
	if p == nil || p.program == nil {
		return
	}
	C.clReleaseProgram(p.program)
	p.program = nil
}

// SetArgInt32 binds a scalar int argument.
func (k *Kernel) SetArgInt32(index int, value int32) error {
	v := C.cl_int(value)
	status := C.clSetKernelArg(k.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(v)), unsafe.Pointer(&v))
	if status != C.CL_SUCCESS {
		return statusError(fmt.Sprintf("clSetKernelArg(%d)", index), status)
	}
	return nil
}

// SetArgBuffer binds a memory argument.
func (k *Kernel) SetArgBuffer(index int, b *Buffer) error {
	status := C.clSetKernelArg(k.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(b.mem)), unsafe.Pointer(&b.mem))
	if status != C.CL_SUCCESS {
		return statusError(fmt.Sprintf("clSetKernelArg(%d)", index), status)
	}
	return nil
}

// Release frees the kernel.
func (k *Kernel) Release() {
	if k == nil || k.kernel == nil {
		return
	}
	C.clReleaseKernel(k.kernel)
	k.kernel = nil
}

// EnumeratePlatforms returns discovered platforms with their devices.
func EnumeratePlatforms() ([]PlatformInfo, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	out := make([]PlatformInfo, len(records))
	for i, platform := range records {
		out[i] = platform.info
	}
	return out, nil
}

type platformRecord struct {
	id      C.cl_platform_id
	info    PlatformInfo
	devices []deviceRecord
}

type deviceRecord struct {
	id   C.cl_device_id
	info DeviceInfo
}

func enumeratePlatformRecords() ([]platformRecord, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	platformIDs := make([]C.cl_platform_id, int(count))
	status = C.clGetPlatformIDs(count, &platformIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	records := make([]platformRecord, 0, int(count))
	for _, pid := range platformIDs {
		rec := platformRecord{id: pid}
		var err error
		if rec.info.Name, err = getPlatformString(pid, C.CL_PLATFORM_NAME); err != nil {
			return nil, err
		}
		if rec.info.Vendor, err = getPlatformString(pid, C.CL_PLATFORM_VENDOR); err != nil {
			return nil, err
		}
		if rec.info.Version, err = getPlatformString(pid, C.CL_PLATFORM_VERSION); err != nil {
			return nil, err
		}

		devices, err := enumerateDevices(pid)
		if err != nil && !errors.Is(err, ErrNoDevices) {
			return nil, err
		}

		rec.devices = devices
		for _, device := range devices {
			rec.info.Devices = append(rec.info.Devices, device.info)
		}
		records = append(records, rec)
	}

	return records, nil
}

func enumerateDevices(platform C.cl_platform_id) ([]deviceRecord, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND || (status == C.CL_SUCCESS && count == 0) {
		return nil, ErrNoDevices
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}

	deviceIDs := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, count, &deviceIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]deviceRecord, 0, int(count))
	for _, id := range deviceIDs {
		info, err := buildDeviceInfo(id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, deviceRecord{id: id, info: info})
	}
	return devices, nil
}

func buildDeviceInfo(id C.cl_device_id) (DeviceInfo, error) {
	var info DeviceInfo
	var err error
	if info.Name, err = getDeviceString(id, C.CL_DEVICE_NAME); err != nil {
		return DeviceInfo{}, err
	}
	if info.Vendor, err = getDeviceString(id, C.CL_DEVICE_VENDOR); err != nil {
		return DeviceInfo{}, err
	}
	if info.Version, err = getDeviceString(id, C.CL_DEVICE_VERSION); err != nil {
		return DeviceInfo{}, err
	}

	var rawType C.cl_device_type
	status := C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(rawType)), unsafe.Pointer(&rawType), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(type)", status)
	}
	info.Type = mapDeviceType(rawType)

	var computeUnits C.cl_uint
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(computeUnits)", status)
	}
	info.MaxComputeUnits = uint32(computeUnits)

	var groupSize C.size_t
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_WORK_GROUP_SIZE, C.size_t(unsafe.Sizeof(groupSize)), unsafe.Pointer(&groupSize), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(workGroupSize)", status)
	}
	info.MaxWorkGroupSize = uint64(groupSize)

	var globalMem C.cl_ulong
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_GLOBAL_MEM_SIZE, C.size_t(unsafe.Sizeof(globalMem)), unsafe.Pointer(&globalMem), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(globalMem)", status)
	}
	info.GlobalMemBytes = uint64(globalMem)

	return info, nil
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	status := C.clGetPlatformInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}
	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}
	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	if len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func statusError(prefix string, status C.cl_int) error {
	return fmt.Errorf("%s: %s (%d)", prefix, C.GoString(C.blockmatch_cl_error_string(status)), int(status))
}
