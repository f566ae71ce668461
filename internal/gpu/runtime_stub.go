//go:build !gpu

package gpu

// Runtime is a placeholder when GPU support is not compiled.
type Runtime struct {
	Platform PlatformInfo
	Device   DeviceInfo
}

// Buffer is a placeholder device buffer.
type Buffer struct{}

// Program is a placeholder compiled program.
type Program struct{}

// Kernel is a placeholder kernel handle.
type Kernel struct{}

// InitOpenCL returns an error when GPU support is not compiled in.
func InitOpenCL() (*Runtime, error) {
	return nil, ErrNotBuilt
}

// Close is a no-op without GPU support.
func (r *Runtime) Close() {}

// EnumeratePlatforms returns an error when GPU support is not compiled in.
func EnumeratePlatforms() ([]PlatformInfo, error) {
	return nil, ErrNotBuilt
}

func (r *Runtime) CreateBuffer(MemAccess, int) (*Buffer, error) { return nil, ErrNotBuilt }

func (r *Runtime) BuildProgram(string) (*Program, error) { return nil, ErrNotBuilt }

func (r *Runtime) WriteBytes(*Buffer, []byte) error { return ErrNotBuilt }

func (r *Runtime) ReadFloats(*Buffer, []float32) error { return ErrNotBuilt }

func (r *Runtime) RunKernel1D(*Kernel, int) error { return ErrNotBuilt }

func (b *Buffer) Size() int { return 0 }

func (b *Buffer) Release() {}

func (p *Program) CreateKernel(string) (*Kernel, error) { return nil, ErrNotBuilt }

func (p *Program) Release() {}

func (k *Kernel) SetArgInt32(int, int32) error { return ErrNotBuilt }

func (k *Kernel) SetArgBuffer(int, *Buffer) error { return ErrNotBuilt }

func (k *Kernel) Release() {}
