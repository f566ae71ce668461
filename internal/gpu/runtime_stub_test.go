//go:build !gpu

package gpu

import (
	"errors"
	"testing"
)

func TestStub_ReportsNotBuilt(t *testing.T) {
	if _, err := InitOpenCL(); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("InitOpenCL() error = %v, want ErrNotBuilt", err)
	}
	if _, err := EnumeratePlatforms(); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("EnumeratePlatforms() error = %v, want ErrNotBuilt", err)
	}
}
