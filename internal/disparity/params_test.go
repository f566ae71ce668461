package disparity

import (
	"errors"
	"strings"
	"testing"
)

func TestParameters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Parameters
		wantErr error
		field   string
	}{
		{"defaults", DefaultParameters(), nil, ""},
		{"block size one", Parameters{BlockSize: 1}, nil, ""},
		{"zero scan steps", Parameters{BlockSize: 3}, nil, ""},
		{"negative block size", Parameters{BlockSize: -3}, ErrInvalidBlockSize, "blockSize"},
		{"zero block size", Parameters{BlockSize: 0}, ErrInvalidBlockSize, "blockSize"},
		{"even block size", Parameters{BlockSize: 8}, ErrInvalidBlockSize, "blockSize"},
		{"negative left steps", Parameters{BlockSize: 3, LeftScanSteps: -1}, ErrInvalidScanSteps, "leftScanSteps"},
		{"negative right steps", Parameters{BlockSize: 3, RightScanSteps: -1}, ErrInvalidScanSteps, "rightScanSteps"},
		{"unknown metric", Parameters{BlockSize: 3, Metric: Metric(4)}, ErrUnsupportedMetric, "metric"},
		{"block size checked first", Parameters{BlockSize: 4, LeftScanSteps: -1, Metric: Metric(2)}, ErrInvalidBlockSize, "blockSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error %T is not a *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestParameters_ValidateReasons(t *testing.T) {
	err := Parameters{BlockSize: -1}.Validate()
	if !strings.Contains(err.Error(), "less than zero") {
		t.Errorf("negative block size message = %q", err)
	}
	err = Parameters{BlockSize: 6}.Validate()
	if !strings.Contains(err.Error(), "not odd") {
		t.Errorf("even block size message = %q", err)
	}
}

func TestParameters_Derived(t *testing.T) {
	p := Parameters{BlockSize: 7, LeftScanSteps: 3, RightScanSteps: 5}
	if got := p.HalfWidth(); got != 3 {
		t.Errorf("HalfWidth() = %d, want 3", got)
	}
	if got := p.SearchWidth(); got != 9 {
		t.Errorf("SearchWidth() = %d, want 9", got)
	}
}

func TestParseMetric(t *testing.T) {
	for _, name := range []string{"", "sad", "SAD", " sum_absolute_difference "} {
		m, err := ParseMetric(name)
		if err != nil || m != MetricSAD {
			t.Errorf("ParseMetric(%q) = %v, %v", name, m, err)
		}
	}
	if _, err := ParseMetric("SSD"); !errors.Is(err, ErrUnsupportedMetric) {
		t.Errorf("ParseMetric(SSD) error = %v, want ErrUnsupportedMetric", err)
	}
	if MetricSAD.String() != "SUM_ABSOLUTE_DIFFERENCE" {
		t.Errorf("MetricSAD.String() = %q", MetricSAD.String())
	}
}
