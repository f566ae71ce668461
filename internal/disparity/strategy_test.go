package disparity

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"testing"
)

const tolerance = 1e-4

// allStrategies builds one instance of every strategy. Offload runs on the
// host device so the test needs no accelerator.
func allStrategies(t testing.TB, p Parameters) []Strategy {
	t.Helper()
	var out []Strategy
	for _, name := range SupportedAlgorithms() {
		s, err := New(name, p, WithWorkers(3), WithDevice(HostDeviceOpener(3)))
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		t.Cleanup(func() { _ = s.Close() })
		out = append(out, s)
	}
	return out
}

func compute(t testing.TB, s Strategy, left, right *image.Gray) *Map {
	t.Helper()
	out := NewMapFor(left)
	if err := s.ComputeDisparity(left, right, out); err != nil {
		t.Fatalf("%s: ComputeDisparity: %v", s.Name(), err)
	}
	return out
}

func assertMapsClose(t *testing.T, name string, got, want *Map) {
	t.Helper()
	for i := range want.Pix {
		if math.Abs(float64(got.Pix[i]-want.Pix[i])) > tolerance {
			t.Fatalf("%s: pixel (%d,%d) = %v, want %v",
				name, i%want.Width, i/want.Width, got.Pix[i], want.Pix[i])
		}
	}
}

// TestStrategies_MatchSequential verifies every strategy reproduces the
// reference output across parameter sets and image shapes
func TestStrategies_MatchSequential(t *testing.T) {
	cases := []struct {
		w, h int
		p    Parameters
	}{
		{33, 21, Parameters{BlockSize: 1, LeftScanSteps: 4, RightScanSteps: 4}},
		{33, 21, Parameters{BlockSize: 3, LeftScanSteps: 0, RightScanSteps: 6}},
		{40, 25, Parameters{BlockSize: 7, LeftScanSteps: 8, RightScanSteps: 3}},
		{64, 16, Parameters{BlockSize: 11, LeftScanSteps: 12, RightScanSteps: 12}},
		{17, 40, Parameters{BlockSize: 41, LeftScanSteps: 5, RightScanSteps: 5}},
		{5, 5, Parameters{BlockSize: 9, LeftScanSteps: 50, RightScanSteps: 50}},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%dx%d/b%d/l%d/r%d", tc.w, tc.h, tc.p.BlockSize, tc.p.LeftScanSteps, tc.p.RightScanSteps), func(t *testing.T) {
			left, right := shiftedPair(tc.w, tc.h, 2, int64(tc.w*tc.h))
			// Mix in noise so costs have genuine minima and refinement runs.
			noise := randomGray(tc.w, tc.h, 99)
			for i := range right.Pix {
				right.Pix[i] = uint8((int(right.Pix[i]) + int(noise.Pix[i]%9)) % 256)
			}

			ref, _ := NewSequential(tc.p)
			want := compute(t, ref, left, right)

			for _, s := range allStrategies(t, tc.p) {
				assertMapsClose(t, s.Name(), compute(t, s, left, right), want)
			}
		})
	}
}

// TestStrategies_LaneWidths runs the vectorized strategies with every lane
// width, including ones narrower than the template
func TestStrategies_LaneWidths(t *testing.T) {
	p := Parameters{BlockSize: 13, LeftScanSteps: 5, RightScanSteps: 5}
	left, right := shiftedPair(48, 20, 1, 8)
	ref, _ := NewSequential(p)
	want := compute(t, ref, left, right)

	for _, lanes := range []int{8, 16, 32, 256} {
		v, err := NewVectorized(p, WithLaneWidth(lanes))
		if err != nil {
			t.Fatal(err)
		}
		if v.LaneWidth() != lanes {
			t.Errorf("LaneWidth() = %d, want %d", v.LaneWidth(), lanes)
		}
		assertMapsClose(t, fmt.Sprintf("vectorized/%d", lanes), compute(t, v, left, right), want)

		tv, err := NewThreadedVectorized(p, WithLaneWidth(lanes), WithWorkers(4))
		if err != nil {
			t.Fatal(err)
		}
		assertMapsClose(t, fmt.Sprintf("threaded-vectorized/%d", lanes), compute(t, tv, left, right), want)
	}
}

// TestStrategies_Deterministic checks repeated calls on one instance
func TestStrategies_Deterministic(t *testing.T) {
	p := Parameters{BlockSize: 5, LeftScanSteps: 7, RightScanSteps: 7}
	left, right := shiftedPair(37, 23, 3, 42)

	for _, s := range allStrategies(t, p) {
		first := compute(t, s, left, right)
		for i := 0; i < 3; i++ {
			next := compute(t, s, left, right)
			for j := range first.Pix {
				if first.Pix[j] != next.Pix[j] {
					t.Fatalf("%s: run %d differs at %d: %v != %v", s.Name(), i, j, next.Pix[j], first.Pix[j])
				}
			}
		}
	}
}

// TestStrategies_EdgeScenario runs the 6x6 edge pair through every strategy
func TestStrategies_EdgeScenario(t *testing.T) {
	left, right := edgePair()
	want := []float32{0, 0, 2, 1, 0, 0}
	for _, s := range allStrategies(t, Parameters{BlockSize: 3, LeftScanSteps: 2, RightScanSteps: 2}) {
		out := compute(t, s, left, right)
		for i, v := range out.Pix {
			if math.Abs(float64(v-want[i%6])) > tolerance {
				t.Errorf("%s: (%d,%d) = %v, want %v", s.Name(), i%6, i/6, v, want[i%6])
			}
		}
	}
}

func TestStrategies_RejectBadInputs(t *testing.T) {
	p := Parameters{BlockSize: 3, LeftScanSteps: 2, RightScanSteps: 2}
	a := randomGray(8, 6, 1)
	b := randomGray(9, 6, 2)
	empty := image.NewGray(image.Rect(0, 0, 0, 0))

	tests := []struct {
		name        string
		left, right *image.Gray
		out         *Map
		wantErr     error
	}{
		{"width mismatch", a, b, NewMapFor(a), ErrImageSizeMismatch},
		{"map mismatch", a, a, NewMap(3, 3), ErrImageSizeMismatch},
		{"nil map", a, a, nil, ErrImageSizeMismatch},
		{"empty left", empty, a, NewMapFor(a), ErrEmptyImage},
		{"nil right", a, nil, NewMapFor(a), ErrEmptyImage},
	}

	for _, s := range allStrategies(t, p) {
		for _, tt := range tests {
			t.Run(s.Name()+"/"+tt.name, func(t *testing.T) {
				err := s.ComputeDisparity(tt.left, tt.right, tt.out)
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			})
		}
	}
}

// TestStrategies_ConfigureKeepsPrevious verifies a rejected Configure leaves
// the strategy usable with its earlier parameters
func TestStrategies_ConfigureKeepsPrevious(t *testing.T) {
	p := Parameters{BlockSize: 5, LeftScanSteps: 3, RightScanSteps: 3}
	for _, s := range allStrategies(t, p) {
		err := s.Configure(Parameters{BlockSize: 8})
		if !errors.Is(err, ErrInvalidBlockSize) {
			t.Errorf("%s: Configure(8) error = %v", s.Name(), err)
		}
		if got := s.Parameters(); got != p {
			t.Errorf("%s: Parameters() = %+v, want %+v", s.Name(), got, p)
		}
	}
}

func TestStrategies_Reconfigure(t *testing.T) {
	left, right := shiftedPair(30, 20, 2, 77)
	p1 := Parameters{BlockSize: 3, LeftScanSteps: 4, RightScanSteps: 4}
	p2 := Parameters{BlockSize: 7, LeftScanSteps: 6, RightScanSteps: 1}

	ref, _ := NewSequential(p2)
	want := compute(t, ref, left, right)

	for _, s := range allStrategies(t, p1) {
		compute(t, s, left, right)
		if err := s.Configure(p2); err != nil {
			t.Fatalf("%s: Configure: %v", s.Name(), err)
		}
		assertMapsClose(t, s.Name(), compute(t, s, left, right), want)
	}
}

func TestStrategies_NotConfigured(t *testing.T) {
	img := randomGray(4, 4, 1)
	for _, s := range []Strategy{&Sequential{}, &Vectorized{}, &Threaded{}, &Offload{}} {
		if err := s.ComputeDisparity(img, img, NewMapFor(img)); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("%T: error = %v, want ErrNotConfigured", s, err)
		}
	}
}

func TestNew_Names(t *testing.T) {
	p := DefaultParameters()
	tests := []struct {
		input string
		want  string
	}{
		{"sequential", "sequential"},
		{"SEQUENTIAL", "sequential"},
		{"  Vectorized ", "vectorized"},
		{"Threaded", "threaded"},
		{"threaded-VECTORIZED", "threaded-vectorized"},
		{"OffLoad", "offload"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := New(tt.input, p)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer s.Close()
			if s.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.want)
			}
		})
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	s, err := New("quantum", DefaultParameters())
	if s != nil {
		t.Errorf("New returned a strategy: %v", s)
	}
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("error = %v, want ErrUnsupportedAlgorithm", err)
	}
	for _, name := range SupportedAlgorithms() {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not list %q", err, name)
		}
	}
}

// TestNew_ValidatesBeforeUse checks an even block size fails at
// construction, before any image exists
func TestNew_ValidatesBeforeUse(t *testing.T) {
	for _, name := range SupportedAlgorithms() {
		s, err := New(name, Parameters{BlockSize: 8})
		if !errors.Is(err, ErrInvalidBlockSize) {
			t.Errorf("%s: error = %v, want ErrInvalidBlockSize", name, err)
		}
		if s != nil {
			t.Errorf("%s: got non-nil strategy", name)
		}
	}
}

func TestThreaded_Workers(t *testing.T) {
	p := DefaultParameters()
	th, _ := NewThreaded(p, WithWorkers(6))
	if th.Workers() != 6 {
		t.Errorf("Workers() = %d, want 6", th.Workers())
	}
	th, _ = NewThreaded(p, WithWorkers(0))
	if th.Workers() < 1 {
		t.Errorf("Workers() = %d with default pool", th.Workers())
	}
}

func TestParallelRange_CoversEveryIndex(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100, 1001} {
		for _, workers := range []int{1, 2, 5, 16} {
			seen := make([]int, n)
			err := parallelRange(n, workers, func(start, end int) error {
				for i := start; i < end; i++ {
					seen[i]++
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			for i, c := range seen {
				if c != 1 {
					t.Fatalf("n=%d workers=%d: index %d visited %d times", n, workers, i, c)
				}
			}
		}
	}
}

func TestParallelRange_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := parallelRange(100, 4, func(start, end int) error {
		if start == 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
}

func benchmarkStrategy(b *testing.B, name string) {
	left, right := shiftedPair(320, 240, 4, 1)
	s, err := New(name, DefaultParameters(), WithDevice(HostDeviceOpener(0)))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	out := NewMapFor(left)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.ComputeDisparity(left, right, out); err != nil {
			b.Fatal(err)
		}
	}

	mpixels := float64(b.N*320*240) / 1e6 / b.Elapsed().Seconds()
	b.ReportMetric(mpixels, "Mpixels/sec")
}

func BenchmarkSequential(b *testing.B)         { benchmarkStrategy(b, "sequential") }
func BenchmarkVectorized(b *testing.B)         { benchmarkStrategy(b, "vectorized") }
func BenchmarkThreaded(b *testing.B)           { benchmarkStrategy(b, "threaded") }
func BenchmarkThreadedVectorized(b *testing.B) { benchmarkStrategy(b, "threaded-vectorized") }
func BenchmarkOffloadHost(b *testing.B)        { benchmarkStrategy(b, "offload") }
