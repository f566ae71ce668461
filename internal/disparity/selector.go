package disparity

import (
	"fmt"
	"strings"
)

// Algorithm names a strategy accepted by New.
type Algorithm string

const (
	AlgorithmSequential         Algorithm = "sequential"
	AlgorithmVectorized         Algorithm = "vectorized"
	AlgorithmThreaded           Algorithm = "threaded"
	AlgorithmThreadedVectorized Algorithm = "threaded-vectorized"
	AlgorithmOffload            Algorithm = "offload"
)

var algorithms = []Algorithm{
	AlgorithmSequential,
	AlgorithmVectorized,
	AlgorithmThreaded,
	AlgorithmThreadedVectorized,
	AlgorithmOffload,
}

// SupportedAlgorithms lists the names accepted by New in a stable order.
func SupportedAlgorithms() []string {
	names := make([]string, len(algorithms))
	for i, a := range algorithms {
		names[i] = string(a)
	}
	return names
}

// New returns the strategy called name, configured with params. Names are
// matched case-insensitively after trimming surrounding whitespace.
// Parameters are validated before the strategy is returned.
func New(name string, params Parameters, opts ...Option) (Strategy, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case AlgorithmSequential:
		return asStrategy(NewSequential(params))
	case AlgorithmVectorized:
		return asStrategy(NewVectorized(params, opts...))
	case AlgorithmThreaded:
		return asStrategy(NewThreaded(params, opts...))
	case AlgorithmThreadedVectorized:
		return asStrategy(NewThreadedVectorized(params, opts...))
	case AlgorithmOffload:
		return asStrategy(NewOffload(params, opts...))
	}
	return nil, fmt.Errorf("%w %q: valid algorithms are %s",
		ErrUnsupportedAlgorithm, name, strings.Join(SupportedAlgorithms(), ", "))
}

// asStrategy keeps a failed constructor from yielding a non-nil interface
// holding a nil pointer.
func asStrategy[S Strategy](s S, err error) (Strategy, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
