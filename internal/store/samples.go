package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sample is one timed ComputeDisparity call.
type Sample struct {
	Algorithm  string `json:"algorithm"`
	Iteration  int    `json:"iteration"`
	WallMicros int64  `json:"wallMicros"`
	CPUMicros  int64  `json:"cpuMicros"`
}

// SampleWriter appends samples to a JSONL file. It buffers writes and is
// safe for concurrent use.
type SampleWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewSampleWriter creates (or truncates) the sample stream of runID.
func NewSampleWriter(fs *FSStore, runID string) (*SampleWriter, error) {
	path := fs.SamplesPath(runID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open samples file: %w", err)
	}

	return &SampleWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write buffers one sample.
func (sw *SampleWriter) Write(s Sample) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	if _, err := sw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}
	if err := sw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Close flushes buffered samples and closes the file.
func (sw *SampleWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if err := sw.writer.Flush(); err != nil {
		sw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := sw.file.Close(); err != nil {
		return fmt.Errorf("failed to close samples file: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the stream.
func (sw *SampleWriter) Path() string {
	return sw.path
}

// ReadSamples loads every sample recorded for runID.
func ReadSamples(fs *FSStore, runID string) ([]Sample, error) {
	file, err := os.Open(fs.SamplesPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("failed to open samples file: %w", err)
	}
	defer file.Close()

	return DecodeSamples(file)
}

// DecodeSamples parses a JSONL sample stream.
func DecodeSamples(r io.Reader) ([]Sample, error) {
	scanner := bufio.NewScanner(r)
	var samples []Sample
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var s Sample
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sample on line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan samples: %w", err)
	}
	return samples, nil
}
