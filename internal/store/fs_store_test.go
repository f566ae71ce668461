package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/blockmatch/internal/disparity"
)

func setupTestStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func createTestRun() *Run {
	run := NewRun([]string{"sequential", "threaded"}, disparity.DefaultParameters(), 640, 480, 5, 20, time.Second)
	run.Summaries = []Summary{
		{Algorithm: "sequential", Iterations: 20, MeanWall: 1500, StdDevWall: 12.5, MeanCPU: 1490, StdDevCPU: 10},
		{Algorithm: "threaded", Iterations: 20, MeanWall: 300, StdDevWall: 4, MeanCPU: 2300, StdDevCPU: 31},
	}
	run.Finished = run.Started.Add(3 * time.Second)
	return run
}

func TestFSStore_SaveLoad(t *testing.T) {
	s := setupTestStore(t)
	run := createTestRun()

	require.NoError(t, s.SaveRun(run))

	loaded, err := s.LoadRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, run.Algorithms, loaded.Algorithms)
	assert.Equal(t, run.Params, loaded.Params)
	assert.Equal(t, run.Summaries, loaded.Summaries)
	assert.True(t, run.Started.Equal(loaded.Started))

	_, err = os.Stat(s.runPath(run.ID) + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")
}

func TestFSStore_SaveOverwrites(t *testing.T) {
	s := setupTestStore(t)
	run := createTestRun()
	require.NoError(t, s.SaveRun(run))

	run.Iterations = 99
	require.NoError(t, s.SaveRun(run))

	loaded, err := s.LoadRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, loaded.Iterations)
}

func TestFSStore_SaveRejectsInvalid(t *testing.T) {
	s := setupTestStore(t)

	tests := []struct {
		name   string
		mutate func(r *Run)
		field  string
	}{
		{"bad id", func(r *Run) { r.ID = "run-1" }, "ID"},
		{"no algorithms", func(r *Run) { r.Algorithms = nil }, "Algorithms"},
		{"empty image", func(r *Run) { r.Width = 0 }, "Width/Height"},
		{"no iterations", func(r *Run) { r.Iterations = 0 }, "Iterations"},
		{"negative warmup", func(r *Run) { r.Warmup = -1 }, "Warmup"},
		{"even block size", func(r *Run) { r.Params.BlockSize = 4 }, "Params"},
		{"finished before start", func(r *Run) { r.Finished = r.Started.Add(-time.Second) }, "Finished"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := createTestRun()
			tt.mutate(run)

			err := s.SaveRun(run)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	assert.Error(t, s.SaveRun(nil))
}

func TestFSStore_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.LoadRun("6f1c1f8e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteRun("6f1c1f8e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Contains(t, nf.Error(), "6f1c1f8e")

	_, err = s.LoadRun("")
	assert.Error(t, err)
}

func TestFSStore_List(t *testing.T) {
	s := setupTestStore(t)

	infos, err := s.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, infos)

	older := createTestRun()
	older.Started = older.Started.Add(-time.Hour)
	older.Finished = time.Time{}
	newer := createTestRun()
	require.NoError(t, s.SaveRun(newer))
	require.NoError(t, s.SaveRun(older))

	// A corrupt run and a stray file are skipped.
	require.NoError(t, os.MkdirAll(s.runDir("broken"), 0755))
	require.NoError(t, os.WriteFile(s.runPath("broken"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.runsDir(), "stray.txt"), nil, 0644))

	infos, err = s.ListRuns()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, older.ID, infos[0].ID)
	assert.False(t, infos[0].Complete)
	assert.Equal(t, newer.ID, infos[1].ID)
	assert.True(t, infos[1].Complete)
	assert.Equal(t, 3*time.Second, infos[1].Duration)
}

func TestFSStore_Delete(t *testing.T) {
	s := setupTestStore(t)
	run := createTestRun()
	require.NoError(t, s.SaveRun(run))

	w, err := NewSampleWriter(s, run.ID)
	require.NoError(t, err)
	require.NoError(t, w.Write(Sample{Algorithm: "sequential", Iteration: 0, WallMicros: 1, CPUMicros: 1}))
	require.NoError(t, w.Close())

	require.NoError(t, s.DeleteRun(run.ID))

	_, err = os.Stat(s.runDir(run.ID))
	assert.True(t, os.IsNotExist(err))
	_, err = s.LoadRun(run.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSampleWriter_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	run := createTestRun()

	w, err := NewSampleWriter(s, run.ID)
	require.NoError(t, err)
	assert.Equal(t, s.SamplesPath(run.ID), w.Path())

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, w.Write(Sample{Algorithm: "threaded", Iteration: i, WallMicros: int64(g), CPUMicros: int64(i)}))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())

	samples, err := ReadSamples(s, run.ID)
	require.NoError(t, err)
	assert.Len(t, samples, 100)

	_, err = ReadSamples(s, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeSamples_Malformed(t *testing.T) {
	_, err := DecodeSamples(bytes.NewBufferString("{\"algorithm\":\"a\"}\n\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestWriteCSV(t *testing.T) {
	samples := []Sample{
		{Algorithm: "sequential", Iteration: 0, CPUMicros: 10, WallMicros: 11},
		{Algorithm: "sequential", Iteration: 1, CPUMicros: 12, WallMicros: 13},
		{Algorithm: "threaded", Iteration: 0, CPUMicros: 40, WallMicros: 5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"sequential", "threaded"}, samples))

	want := "sequential_cpu,sequential_wall,threaded_cpu,threaded_wall\n" +
		"10,11,40,5\n" +
		"12,13,,\n"
	assert.Equal(t, want, buf.String())
}
