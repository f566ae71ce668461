package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes samples as one row per iteration with a
// "<alg>_cpu,<alg>_wall" column pair per algorithm, in the order given.
// Algorithms with fewer samples leave their trailing cells empty.
func WriteCSV(w io.Writer, algorithms []string, samples []Sample) error {
	byAlg := make(map[string][]Sample, len(algorithms))
	rows := 0
	for _, s := range samples {
		byAlg[s.Algorithm] = append(byAlg[s.Algorithm], s)
		rows = max(rows, len(byAlg[s.Algorithm]))
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, 2*len(algorithms))
	for _, alg := range algorithms {
		header = append(header, alg+"_cpu", alg+"_wall")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(header))
	for i := 0; i < rows; i++ {
		for j, alg := range algorithms {
			record[2*j], record[2*j+1] = "", ""
			if col := byAlg[alg]; i < len(col) {
				record[2*j] = strconv.FormatInt(col[i].CPUMicros, 10)
				record[2*j+1] = strconv.FormatInt(col[i].WallMicros, 10)
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
