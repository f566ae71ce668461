package disparity

import "golang.org/x/sync/errgroup"

// chunksPerWorker oversubscribes the pool so that slow rows near wide search
// ranges do not leave workers idle at the end of a call.
const chunksPerWorker = 4

// parallelRange splits [0, n) into contiguous chunks and runs body on them
// with at most workers goroutines in flight. body must only write state it
// owns for its [start, end) range.
func parallelRange(n, workers int, body func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	if workers <= 1 {
		return body(0, n)
	}

	chunk := max(1, (n+workers*chunksPerWorker-1)/(workers*chunksPerWorker))

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		start := start
		end := min(start+chunk, n)
		g.Go(func() error {
			return body(start, end)
		})
	}
	return g.Wait()
}

// matchPixels runs the matcher over the flattened pixel range [start, end)
// with a scratch buffer private to this call.
func matchPixels(m matcher, left, right plane, out []float32, start, end int) {
	scratch := make([]int32, m.scratchLen())
	w := left.width
	for i := start; i < end; i++ {
		out[i] = m.match(left, right, i/w, i%w, scratch)
	}
}
