// Package parallel runs data-parallel loops over index ranges.
//
// Every pipeline stage writes each output index from exactly one iteration, so
// the loops need no synchronization beyond the final join.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers is a worker count. Zero or a negative value means GOMAXPROCS, and 1
// runs everything on the calling goroutine.
type Workers int

// Count resolves w to a concrete number of goroutines.
func (w Workers) Count() int {
	if w <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return int(w)
}

// For calls fn over contiguous chunks covering [0, n), using at most w workers,
// and blocks until every chunk is done.
//
// fn receives (start, end) and must process [start, end).
func For(w Workers, n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}

	workers := min(w.Count(), n)
	if workers == 1 {
		fn(0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	g.Wait()
}

// Do runs the given tasks concurrently and returns the first error.
// All tasks run to completion even when one fails.
func Do(tasks ...func() error) error {
	var g errgroup.Group
	for _, task := range tasks {
		g.Go(task)
	}
	return g.Wait()
}
