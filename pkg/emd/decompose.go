package emd

import (
	"fmt"

	"emdfusion/pkg/fixed"
	"emdfusion/pkg/parallel"
)

// Decomposer runs one sifting step of EMD. It owns its extrema sets and
// envelope buffers and reuses them across calls, so a Decomposer must not be
// used from more than one goroutine at a time.
type Decomposer struct {
	// Workers bounds the parallelism of the per-sample loops
	Workers parallel.Workers

	maxima *ExtremaSet
	minima *ExtremaSet
	upper  fixed.Signal
	lower  fixed.Signal
}

// NewDecomposer creates a Decomposer whose extrema sets hold at most capacity
// entries each (0 for unbounded).
func NewDecomposer(capacity int, workers parallel.Workers) *Decomposer {
	return &Decomposer{
		Workers: workers,
		maxima:  NewExtremaSet(capacity),
		minima:  NewExtremaSet(capacity),
	}
}

// Maxima returns the maxima found by the last call to Decompose.
func (d *Decomposer) Maxima() *ExtremaSet { return d.maxima }

// Minima returns the minima found by the last call to Decompose.
func (d *Decomposer) Minima() *ExtremaSet { return d.minima }

// Decompose replaces s with its EMD residual:
//
//	s[i] -= (upper[i] + lower[i]) >> 1
//
// where upper and lower are the envelopes through the maxima and minima of s.
// When s has no maxima (or no minima), s itself stands in for that envelope;
// a constant signal thus decomposes to all zeros.
func (d *Decomposer) Decompose(s fixed.Signal) error {
	n := len(s)
	if err := FindExtrema(s, d.maxima, d.minima); err != nil {
		return fmt.Errorf("extrema: %w", err)
	}

	d.upper = d.upper.Resize(n)
	d.lower = d.lower.Resize(n)

	// The two envelopes are independent; both must be complete before the
	// subtraction reads them.
	err := parallel.Do(
		func() error { return d.envelope(d.upper, d.maxima, s) },
		func() error { return d.envelope(d.lower, d.minima, s) },
	)
	if err != nil {
		return fmt.Errorf("envelope: %w", err)
	}

	upper, lower := d.upper, d.lower
	parallel.For(d.Workers, n, func(start, end int) {
		for i := start; i < end; i++ {
			mean := (int64(upper[i]) + int64(lower[i])) >> 1
			s[i] = fixed.Q16(int64(s[i]) - mean)
		}
	})

	return nil
}

func (d *Decomposer) envelope(dst fixed.Signal, set *ExtremaSet, s fixed.Signal) error {
	if set.Len() == 0 {
		copy(dst, s)
		return nil
	}
	return buildEnvelope(d.Workers, dst, set, len(s))
}

// Detrend returns the EMD residual of s in a new Signal, leaving s untouched.
func Detrend(s fixed.Signal, capacity int) (fixed.Signal, error) {
	out := make(fixed.Signal, len(s))
	copy(out, s)
	if err := NewDecomposer(capacity, 1).Decompose(out); err != nil {
		return nil, err
	}
	return out, nil
}
