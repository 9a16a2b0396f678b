// Package emd implements a single-pass, fixed-point Empirical Mode
// Decomposition: local extrema of a 1-D signal are found, upper and lower
// envelopes are linearly interpolated through them, and the mean envelope is
// subtracted to leave a detail residual.
package emd

import (
	"errors"
	"fmt"

	"emdfusion/pkg/fixed"
)

// DefaultCapacity bounds each extrema set when memory must be fixed up front.
// A capacity of zero means the sets grow as needed.
const DefaultCapacity = 1024

var (
	// ErrCapacityExceeded is returned when a signal has more extrema of one
	// kind than the set can hold.
	ErrCapacityExceeded = errors.New("emd: extrema capacity exceeded")

	// ErrInvalidSignalLength is returned for signals too short to classify.
	ErrInvalidSignalLength = errors.New("emd: invalid signal length")

	// ErrEmptyExtremaSet is returned when an envelope is requested through no points.
	ErrEmptyExtremaSet = errors.New("emd: empty extrema set")
)

// ExtremaSet holds the positions and values of one kind of extremum, in
// strictly increasing position order.
type ExtremaSet struct {
	Positions []int
	Values    []fixed.Q16

	// capacity caps Len; zero means unlimited
	capacity int
}

// NewExtremaSet creates an empty set. capacity <= 0 lets the set grow.
func NewExtremaSet(capacity int) *ExtremaSet {
	e := &ExtremaSet{capacity: max(capacity, 0)}
	if e.capacity > 0 {
		e.Positions = make([]int, 0, e.capacity)
		e.Values = make([]fixed.Q16, 0, e.capacity)
	}
	return e
}

// Len returns the number of extrema in the set.
func (e *ExtremaSet) Len() int { return len(e.Positions) }

// Capacity returns the maximum number of extrema, or 0 when unbounded.
func (e *ExtremaSet) Capacity() int { return e.capacity }

// Reset empties the set, keeping its storage.
func (e *ExtremaSet) Reset() {
	e.Positions = e.Positions[:0]
	e.Values = e.Values[:0]
}

// Append adds an extremum. pos must be greater than every position already in
// the set.
func (e *ExtremaSet) Append(pos int, v fixed.Q16) error {
	if e.capacity > 0 && len(e.Positions) >= e.capacity {
		return fmt.Errorf("%w: more than %d extrema (at index %d)", ErrCapacityExceeded, e.capacity, pos)
	}
	e.Positions = append(e.Positions, pos)
	e.Values = append(e.Values, v)
	return nil
}

// FindExtrema scans s and records its strict local maxima and minima into the
// given sets, which are reset first.
//
// Interior samples are compared against both neighbors. The first and last
// samples only have one neighbor to compare against. Equal neighbors never
// produce an extremum, so plateaus are skipped entirely.
//
// Returns ErrInvalidSignalLength when len(s) < 2, since a lone sample has no
// neighbor to compare against, and ErrCapacityExceeded when either set
// overflows.
func FindExtrema(s fixed.Signal, maxima, minima *ExtremaSet) error {
	n := len(s)
	if n < 2 {
		return fmt.Errorf("%w: need at least 2 samples, got %d", ErrInvalidSignalLength, n)
	}

	maxima.Reset()
	minima.Reset()

	record := func(i int, isMax, isMin bool) error {
		switch {
		case isMax:
			return maxima.Append(i, s[i])
		case isMin:
			return minima.Append(i, s[i])
		}
		return nil
	}

	if err := record(0, s[0] > s[1], s[0] < s[1]); err != nil {
		return err
	}

	for i := 1; i < n-1; i++ {
		v := s[i]
		if err := record(i, v > s[i-1] && v > s[i+1], v < s[i-1] && v < s[i+1]); err != nil {
			return err
		}
	}

	last := n - 1
	return record(last, s[last] > s[last-1], s[last] < s[last-1])
}
