package emd

import (
	"fmt"

	"emdfusion/pkg/fixed"
	"emdfusion/pkg/parallel"
)

// BuildEnvelope fills dst[0:length) with the piecewise-linear curve through
// the points of set.
//
// Samples before the first extremum take its value, samples after the last
// take the last value, and samples between two consecutive extrema are
// interpolated as val1 + round(j*(val2-val1)/seg). A set with a single
// extremum therefore gives a constant envelope. length must be at least 2.
func BuildEnvelope(dst fixed.Signal, set *ExtremaSet, length int) error {
	return buildEnvelope(1, dst, set, length)
}

func buildEnvelope(w parallel.Workers, dst fixed.Signal, set *ExtremaSet, length int) error {
	if set == nil || set.Len() == 0 {
		return ErrEmptyExtremaSet
	}
	if length < 2 || len(dst) < length {
		return fmt.Errorf("%w: envelope length %d, buffer %d", ErrInvalidSignalLength, length, len(dst))
	}

	pos, val := set.Positions, set.Values
	n := len(pos)

	first := min(max(pos[0], 0), length)
	for i := 0; i < first; i++ {
		dst[i] = val[0]
	}

	parallel.For(w, n-1, func(start, end int) {
		for seg := start; seg < end; seg++ {
			fillSegment(dst[:length], pos[seg], pos[seg+1], val[seg], val[seg+1])
		}
	})

	for i := max(pos[n-1], 0); i < length; i++ {
		dst[i] = val[n-1]
	}

	return nil
}

// fillSegment writes [pos1, pos2) of dst. Out-of-range samples are dropped and
// empty or reversed segments are a no-op.
func fillSegment(dst fixed.Signal, pos1, pos2 int, val1, val2 fixed.Q16) {
	seg := int64(pos2 - pos1)
	if seg <= 0 {
		return
	}

	delta := int64(val2) - int64(val1)
	for j := int64(0); j < seg; j++ {
		i := pos1 + int(j)
		if i < 0 {
			continue
		}
		if i >= len(dst) {
			return
		}
		dst[i] = fixed.Q16(int64(val1) + divRound(j*delta, seg))
	}
}

// divRound returns num/den rounded to nearest, halves toward +Inf. den > 0.
func divRound(num, den int64) int64 {
	return floorDiv(2*num+den, 2*den)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
