package fusion

import (
	"fmt"

	"emdfusion/internal/models"
	"emdfusion/pkg/fixed"
	"emdfusion/pkg/parallel"
)

// EpsilonPercent is the share of the global mean variance used as the
// decision threshold.
const EpsilonPercent = 20

// AdaptiveThreshold returns the threshold shared by every pixel of the mask:
// EpsilonPercent of the mean of all entries of both variance maps.
//
// The mean is taken over the raw Q16.16 values while the per-pixel difference
// it is compared against is rounded to an integer, so the threshold is in
// much finer units than the difference. Sums are 64-bit so large maps cannot
// overflow.
func AdaptiveThreshold(varA, varB fixed.Signal) int64 {
	n := int64(len(varA))
	if n == 0 {
		return 0
	}

	var sum int64
	for i := range varA {
		sum += int64(varA[i]) + int64(varB[i])
	}
	avg := sum / (2 * n)
	return avg * EpsilonPercent / 100
}

// Difference returns varA - varB rounded to the nearest integer.
func Difference(a, b fixed.Q16) int64 {
	return (int64(a) - int64(b) + 1<<(fixed.FracBits-1)) >> fixed.FracBits
}

// Decide maps a rounded variance difference to a decision. Both comparisons
// are strict, so a difference equal to the threshold averages.
func Decide(diff, epsilon int64) models.Decision {
	switch {
	case diff > epsilon:
		return models.PreferA
	case diff < -epsilon:
		return models.PreferB
	}
	return models.Average
}

// GenerateMask fills mask from two variance maps of identical dimensions.
// mask.Decisions is reallocated only if too small.
func GenerateMask(mask *models.DecisionMask, varA, varB fixed.Signal, width, height int, w parallel.Workers) error {
	n := width * height
	if len(varA) != n || len(varB) != n {
		return fmt.Errorf("%w: variance maps %d and %d for %dx%d", ErrDimensionMismatch, len(varA), len(varB), width, height)
	}

	if cap(mask.Decisions) < n {
		mask.Decisions = make([]models.Decision, n)
	}
	mask.Decisions = mask.Decisions[:n]
	mask.Width, mask.Height = width, height
	mask.Epsilon = AdaptiveThreshold(varA, varB)

	eps, out := mask.Epsilon, mask.Decisions
	parallel.For(w, n, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = Decide(Difference(varA[i], varB[i]), eps)
		}
	})

	return nil
}
