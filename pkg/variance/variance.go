// Package variance estimates per-pixel local variance of a fixed-point image
// over a square sliding window.
package variance

import (
	"errors"
	"fmt"
	"strings"

	"emdfusion/pkg/fixed"
	"emdfusion/pkg/parallel"
)

// DefaultWindow is the 3x3 neighborhood used by the fusion pipeline.
const DefaultWindow = 3

var (
	// ErrInvalidWindow is returned for even or non-positive window sizes.
	ErrInvalidWindow = errors.New("variance: window size must be odd and positive")

	// ErrDimensions is returned when buffers do not match width*height.
	ErrDimensions = errors.New("variance: buffer does not match image dimensions")
)

// Mode selects the fixed-point variance formula.
type Mode int

const (
	// ModeReference computes sumSq/count - mean*mean with both terms rescaled
	// by the fractional width. Truncation of the two terms can leave small
	// negative variances on nearly flat windows; they are kept as is so that
	// masks stay bit-compatible with 32-bit fixed-point implementations.
	ModeReference Mode = iota

	// ModeTwoPass subtracts the window mean before squaring. The result is
	// never negative.
	ModeTwoPass
)

func (m Mode) String() string {
	switch m {
	case ModeReference:
		return "reference"
	case ModeTwoPass:
		return "twopass"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a config or flag string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reference":
		return ModeReference, nil
	case "twopass", "two-pass":
		return ModeTwoPass, nil
	}
	return 0, fmt.Errorf("unknown variance mode %q (want reference or twopass)", s)
}

// Estimator computes local variance maps.
type Estimator struct {
	Window  int
	Mode    Mode
	Workers parallel.Workers
}

// NewEstimator returns an Estimator with the default 3x3 window.
func NewEstimator(mode Mode, workers parallel.Workers) *Estimator {
	return &Estimator{Window: DefaultWindow, Mode: mode, Workers: workers}
}

// Compute writes the variance map of s (width x height, row-major) into dst.
//
// The window is centered on each pixel and clamped to the image, so border
// pixels use the smaller, asymmetric neighborhood that actually exists; there
// is no padding or wraparound. Every entry of dst[0:width*height) is written.
func (e *Estimator) Compute(dst, s fixed.Signal, width, height int) error {
	if e.Window < 1 || e.Window%2 == 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWindow, e.Window)
	}
	n := width * height
	if width < 1 || height < 1 || len(s) != n || len(dst) < n {
		return fmt.Errorf("%w: %dx%d, signal %d, map %d", ErrDimensions, width, height, len(s), len(dst))
	}

	half := e.Window / 2
	var pixel windowFunc = referenceVariance
	if e.Mode == ModeTwoPass {
		pixel = twoPassVariance
	}

	parallel.For(e.Workers, height, func(startRow, endRow int) {
		for y := startRow; y < endRow; y++ {
			y0, y1 := max(y-half, 0), min(y+half, height-1)
			for x := 0; x < width; x++ {
				x0, x1 := max(x-half, 0), min(x+half, width-1)
				dst[y*width+x] = pixel(s, width, x0, x1, y0, y1)
			}
		}
	})

	return nil
}

// Local is a convenience wrapper that allocates the map.
func Local(s fixed.Signal, width, height, window int, mode Mode) (fixed.Signal, error) {
	dst := make(fixed.Signal, width*height)
	e := &Estimator{Window: window, Mode: mode, Workers: 1}
	if err := e.Compute(dst, s, width, height); err != nil {
		return nil, err
	}
	return dst, nil
}

type windowFunc func(s fixed.Signal, width, x0, x1, y0, y1 int) fixed.Q16

// referenceVariance truncates both terms toward zero, as 32-bit fixed-point
// code does.
func referenceVariance(s fixed.Signal, width, x0, x1, y0, y1 int) fixed.Q16 {
	var sum, sumSq, count int64
	for y := y0; y <= y1; y++ {
		for _, v := range s[y*width+x0 : y*width+x1+1] {
			sum += int64(v)
			sumSq += (int64(v) * int64(v)) >> fixed.FracBits
			count++
		}
	}

	mean := int64(int32(sum / count))
	return fixed.Q16(int32(sumSq/count - (mean*mean)>>fixed.FracBits))
}

func twoPassVariance(s fixed.Signal, width, x0, x1, y0, y1 int) fixed.Q16 {
	var sum, count int64
	for y := y0; y <= y1; y++ {
		for _, v := range s[y*width+x0 : y*width+x1+1] {
			sum += int64(v)
			count++
		}
	}
	mean := sum / count

	var acc int64
	for y := y0; y <= y1; y++ {
		for _, v := range s[y*width+x0 : y*width+x1+1] {
			d := int64(v) - mean
			acc += (d * d) >> fixed.FracBits
		}
	}
	return fixed.Q16(int32(acc / count))
}
