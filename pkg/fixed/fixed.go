// Package fixed implements the Q16.16 fixed-point representation used by the
// fusion pipeline, and the quantizer that moves 8-bit pixels in and out of it.
package fixed

// FracBits is the number of fractional bits in a Q16.16 value.
const FracBits = 16

const (
	// One is 1.0 in Q16.16.
	One Q16 = 1 << FracBits

	// half is 0.5 in Q16.16, the rounding offset for conversions back to integers.
	half = 1 << (FracBits - 1)
)

// Q16 is a signed fixed-point number with 16 integer and 16 fractional bits.
type Q16 int32

// Signal is an ordered sequence of Q16.16 samples. Images are stored row-major.
type Signal []Q16

// FromInt widens an integer into Q16.16. Values outside the 16-bit integer
// range wrap, as with any int32 shift.
func FromInt(v int) Q16 {
	return Q16(int32(v) << FracBits)
}

// Int rounds q to the nearest integer, halves rounding up.
func (q Q16) Int() int32 {
	return int32((int64(q) + half) >> FracBits)
}

// Float returns q as a float64. Only used for reporting and visualization.
func (q Q16) Float() float64 {
	return float64(q) / float64(One)
}

// NewSignal allocates a Signal and fills it from 8-bit pixels.
func NewSignal(pix []uint8) Signal {
	s := make(Signal, len(pix))
	ToFixed(s, pix)
	return s
}

// ToFixed converts 8-bit pixels into Q16.16. The conversion is lossless; the
// fractional bits of every output sample are zero.
//
// dst must be at least len(pix) long.
func ToFixed(dst Signal, pix []uint8) {
	dst = dst[:len(pix)]
	for i, v := range pix {
		dst[i] = Q16(int32(v) << FracBits)
	}
}

// FromFixed converts Q16.16 samples back to 8-bit pixels, rounding to the
// nearest integer and clamping to [0, 255].
//
// dst must be at least len(s) long.
func FromFixed(dst []uint8, s Signal) {
	dst = dst[:len(s)]
	for i, q := range s {
		dst[i] = ClampUint8(q.Int())
	}
}

// ClampUint8 clamps v into the 8-bit pixel range.
func ClampUint8(v int32) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// Resize returns s with length n, reusing its backing array when it is large
// enough. Contents are not cleared.
func (s Signal) Resize(n int) Signal {
	if cap(s) >= n {
		return s[:n]
	}
	return make(Signal, n)
}
