package fixed

import "testing"

// TestRoundTrip verifies every 8-bit value survives ToFixed followed by FromFixed
func TestRoundTrip(t *testing.T) {
	pix := make([]uint8, 256)
	for v := range pix {
		pix[v] = uint8(v)
	}

	s := NewSignal(pix)
	out := make([]uint8, len(s))
	FromFixed(out, s)

	for v := range pix {
		if s[v]&(One-1) != 0 {
			t.Errorf("ToFixed(%d) has non-zero fractional bits: %#x", v, int32(s[v]))
		}
		if out[v] != pix[v] {
			t.Errorf("round trip of %d gave %d", v, out[v])
		}
	}
}

func TestFromFixedRoundsAndClamps(t *testing.T) {
	tests := []struct {
		name string
		in   Q16
		want uint8
	}{
		{"just below half", FromInt(10) + half - 1, 10},
		{"exact half rounds up", FromInt(10) + half, 11},
		{"negative clamps to zero", FromInt(-3), 0},
		{"small negative rounds to zero", -half + 1, 0},
		{"above range clamps", FromInt(300), 255},
		{"top of range", FromInt(255), 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]uint8, 1)
			FromFixed(out, Signal{tt.in})
			if out[0] != tt.want {
				t.Errorf("FromFixed(%#x) = %d, want %d", int32(tt.in), out[0], tt.want)
			}
		})
	}
}

func TestIntMatchesArithmeticShift(t *testing.T) {
	// -1.5 rounds up to -1, matching (v + 0x8000) >> 16 on a signed value
	if got := (-One - half).Int(); got != -1 {
		t.Errorf("(-1.5).Int() = %d, want -1", got)
	}
	if got := (One + half).Int(); got != 2 {
		t.Errorf("(1.5).Int() = %d, want 2", got)
	}
}

func TestResizeReusesBacking(t *testing.T) {
	s := make(Signal, 4, 16)
	r := s.Resize(10)
	if len(r) != 10 || &r[0] != &s[0] {
		t.Errorf("Resize within capacity should reuse the backing array")
	}

	g := s.Resize(32)
	if len(g) != 32 {
		t.Errorf("Resize(32) length = %d", len(g))
	}
}
