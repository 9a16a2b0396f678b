package emd

import (
	"errors"
	"math/rand"
	"testing"

	"emdfusion/pkg/fixed"
)

// signalOf builds a Signal from raw Q16.16 integers
func signalOf(vals ...int32) fixed.Signal {
	s := make(fixed.Signal, len(vals))
	for i, v := range vals {
		s[i] = fixed.Q16(v)
	}
	return s
}

func setOf(t *testing.T, pairs ...[2]int32) *ExtremaSet {
	t.Helper()
	set := NewExtremaSet(0)
	for _, p := range pairs {
		if err := set.Append(int(p[0]), fixed.Q16(p[1])); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return set
}

func TestFindExtremaClassification(t *testing.T) {
	tests := []struct {
		name   string
		signal fixed.Signal
		maxPos []int
		minPos []int
	}{
		{"alternating", signalOf(0, 10, 0, 10, 0), []int{1, 3}, []int{0, 2, 4}},
		{"boundaries use single neighbor", signalOf(9, 1, 1, 7), []int{0, 3}, nil},
		{"ties are never extrema", signalOf(3, 3, 3, 3), nil, nil},
		{"plateau peak skipped", signalOf(0, 5, 5, 0), nil, []int{0, 3}},
		{"two samples", signalOf(1, 2), []int{1}, []int{0}},
		{"negative values", signalOf(-4, -9, -2, -6), []int{0, 2}, []int{1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxima, minima := NewExtremaSet(0), NewExtremaSet(0)
			if err := FindExtrema(tt.signal, maxima, minima); err != nil {
				t.Fatalf("FindExtrema: %v", err)
			}
			checkPositions(t, "maxima", maxima.Positions, tt.maxPos)
			checkPositions(t, "minima", minima.Positions, tt.minPos)
			for i, p := range maxima.Positions {
				if maxima.Values[i] != tt.signal[p] {
					t.Errorf("maxima value at %d = %d, want %d", p, maxima.Values[i], tt.signal[p])
				}
			}
		})
	}
}

func checkPositions(t *testing.T, kind string, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s positions = %v, want %v", kind, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s positions = %v, want %v", kind, got, want)
		}
	}
}

// TestFindExtremaMonotonicPositions checks positions are strictly increasing and in range
func TestFindExtremaMonotonicPositions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(500)
		s := make(fixed.Signal, n)
		for i := range s {
			s[i] = fixed.FromInt(rng.Intn(8))
		}

		maxima, minima := NewExtremaSet(0), NewExtremaSet(0)
		if err := FindExtrema(s, maxima, minima); err != nil {
			t.Fatalf("FindExtrema: %v", err)
		}

		for _, set := range []*ExtremaSet{maxima, minima} {
			prev := -1
			for _, p := range set.Positions {
				if p <= prev || p < 0 || p >= n {
					t.Fatalf("trial %d: bad position sequence %v (length %d)", trial, set.Positions, n)
				}
				prev = p
			}
		}
	}
}

func TestFindExtremaInvalidLength(t *testing.T) {
	for _, s := range []fixed.Signal{nil, {}, signalOf(5)} {
		err := FindExtrema(s, NewExtremaSet(0), NewExtremaSet(0))
		if !errors.Is(err, ErrInvalidSignalLength) {
			t.Errorf("FindExtrema(len %d) error = %v, want ErrInvalidSignalLength", len(s), err)
		}
	}
}

func TestFindExtremaCapacityExceeded(t *testing.T) {
	// 0,1,0,1,... has a maximum at every odd index
	s := make(fixed.Signal, 20)
	for i := range s {
		s[i] = fixed.Q16(i % 2)
	}

	err := FindExtrema(s, NewExtremaSet(4), NewExtremaSet(4))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("error = %v, want ErrCapacityExceeded", err)
	}

	// Unbounded sets grow past the default capacity
	long := make(fixed.Signal, 4*DefaultCapacity)
	for i := range long {
		long[i] = fixed.Q16(i % 2)
	}
	maxima, minima := NewExtremaSet(0), NewExtremaSet(0)
	if err := FindExtrema(long, maxima, minima); err != nil {
		t.Fatalf("unbounded FindExtrema: %v", err)
	}
	if maxima.Len() <= DefaultCapacity {
		t.Errorf("expected more than %d maxima, got %d", DefaultCapacity, maxima.Len())
	}
}

// TestBuildEnvelopeFlatExtension covers extrema {2:100, 5:200} over length 8
func TestBuildEnvelopeFlatExtension(t *testing.T) {
	set := setOf(t, [2]int32{2, 100}, [2]int32{5, 200})
	env := make(fixed.Signal, 8)
	for i := range env {
		env[i] = -1
	}

	if err := BuildEnvelope(env, set, 8); err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}

	want := signalOf(100, 100, 100, 133, 167, 200, 200, 200)
	for i := range want {
		if env[i] != want[i] {
			t.Errorf("envelope[%d] = %d, want %d (full %v)", i, env[i], want[i], env)
		}
	}
}

func TestBuildEnvelopeSingleExtremum(t *testing.T) {
	set := setOf(t, [2]int32{3, 777})
	env := make(fixed.Signal, 10)
	if err := BuildEnvelope(env, set, len(env)); err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}
	for i, v := range env {
		if v != 777 {
			t.Errorf("envelope[%d] = %d, want 777", i, v)
		}
	}
}

func TestBuildEnvelopeDescendingAndRounding(t *testing.T) {
	// 0 -> -10 over 4 samples: -2.5 rounds to -2, -5, -7.5 rounds to -7
	set := setOf(t, [2]int32{0, 0}, [2]int32{4, -10})
	env := make(fixed.Signal, 5)
	if err := BuildEnvelope(env, set, 5); err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}
	want := signalOf(0, -2, -5, -7, -10)
	for i := range want {
		if env[i] != want[i] {
			t.Errorf("envelope[%d] = %d, want %d", i, env[i], want[i])
		}
	}
}

func TestBuildEnvelopeLargeValuesDoNotOverflow(t *testing.T) {
	lo, hi := int32(fixed.FromInt(-255)), int32(fixed.FromInt(255))
	set := setOf(t, [2]int32{0, lo}, [2]int32{39999, hi})
	env := make(fixed.Signal, 40000)
	if err := BuildEnvelope(env, set, len(env)); err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}
	for i := 1; i < len(env); i++ {
		if env[i] < env[i-1] {
			t.Fatalf("envelope not monotonic at %d: %d < %d", i, env[i], env[i-1])
		}
	}
	if env[len(env)-1] != fixed.Q16(hi) {
		t.Errorf("last sample = %d, want %d", env[len(env)-1], hi)
	}
}

func TestBuildEnvelopeErrors(t *testing.T) {
	if err := BuildEnvelope(make(fixed.Signal, 4), NewExtremaSet(0), 4); !errors.Is(err, ErrEmptyExtremaSet) {
		t.Errorf("empty set error = %v, want ErrEmptyExtremaSet", err)
	}
	set := setOf(t, [2]int32{0, 1})
	if err := BuildEnvelope(make(fixed.Signal, 2), set, 4); !errors.Is(err, ErrInvalidSignalLength) {
		t.Errorf("short buffer error = %v, want ErrInvalidSignalLength", err)
	}
	for _, length := range []int{0, 1} {
		single := setOf(t, [2]int32{0, 7})
		if err := BuildEnvelope(make(fixed.Signal, 1), single, length); !errors.Is(err, ErrInvalidSignalLength) {
			t.Errorf("length %d error = %v, want ErrInvalidSignalLength", length, err)
		}
	}
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		name string
		in   fixed.Signal
		want fixed.Signal
	}{
		{"alternating", signalOf(0, 10, 0, 10, 0), signalOf(-5, 5, -5, 5, -5)},
		{"ramp", signalOf(0, 1, 2, 3), signalOf(-1, 0, 1, 2)},
		{"constant", signalOf(7, 7, 7, 7), signalOf(0, 0, 0, 0)},
		{"missing maxima falls back to signal", signalOf(0, 6, 6), signalOf(0, 3, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detrend(tt.in, 0)
			if err != nil {
				t.Fatalf("Detrend: %v", err)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("residual = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestDetrendLeavesInputUntouched(t *testing.T) {
	in := signalOf(0, 10, 0, 10, 0)
	if _, err := Detrend(in, 0); err != nil {
		t.Fatalf("Detrend: %v", err)
	}
	if in[1] != 10 {
		t.Errorf("Detrend mutated its input: %v", in)
	}
}

// TestDecomposerReuse runs one Decomposer over signals of different lengths
func TestDecomposerReuse(t *testing.T) {
	d := NewDecomposer(0, 4)

	long := make(fixed.Signal, 1000)
	for i := range long {
		long[i] = fixed.FromInt((i * 37) % 11)
	}
	if err := d.Decompose(long); err != nil {
		t.Fatalf("Decompose long: %v", err)
	}

	short := signalOf(0, 10, 0, 10, 0)
	if err := d.Decompose(short); err != nil {
		t.Fatalf("Decompose short: %v", err)
	}
	want := signalOf(-5, 5, -5, 5, -5)
	for i := range want {
		if short[i] != want[i] {
			t.Fatalf("residual after reuse = %v, want %v", short, want)
		}
	}
	if d.Maxima().Len() != 2 || d.Minima().Len() != 3 {
		t.Errorf("extrema after reuse: %d maxima, %d minima", d.Maxima().Len(), d.Minima().Len())
	}
}

func TestDecomposeErrors(t *testing.T) {
	d := NewDecomposer(0, 1)
	if err := d.Decompose(fixed.Signal{}); !errors.Is(err, ErrInvalidSignalLength) {
		t.Errorf("error = %v, want ErrInvalidSignalLength", err)
	}

	single := signalOf(9)
	if err := d.Decompose(single); !errors.Is(err, ErrInvalidSignalLength) {
		t.Errorf("single sample error = %v, want ErrInvalidSignalLength", err)
	}
	if single[0] != 9 {
		t.Errorf("single sample modified to %d on error", single[0])
	}

	s := make(fixed.Signal, 64)
	for i := range s {
		s[i] = fixed.Q16(i % 2)
	}
	if err := NewDecomposer(8, 1).Decompose(s); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("error = %v, want ErrCapacityExceeded", err)
	}
}
