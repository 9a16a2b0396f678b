package fusion

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"emdfusion/internal/models"
)

// QualityMetrics holds no-reference and source-referenced measures of a
// fusion result. They are informational and never feed back into the mask.
type QualityMetrics struct {
	// Entropy is the Shannon entropy of the fused image in bits per pixel.
	// Higher values indicate more information carried by the output.
	Entropy float64

	// MutualInfoA and MutualInfoB are the mutual information, in bits,
	// between the fused image and each source.
	MutualInfoA float64
	MutualInfoB float64

	// FusionMI is MutualInfoA + MutualInfoB, the usual fusion MI score
	FusionMI float64

	// SSIMA and SSIMB are global structural similarity against each source,
	// in [-1, 1]
	SSIMA float64
	SSIMB float64

	// CorrelationA and CorrelationB are Pearson correlations against each source
	CorrelationA float64
	CorrelationB float64

	// ShareA, ShareB and ShareAverage are the fractions of pixels taking each
	// mask decision
	ShareA       float64
	ShareB       float64
	ShareAverage float64

	// Epsilon is the adaptive threshold the mask used
	Epsilon int64
}

// ComputeMetrics evaluates fused against the two sources it was built from.
func ComputeMetrics(a, b, fused *models.GrayImage, mask *models.DecisionMask) QualityMetrics {
	var m QualityMetrics
	if fused == nil || fused.Len() == 0 {
		return m
	}

	fa, fb, ff := pixelsToFloat(a.Pix), pixelsToFloat(b.Pix), pixelsToFloat(fused.Pix)

	m.Entropy = calculateEntropy(fused.Pix)
	m.MutualInfoA = calculateMutualInformation(a.Pix, fused.Pix)
	m.MutualInfoB = calculateMutualInformation(b.Pix, fused.Pix)
	m.FusionMI = m.MutualInfoA + m.MutualInfoB

	m.SSIMA = calculateSSIM(fa, ff)
	m.SSIMB = calculateSSIM(fb, ff)
	m.CorrelationA = calculateCorrelation(fa, ff)
	m.CorrelationB = calculateCorrelation(fb, ff)

	if mask != nil && len(mask.Decisions) > 0 {
		na, nb, navg := mask.Counts()
		total := float64(len(mask.Decisions))
		m.ShareA = float64(na) / total
		m.ShareB = float64(nb) / total
		m.ShareAverage = float64(navg) / total
		m.Epsilon = mask.Epsilon
	}

	return m
}

// pixelsToFloat maps 8-bit pixels into [0, 1]
func pixelsToFloat(pix []uint8) []float64 {
	out := make([]float64, len(pix))
	for i, v := range pix {
		out[i] = float64(v) / 255.0
	}
	return out
}

// calculateEntropy computes the Shannon entropy of an 8-bit histogram, in bits
func calculateEntropy(pix []uint8) float64 {
	if len(pix) == 0 {
		return 0
	}

	hist := make([]float64, 256)
	for _, v := range pix {
		hist[v]++
	}
	normalize(hist, float64(len(pix)))

	// stat.Entropy uses the natural logarithm
	return stat.Entropy(hist) / math.Ln2
}

// calculateMutualInformation computes I(X;Y) = H(X) + H(Y) - H(X,Y) from the
// joint 256x256 histogram
func calculateMutualInformation(x, y []uint8) float64 {
	n := len(x)
	if n != len(y) || n == 0 {
		return 0
	}

	joint := make([]float64, 256*256)
	for i := range x {
		joint[int(x[i])*256+int(y[i])]++
	}
	normalize(joint, float64(n))

	hxy := stat.Entropy(joint) / math.Ln2
	mi := calculateEntropy(x) + calculateEntropy(y) - hxy
	if mi < 0 {
		// rounding on identical inputs
		return 0
	}
	return mi
}

// calculateSSIM computes a single-window Structural Similarity Index over the
// whole image, for data in [0, 1]
func calculateSSIM(x, y []float64) float64 {
	const L = 1.0
	const k1 = 0.01
	const k2 = 0.03

	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	muX := stat.Mean(x, nil)
	muY := stat.Mean(y, nil)
	sigmaX := stat.Variance(x, nil)
	sigmaY := stat.Variance(y, nil)
	sigmaXY := stat.Covariance(x, y, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// calculateCorrelation is stat.Correlation guarded against constant inputs,
// where it would return NaN
func calculateCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

func normalize(hist []float64, total float64) {
	for i := range hist {
		hist[i] /= total
	}
}
