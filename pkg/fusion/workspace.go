package fusion

import (
	"emdfusion/internal/models"
	"emdfusion/pkg/emd"
	"emdfusion/pkg/fixed"
	"emdfusion/pkg/parallel"
)

// Workspace holds every scratch buffer of one fusion run: the residual
// signals, the two variance maps, the decision mask and one Decomposer per
// source. Buffers are resized for each run and reused across runs, so a
// Workspace must not be shared between concurrent runs.
type Workspace struct {
	SignalA   fixed.Signal
	SignalB   fixed.Signal
	VarianceA fixed.Signal
	VarianceB fixed.Signal
	Mask      models.DecisionMask

	decomposerA *emd.Decomposer
	decomposerB *emd.Decomposer
}

// NewWorkspace creates an empty workspace whose extrema sets are bounded by
// capacity (0 for unbounded).
func NewWorkspace(capacity int, workers parallel.Workers) *Workspace {
	return &Workspace{
		decomposerA: emd.NewDecomposer(capacity, workers),
		decomposerB: emd.NewDecomposer(capacity, workers),
	}
}

// Reset sizes every buffer for n pixels.
func (ws *Workspace) Reset(n int) {
	ws.SignalA = ws.SignalA.Resize(n)
	ws.SignalB = ws.SignalB.Resize(n)
	ws.VarianceA = ws.VarianceA.Resize(n)
	ws.VarianceB = ws.VarianceB.Resize(n)
}
