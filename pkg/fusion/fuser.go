// Package fusion merges two registered grayscale images of the same scene.
//
// Each source is quantized to Q16.16, detrended by one EMD sifting step and
// reduced to a local variance map. Per pixel, the source with clearly higher
// variance wins; where the two are within an adaptive threshold the pixels
// are averaged.
package fusion

import (
	"errors"
	"fmt"
	"log"

	"emdfusion/internal/models"
	"emdfusion/pkg/fixed"
	"emdfusion/pkg/parallel"
	"emdfusion/pkg/variance"
	"emdfusion/pkg/visualization"
)

var (
	// ErrDimensionMismatch is returned when the sources, or any buffer derived
	// from them, disagree on width and height.
	ErrDimensionMismatch = errors.New("image dimensions do not match")

	// ErrTooLarge is returned for sources beyond Params.MaxWidth x MaxHeight.
	ErrTooLarge = models.ErrTooLarge
)

// Intermediary stage directories, in pipeline order
const (
	StageResidual = "01_residual"
	StageVariance = "02_variance"
	StageMask     = "03_mask"
	StageFused    = "04_fused"
)

// Params holds the fusion parameters.
type Params struct {
	// WindowSize is the side of the square variance window. Must be odd.
	WindowSize int

	// VarianceMode selects the fixed-point variance formula
	VarianceMode variance.Mode

	// ExtremaCapacity bounds each extrema set; 0 lets them grow with the image
	ExtremaCapacity int

	// NumWorkers specifies how many goroutines per-pixel loops may use.
	// 0 uses every available CPU.
	NumWorkers int

	// Stretch rescales the fused image to the full 0..255 range
	Stretch bool

	// MaxWidth and MaxHeight bound the accepted source size; <= 0 disables
	MaxWidth  int
	MaxHeight int

	// SaveIntermediaryResults determines whether residuals, variance maps,
	// the mask and the fused image are written out as PNGs.
	SaveIntermediaryResults bool

	// IntermediaryDir is the directory where intermediary results will be saved.
	// Only used when SaveIntermediaryResults is true.
	IntermediaryDir string

	// Verbose logs each pipeline step
	Verbose bool
}

// DefaultParams returns a 3x3 reference-mode pipeline over images of up to
// 200x200, with the extrema sets left unbounded.
func DefaultParams() *Params {
	return &Params{
		WindowSize:      variance.DefaultWindow,
		VarianceMode:    variance.ModeReference,
		ExtremaCapacity: 0,
		NumWorkers:      0,
		Stretch:         true,
		MaxWidth:        models.DefaultMaxWidth,
		MaxHeight:       models.DefaultMaxHeight,
		IntermediaryDir: "intermediary_results",
	}
}

// Result is the outcome of one fusion run.
//
// Fused is owned by the caller. Mask, VarianceA and VarianceB alias the
// Fuser's workspace and are only valid until the next call to Process.
type Result struct {
	Fused     *models.GrayImage
	Mask      *models.DecisionMask
	VarianceA fixed.Signal
	VarianceB fixed.Signal

	// Stretched reports whether the histogram stretch changed the image
	Stretched bool

	Metrics QualityMetrics
}

// Fuser runs the fusion pipeline:
// 1. Quantizing both sources to Q16.16
// 2. Detrending each source with one EMD sifting step (concurrently)
// 3. Estimating local variance of each residual
// 4. Building the decision mask
// 5. Compositing, then optionally stretching, the fused image
// 6. Calculating quality metrics
//
// A Fuser owns one Workspace and is not safe for concurrent use.
type Fuser struct {
	params    *Params
	workers   parallel.Workers
	estimator *variance.Estimator
	ws        *Workspace

	// width and height of the current run
	width  int
	height int

	metrics QualityMetrics
}

// NewFuser creates a fuser with the provided parameters. A nil params uses
// DefaultParams.
func NewFuser(params *Params) *Fuser {
	if params == nil {
		params = DefaultParams()
	}
	workers := parallel.Workers(params.NumWorkers)

	estimator := variance.NewEstimator(params.VarianceMode, workers)
	if params.WindowSize != 0 {
		estimator.Window = params.WindowSize
	}

	return &Fuser{
		params:    params,
		workers:   workers,
		estimator: estimator,
		ws:        NewWorkspace(params.ExtremaCapacity, workers),
	}
}

// Process fuses a and b, which must have identical dimensions.
func (f *Fuser) Process(a, b *models.GrayImage) (*Result, error) {
	if err := f.checkInputs(a, b); err != nil {
		return nil, err
	}

	f.width, f.height = a.Width, a.Height
	n := a.Len()
	ws := f.ws
	ws.Reset(n)

	f.logf("Step 1: Quantizing %dx%d sources...", f.width, f.height)
	fixed.ToFixed(ws.SignalA, a.Pix)
	fixed.ToFixed(ws.SignalB, b.Pix)

	f.logf("Step 2: Decomposing sources...")
	err := parallel.Do(
		func() error { return ws.decomposerA.Decompose(ws.SignalA) },
		func() error { return ws.decomposerB.Decompose(ws.SignalB) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to decompose sources: %w", err)
	}
	f.logf("Source A: %d maxima, %d minima; source B: %d maxima, %d minima",
		ws.decomposerA.Maxima().Len(), ws.decomposerA.Minima().Len(),
		ws.decomposerB.Maxima().Len(), ws.decomposerB.Minima().Len())
	f.saveSignal(StageResidual, ws.SignalA, 0)
	f.saveSignal(StageResidual, ws.SignalB, 1)

	f.logf("Step 3: Estimating local variance (%dx%d window, %s)...",
		f.estimator.Window, f.estimator.Window, f.estimator.Mode)
	err = parallel.Do(
		func() error { return f.estimator.Compute(ws.VarianceA, ws.SignalA, f.width, f.height) },
		func() error { return f.estimator.Compute(ws.VarianceB, ws.SignalB, f.width, f.height) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate variance: %w", err)
	}
	f.saveSignal(StageVariance, ws.VarianceA, 0)
	f.saveSignal(StageVariance, ws.VarianceB, 1)

	f.logf("Step 4: Generating decision mask...")
	if err := GenerateMask(&ws.Mask, ws.VarianceA, ws.VarianceB, f.width, f.height, f.workers); err != nil {
		return nil, fmt.Errorf("failed to generate mask: %w", err)
	}
	na, nb, navg := ws.Mask.Counts()
	f.logf("Threshold %d: %d from A, %d from B, %d averaged", ws.Mask.Epsilon, na, nb, navg)
	f.saveMask(&ws.Mask)

	f.logf("Step 5: Compositing fused image...")
	fused := models.NewGrayImage(f.width, f.height)
	if err := Composite(fused, a, b, &ws.Mask, f.workers); err != nil {
		return nil, fmt.Errorf("failed to composite: %w", err)
	}

	res := &Result{
		Fused:     fused,
		Mask:      &ws.Mask,
		VarianceA: ws.VarianceA,
		VarianceB: ws.VarianceB,
	}
	if f.params.Stretch {
		res.Stretched = Stretch(fused, f.workers)
	}
	f.saveImage(StageFused, fused, 0)

	f.logf("Step 6: Calculating quality metrics...")
	f.metrics = ComputeMetrics(a, b, fused, &ws.Mask)
	res.Metrics = f.metrics

	return res, nil
}

// GetMetrics returns the metrics of the last successful run
func (f *Fuser) GetMetrics() QualityMetrics {
	return f.metrics
}

// Workspace exposes the scratch buffers of the last run
func (f *Fuser) Workspace() *Workspace {
	return f.ws
}

func (f *Fuser) checkInputs(a, b *models.GrayImage) error {
	if a == nil || b == nil {
		return errors.New("fusion requires two source images")
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("source A: %w", err)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("source B: %w", err)
	}
	if a.Width != b.Width || a.Height != b.Height {
		return fmt.Errorf("%w: A is %dx%d, B is %dx%d", ErrDimensionMismatch, a.Width, a.Height, b.Width, b.Height)
	}
	return models.CheckSize(a.Width, a.Height, f.params.MaxWidth, f.params.MaxHeight)
}

func (f *Fuser) logf(format string, args ...any) {
	if f.params.Verbose {
		log.Printf(format, args...)
	}
}

// saveSignal, saveMask and saveImage write intermediary results. Failures are
// logged and never abort the run.
func (f *Fuser) saveSignal(stage string, s fixed.Signal, index int) {
	if !f.params.SaveIntermediaryResults {
		return
	}
	viewer := visualization.NewViewer(f.width, f.height)
	img, err := viewer.RenderSignal(s)
	if err == nil {
		err = viewer.SaveStage(f.params.IntermediaryDir, stage, index, img)
	}
	if err != nil {
		log.Printf("Warning: Failed to save %s %d: %v", stage, index, err)
	}
}

func (f *Fuser) saveMask(mask *models.DecisionMask) {
	if !f.params.SaveIntermediaryResults {
		return
	}
	viewer := visualization.NewViewer(f.width, f.height)
	img, err := viewer.RenderMask(mask)
	if err == nil {
		err = viewer.SaveStage(f.params.IntermediaryDir, StageMask, 0, img)
	}
	if err != nil {
		log.Printf("Warning: Failed to save mask: %v", err)
	}
}

func (f *Fuser) saveImage(stage string, img *models.GrayImage, index int) {
	if !f.params.SaveIntermediaryResults {
		return
	}
	viewer := visualization.NewViewer(f.width, f.height)
	if err := viewer.SaveStage(f.params.IntermediaryDir, stage, index, img.ToImage()); err != nil {
		log.Printf("Warning: Failed to save %s %d: %v", stage, index, err)
	}
}

// Fuse runs the pipeline once with DefaultParams.
func Fuse(a, b *models.GrayImage) (*models.GrayImage, error) {
	res, err := NewFuser(nil).Process(a, b)
	if err != nil {
		return nil, err
	}
	return res.Fused, nil
}
