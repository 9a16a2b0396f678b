package visualization

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"emdfusion/internal/models"
	"emdfusion/pkg/fixed"
)

// Gray levels used when rendering a decision mask
var (
	MaskPreferA = color.Gray{Y: 255}
	MaskPreferB = color.Gray{Y: 0}
	MaskAverage = color.Gray{Y: 128}
)

// Viewer renders the intermediate buffers of the fusion pipeline (residuals,
// variance maps, decision masks) as grayscale images for inspection.
type Viewer struct {
	// dimensions of every buffer handed to the viewer
	width  int
	height int
}

// NewViewer creates a viewer for buffers of the given dimensions
func NewViewer(width, height int) *Viewer {
	return &Viewer{
		width:  width,
		height: height,
	}
}

// RenderSignal maps a fixed-point buffer to 8-bit gray by stretching its
// min..max range over 0..255. A constant buffer renders black.
func (v *Viewer) RenderSignal(s fixed.Signal) (*image.Gray, error) {
	if len(s) != v.width*v.height {
		return nil, fmt.Errorf("signal has %d samples, viewer expects %dx%d", len(s), v.width, v.height)
	}

	lo, hi := s[0], s[0]
	for _, q := range s {
		lo = min(lo, q)
		hi = max(hi, q)
	}
	span := int64(hi) - int64(lo)

	img := image.NewGray(image.Rect(0, 0, v.width, v.height))
	if span == 0 {
		return img, nil
	}
	for i, q := range s {
		img.Pix[i] = uint8((int64(q) - int64(lo)) * 255 / span)
	}
	return img, nil
}

// RenderMask draws PreferA white, PreferB black and Average mid-gray
func (v *Viewer) RenderMask(mask *models.DecisionMask) (*image.Gray, error) {
	if mask.Width != v.width || mask.Height != v.height || len(mask.Decisions) != v.width*v.height {
		return nil, fmt.Errorf("mask is %dx%d, viewer expects %dx%d", mask.Width, mask.Height, v.width, v.height)
	}

	img := image.NewGray(image.Rect(0, 0, v.width, v.height))
	for i, d := range mask.Decisions {
		switch d {
		case models.PreferA:
			img.Pix[i] = MaskPreferA.Y
		case models.PreferB:
			img.Pix[i] = MaskPreferB.Y
		default:
			img.Pix[i] = MaskAverage.Y
		}
	}
	return img, nil
}

// SaveImage writes img to filename, creating parent directories. The format
// follows the extension (png, jpg, gif, tif, bmp).
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return imaging.Save(img, filename)
}

// SaveStage saves img as <dir>/<stage>/<index>.png
func (v *Viewer) SaveStage(dir, stage string, index int, img image.Image) error {
	filename := filepath.Join(dir, stage, fmt.Sprintf("%03d.png", index))
	return v.SaveImage(img, filename)
}
