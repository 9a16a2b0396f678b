// Package imageio moves grayscale images between disk and the fusion
// pipeline: decoding source images, the raw .bin output format, and exports
// to common image formats.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"emdfusion/internal/models"
)

// ErrIO marks failures to open, read, write or close a file.
var ErrIO = errors.New("i/o error")

// LoadOptions control how source images are brought to pipeline size.
type LoadOptions struct {
	// MaxWidth and MaxHeight bound the accepted dimensions; <= 0 disables
	MaxWidth  int
	MaxHeight int

	// FitOversized downsizes images beyond the limits (keeping the aspect
	// ratio) instead of rejecting them
	FitOversized bool
}

// DefaultLoadOptions rejects anything larger than 200x200.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		MaxWidth:  models.DefaultMaxWidth,
		MaxHeight: models.DefaultMaxHeight,
	}
}

// LoadGray loads filename as an 8-bit grayscale image. Raw .bin files are
// read directly; anything else is decoded by format (PNG, JPEG, GIF, BMP,
// TIFF) and converted to luminance.
func LoadGray(filename string, opts LoadOptions) (*models.GrayImage, error) {
	var (
		g   *models.GrayImage
		err error
	)

	if strings.EqualFold(filepath.Ext(filename), RawExt) {
		g, err = LoadRaw(filename, opts.MaxWidth, opts.MaxHeight)
		if err != nil {
			return nil, err
		}
	} else {
		img, err := imaging.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", ErrIO, filename, err)
		}
		g = fitGray(img, opts)
	}

	if err := models.CheckSize(g.Width, g.Height, opts.MaxWidth, opts.MaxHeight); err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}

	g.Filename = filename
	return g, nil
}

// fitGray shrinks img into the configured bounds when allowed, then converts
// it to grayscale.
func fitGray(img image.Image, opts LoadOptions) *models.GrayImage {
	b := img.Bounds()
	if opts.FitOversized && models.CheckSize(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight) != nil {
		maxW, maxH := opts.MaxWidth, opts.MaxHeight
		if maxW <= 0 {
			maxW = b.Dx()
		}
		if maxH <= 0 {
			maxH = b.Dy()
		}
		img = imaging.Fit(img, maxW, maxH, imaging.Lanczos)
	}
	return ToGray(img)
}

// ToGray converts any image to a GrayImage of the same size.
func ToGray(img image.Image) *models.GrayImage {
	if gray, ok := img.(*image.Gray); ok {
		return models.FromImage(gray)
	}

	// imaging.Grayscale keeps the NRGBA layout with R = G = B = luminance
	nrgba := imaging.Grayscale(img)
	b := nrgba.Bounds()
	g := models.NewGrayImage(b.Dx(), b.Dy())
	for y := 0; y < g.Height; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < g.Width; x++ {
			g.Pix[y*g.Width+x] = row[x*4]
		}
	}
	return g
}
