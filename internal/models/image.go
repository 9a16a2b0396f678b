package models

import (
	"errors"
	"fmt"
	"image"
)

// Default limits on input dimensions, bounding the size of every pipeline buffer
const (
	DefaultMaxWidth  = 200
	DefaultMaxHeight = 200
)

// ErrTooLarge is returned for images beyond the configured maximum dimensions
var ErrTooLarge = errors.New("image exceeds maximum dimensions")

// CheckSize verifies width x height fits within maxWidth x maxHeight.
// A non-positive limit disables that check
func CheckSize(width, height, maxWidth, maxHeight int) error {
	if (maxWidth > 0 && width > maxWidth) || (maxHeight > 0 && height > maxHeight) {
		return fmt.Errorf("%w: %dx%d > %dx%d", ErrTooLarge, width, height, maxWidth, maxHeight)
	}
	return nil
}

// GrayImage is an 8-bit grayscale image stored row-major, the unit of input
// and output of the fusion pipeline
type GrayImage struct {
	// Pix holds Width*Height pixel values, row by row
	Pix []uint8

	// Width is the number of pixels per row
	Width int

	// Height is the number of rows
	Height int

	// Filename is where the image was loaded from, if anywhere
	Filename string
}

// NewGrayImage allocates a zeroed image of the given size
func NewGrayImage(width, height int) *GrayImage {
	return &GrayImage{
		Pix:    make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

// Len returns the number of pixels
func (g *GrayImage) Len() int { return g.Width * g.Height }

// At returns the pixel at column x, row y
func (g *GrayImage) At(x, y int) uint8 { return g.Pix[y*g.Width+x] }

// Validate checks that the pixel buffer matches the dimensions
func (g *GrayImage) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%d", g.Width, g.Height)
	}
	if len(g.Pix) != g.Width*g.Height {
		return fmt.Errorf("image %dx%d has %d pixels, want %d", g.Width, g.Height, len(g.Pix), g.Width*g.Height)
	}
	return nil
}

// ToImage wraps the pixels in an *image.Gray without copying
func (g *GrayImage) ToImage() *image.Gray {
	return &image.Gray{
		Pix:    g.Pix,
		Stride: g.Width,
		Rect:   image.Rect(0, 0, g.Width, g.Height),
	}
}

// FromImage copies an *image.Gray into a GrayImage, dropping any stride padding
func FromImage(img *image.Gray) *GrayImage {
	b := img.Bounds()
	g := NewGrayImage(b.Dx(), b.Dy())
	for y := 0; y < g.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+g.Width]
		copy(g.Pix[y*g.Width:], row)
	}
	return g
}

// Decision is the per-pixel choice made by the mask generator
type Decision uint8

const (
	PreferA Decision = iota
	PreferB
	Average
)

func (d Decision) String() string {
	switch d {
	case PreferA:
		return "A"
	case PreferB:
		return "B"
	case Average:
		return "avg"
	}
	return fmt.Sprintf("Decision(%d)", uint8(d))
}

// DecisionMask holds one Decision per pixel, row-major
type DecisionMask struct {
	Decisions []Decision

	Width, Height int

	// Epsilon is the adaptive threshold the mask was built with
	Epsilon int64
}

// Counts returns how many pixels took each decision
func (m *DecisionMask) Counts() (preferA, preferB, average int) {
	for _, d := range m.Decisions {
		switch d {
		case PreferA:
			preferA++
		case PreferB:
			preferB++
		default:
			average++
		}
	}
	return
}
