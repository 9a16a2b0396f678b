package imageio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"

	"emdfusion/internal/models"
)

// Export writes img in the format named by the extension of filename. BMP is
// encoded with golang.org/x/image/bmp; PNG, JPEG, GIF and TIFF go through
// imaging. A .bin extension writes the raw format.
func Export(filename string, img *models.GrayImage) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("%w: create directory for %s: %w", ErrIO, filename, err)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case RawExt:
		return SaveRaw(filename, img, nil)
	case ".bmp":
		return exportBMP(filename, img)
	default:
		if err := imaging.Save(img.ToImage(), filename); err != nil {
			return fmt.Errorf("%w: export %s: %w", ErrIO, filename, err)
		}
		return nil
	}
}

func exportBMP(filename string, img *models.GrayImage) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", ErrIO, filename, cerr)
		}
	}()

	if err := bmp.Encode(f, img.ToImage()); err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrIO, filename, err)
	}
	return nil
}
