package imageio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"emdfusion/internal/models"
)

// RawExt is the extension of the raw fused-image format.
const RawExt = ".bin"

// ProgressSegments is the number of progress notifications a save emits.
const ProgressSegments = 8

// MaxRawPixels bounds the pixel count a raw header may declare
const MaxRawPixels = 1<<31 - 1

// ErrBadRawFile is returned when a .bin file is truncated or inconsistent.
var ErrBadRawFile = errors.New("malformed raw image file")

// ByteOrder of the width and height header fields.
var ByteOrder binary.ByteOrder = binary.LittleEndian

// ProgressCallback reports save progress: completed out of total segments.
type ProgressCallback func(completed, total int, message string)

// WriteRaw writes img as width (uint32) | height (uint32) | pixels, with no
// padding or compression.
//
// Pixels go out in 4-byte groups plus a byte-wise tail. When progress is not
// nil it is called once at the start of each of the first seven eighths of
// the groups and once more after the last byte, so it fires ProgressSegments
// times for any image of at least 32 pixels.
func WriteRaw(w io.Writer, img *models.GrayImage, progress ProgressCallback) error {
	if err := img.Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	var header [8]byte
	ByteOrder.PutUint32(header[0:4], uint32(img.Width))
	ByteOrder.PutUint32(header[4:8], uint32(img.Height))
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("%w: write header: %w", ErrIO, err)
	}

	n := len(img.Pix)
	groups := n / 4
	segment := groups / ProgressSegments

	for i := 0; i < groups; i++ {
		if progress != nil && segment > 0 && i%segment == 0 && i/segment < ProgressSegments-1 {
			progress(i/segment+1, ProgressSegments, fmt.Sprintf("writing pixel group %d/%d", i, groups))
		}
		if _, err := bw.Write(img.Pix[i*4 : i*4+4]); err != nil {
			return fmt.Errorf("%w: write pixel group %d: %w", ErrIO, i, err)
		}
	}

	for _, p := range img.Pix[groups*4:] {
		if err := bw.WriteByte(p); err != nil {
			return fmt.Errorf("%w: write trailing pixels: %w", ErrIO, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrIO, err)
	}

	if progress != nil {
		progress(ProgressSegments, ProgressSegments, "done")
	}
	return nil
}

// SaveRaw writes img to filename in the raw format. On failure the partially
// written file is left on disk and the error is returned.
func SaveRaw(filename string, img *models.GrayImage, progress ProgressCallback) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", ErrIO, filename, cerr)
		}
	}()

	if err := WriteRaw(f, img, progress); err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}
	return nil
}

// ReadRaw parses the raw format. Trailing bytes after the pixels are ignored.
//
// Headers beyond maxWidth x maxHeight fail with both ErrBadRawFile and
// models.ErrTooLarge before any pixel is read; a non-positive limit disables
// that check. Independently of the limits, headers above MaxRawPixels are
// rejected, and the pixel buffer only grows as data actually arrives, so a
// forged header cannot force a large allocation.
func ReadRaw(r io.Reader, maxWidth, maxHeight int) (*models.GrayImage, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: missing dimensions: %w", ErrBadRawFile, err)
	}

	w := ByteOrder.Uint32(header[0:4])
	h := ByteOrder.Uint32(header[4:8])
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrBadRawFile, w, h)
	}

	n := uint64(w) * uint64(h)
	if n > MaxRawPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrBadRawFile, w, h, uint64(MaxRawPixels))
	}
	width, height := int(w), int(h)
	if err := models.CheckSize(width, height, maxWidth, maxHeight); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRawFile, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(r, int64(n))); err != nil {
		return nil, fmt.Errorf("%w: read pixels: %w", ErrBadRawFile, err)
	}
	if uint64(buf.Len()) != n {
		return nil, fmt.Errorf("%w: insufficient pixel data for %dx%d: got %d bytes", ErrBadRawFile, width, height, buf.Len())
	}

	return &models.GrayImage{Pix: buf.Bytes(), Width: width, Height: height}, nil
}

// LoadRaw reads a raw image from filename, with the same limits as ReadRaw.
func LoadRaw(filename string, maxWidth, maxHeight int) (*models.GrayImage, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, filename, err)
	}
	defer f.Close()

	img, err := ReadRaw(bufio.NewReader(f), maxWidth, maxHeight)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	img.Filename = filename
	return img, nil
}
