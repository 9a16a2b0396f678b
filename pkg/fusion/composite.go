package fusion

import (
	"fmt"

	"emdfusion/internal/models"
	"emdfusion/pkg/parallel"
)

// Composite builds the fused image from the two sources and the mask.
// PreferA and PreferB copy the chosen source pixel; Average takes the rounded
// mean (a+b+1)>>1.
func Composite(dst, a, b *models.GrayImage, mask *models.DecisionMask, w parallel.Workers) error {
	n := a.Len()
	if b.Width != a.Width || b.Height != a.Height ||
		mask.Width != a.Width || mask.Height != a.Height || len(mask.Decisions) != n {
		return fmt.Errorf("%w: A %dx%d, B %dx%d, mask %dx%d",
			ErrDimensionMismatch, a.Width, a.Height, b.Width, b.Height, mask.Width, mask.Height)
	}

	if cap(dst.Pix) < n {
		dst.Pix = make([]uint8, n)
	}
	dst.Pix = dst.Pix[:n]
	dst.Width, dst.Height = a.Width, a.Height

	pa, pb, out, decisions := a.Pix, b.Pix, dst.Pix, mask.Decisions
	parallel.For(w, n, func(start, end int) {
		for i := start; i < end; i++ {
			switch decisions[i] {
			case models.PreferA:
				out[i] = pa[i]
			case models.PreferB:
				out[i] = pb[i]
			default:
				out[i] = uint8((uint16(pa[i]) + uint16(pb[i]) + 1) >> 1)
			}
		}
	})

	return nil
}

// Stretch linearly rescales img in place so its darkest pixel becomes 0 and
// its brightest 255, remapping with at most w workers. A constant image is
// left untouched. It reports whether any rescaling was applied.
func Stretch(img *models.GrayImage, w parallel.Workers) bool {
	if len(img.Pix) == 0 {
		return false
	}

	lo, hi := uint8(255), uint8(0)
	for _, v := range img.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	span := int(hi) - int(lo)
	if span == 0 {
		return false
	}

	pix := img.Pix
	parallel.For(w, len(pix), func(start, end int) {
		for i := start; i < end; i++ {
			s := (int(pix[i]) - int(lo)) * 255 / span
			pix[i] = uint8(min(max(s, 0), 255))
		}
	})
	return true
}
