// Package matte holds the pixel math behind transparent window capture:
// recovering alpha from a white-backed and a black-backed sample, trimming
// background borders and rendering preview backgrounds.
package matte

import (
	"errors"
	"image"
)

var (
	// ErrDimensionMismatch is returned when two samples do not cover the same area.
	ErrDimensionMismatch = errors.New("sample dimensions differ")
	// ErrNoContent is returned when every recovered pixel is fully transparent.
	ErrNoContent = errors.New("no visible content")
)

// Differentiate recovers per-pixel alpha and colour from two opaque captures of
// the same region, one taken against a white backdrop and one against black.
//
// For every channel delta = black - white + 255; alpha is the truncated mean of
// the three deltas. Colour is 255*black/alpha, which is correct when the result
// is shown over black. Pixels with alpha 0 keep zero colour.
func Differentiate(white, black *image.RGBA) (*image.NRGBA, error) {
	if white == nil || black == nil {
		return nil, ErrDimensionMismatch
	}
	wb, bb := white.Bounds(), black.Bounds()
	w, h := wb.Dx(), wb.Dy()
	if w <= 0 || h <= 0 || w != bb.Dx() || h != bb.Dy() {
		return nil, ErrDimensionMismatch
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	empty := true

	for y := 0; y < h; y++ {
		wi := white.PixOffset(wb.Min.X, wb.Min.Y+y)
		bi := black.PixOffset(bb.Min.X, bb.Min.Y+y)
		oi := out.PixOffset(0, y)
		for x := 0; x < w; x++ {
			wr, wg, wbl := int(white.Pix[wi]), int(white.Pix[wi+1]), int(white.Pix[wi+2])
			br, bg, bbl := int(black.Pix[bi]), int(black.Pix[bi+1]), int(black.Pix[bi+2])

			a := clamp((br - wr + 255 + bg - wg + 255 + bbl - wbl + 255) / 3)
			if a > 0 {
				out.Pix[oi] = uint8(clamp(255 * br / a))
				out.Pix[oi+1] = uint8(clamp(255 * bg / a))
				out.Pix[oi+2] = uint8(clamp(255 * bbl / a))
				empty = false
			}
			out.Pix[oi+3] = uint8(a)

			wi += 4
			bi += 4
			oi += 4
		}
	}

	if empty {
		return nil, ErrNoContent
	}
	return out, nil
}

func clamp(v int) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return v
}
