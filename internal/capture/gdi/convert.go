// Package gdi implements the capture platform for Windows: BitBlt screen
// reads, a layered popup backdrop and the GDI cursor.
package gdi

import (
	"image"
	"image/color"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
)

// bgraToRGBA copies a top-down 32-bit DIB into an opaque RGBA image.
func bgraToRGBA(bits []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	n := w * h * 4
	if len(bits) < n {
		n = len(bits) &^ 3
	}
	for i := 0; i < n; i += 4 {
		img.Pix[i] = bits[i+2]
		img.Pix[i+1] = bits[i+1]
		img.Pix[i+2] = bits[i]
		img.Pix[i+3] = 255
	}
	return img
}

// fillBGRA paints every pixel of a 32-bit DIB with c.
func fillBGRA(bits []byte, c color.RGBA) {
	for i := 0; i+3 < len(bits); i += 4 {
		bits[i] = c.B
		bits[i+1] = c.G
		bits[i+2] = c.R
		bits[i+3] = 0
	}
}

// colorref packs c the way GDI expects: 0x00BBGGRR.
func colorref(c color.RGBA) uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16
}

// cursorSize returns the drawn size of a cursor from its bitmaps: the colour
// bitmap when there is one, otherwise the top half of the AND/XOR mask.
func cursorSize(colorW, colorH, maskW, maskH int) (int, int) {
	if colorW > 0 && colorH > 0 {
		return colorW, colorH
	}
	return maskW, maskH / 2
}
