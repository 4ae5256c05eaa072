package matte

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Checkerboard shades.
var (
	CheckerLight = color.RGBA{255, 255, 255, 255}
	CheckerDark  = color.RGBA{200, 200, 200, 255}
)

// CheckerTile returns a 2n x 2n opaque tile: light top-left and bottom-right
// quadrants, dark top-right and bottom-left. n below 1 is treated as 1.
func CheckerTile(n int) *image.RGBA {
	if n < 1 {
		n = 1
	}
	tile := image.NewRGBA(image.Rect(0, 0, 2*n, 2*n))
	for y := 0; y < 2*n; y++ {
		for x := 0; x < 2*n; x++ {
			c := CheckerLight
			if (x < n) != (y < n) {
				c = CheckerDark
			}
			i := tile.PixOffset(x, y)
			tile.Pix[i], tile.Pix[i+1], tile.Pix[i+2], tile.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return tile
}

// RenderCheckerboard tiles a checker pattern of size n across img's bounds and
// composites img over it. The result is fully opaque.
func RenderCheckerboard(img *image.NRGBA, n int) *image.NRGBA {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	tile := CheckerTile(n)
	ts := tile.Bounds().Size()
	for y := 0; y < b.Dy(); y += ts.Y {
		for x := 0; x < b.Dx(); x += ts.X {
			xdraw.Draw(canvas, image.Rect(x, y, x+ts.X, y+ts.Y), tile, image.Point{}, xdraw.Src)
		}
	}
	xdraw.Draw(canvas, canvas.Bounds(), img, b.Min, xdraw.Over)
	return Opaque(canvas)
}

// Flatten composites img over a solid colour, dropping transparency. It is the
// companion image handed to consumers that cannot take an alpha channel.
func Flatten(img *image.NRGBA, c color.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	c.A = 255
	xdraw.Draw(out, out.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Src)
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Over)
	return out
}

// Opaque copies an opaque capture into a zero-origin NRGBA image with every
// alpha forced to 255.
func Opaque(src *image.RGBA) *image.NRGBA {
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	rowLen := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := out.PixOffset(0, y)
		copy(out.Pix[di:di+rowLen], src.Pix[si:si+rowLen])
		for i := di + 3; i < di+rowLen; i += 4 {
			out.Pix[i] = 255
		}
	}
	return out
}

// Fit scales img down to fit within maxW x maxH, keeping its aspect ratio.
// Images that already fit are returned unchanged.
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if maxW <= 0 || maxH <= 0 || (b.Dx() <= maxW && b.Dy() <= maxH) {
		return img
	}
	scale := float64(maxW) / float64(b.Dx())
	if s := float64(maxH) / float64(b.Dy()); s < scale {
		scale = s
	}
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
