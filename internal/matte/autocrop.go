package matte

import (
	"image"
	"image/color"
)

// Background decides whether a pixel belongs to the padding around the window.
type Background interface {
	Matches(r, g, b, a uint8) bool
}

// Transparent treats fully transparent pixels as background.
var Transparent Background = transparentBackground{}

type transparentBackground struct{}

func (transparentBackground) Matches(_, _, _, a uint8) bool {
	return a == 0
}

// Solid treats pixels of one opaque colour as background.
//
// A pixel only counts as content when all three channels differ from the
// colour; a pixel sharing any single channel with it is trimmed as background.
type Solid color.RGBA

// Matches implements Background.
func (s Solid) Matches(r, g, b, _ uint8) bool {
	return !(r != s.R && g != s.G && b != s.B)
}

// Bounds returns the tightest rectangle enclosing every non-background pixel
// of img, in img's coordinate space. ok is false when img holds no content.
func Bounds(img *image.NRGBA, bg Background) (r image.Rectangle, ok bool) {
	b := img.Bounds()
	if b.Empty() {
		return image.Rectangle{}, false
	}

	content := func(x, y int) bool {
		i := img.PixOffset(x, y)
		p := img.Pix[i : i+4 : i+4]
		return !bg.Matches(p[0], p[1], p[2], p[3])
	}

	left := -1
	for x := b.Min.X; x < b.Max.X && left < 0; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if content(x, y) {
				left = x
				break
			}
		}
	}
	if left < 0 {
		return image.Rectangle{}, false
	}

	top := -1
	for y := b.Min.Y; y < b.Max.Y && top < 0; y++ {
		for x := left; x < b.Max.X; x++ {
			if content(x, y) {
				top = y
				break
			}
		}
	}

	right := -1
	for x := b.Max.X - 1; x >= left && right < 0; x-- {
		for y := top; y < b.Max.Y; y++ {
			if content(x, y) {
				right = x + 1
				break
			}
		}
	}

	bottom := -1
	for y := b.Max.Y - 1; y >= top && bottom < 0; y-- {
		for x := left; x < right; x++ {
			if content(x, y) {
				bottom = y + 1
				break
			}
		}
	}

	if left >= right || top >= bottom {
		return image.Rectangle{}, false
	}
	return image.Rect(left, top, right, bottom), true
}

// Crop trims background borders from img and returns a new zero-origin image
// holding only the content rectangle. It returns ErrNoContent when nothing but
// background remains.
func Crop(img *image.NRGBA, bg Background) (*image.NRGBA, image.Rectangle, error) {
	r, ok := Bounds(img, bg)
	if !ok {
		return nil, image.Rectangle{}, ErrNoContent
	}

	out := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	rowLen := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		si := img.PixOffset(r.Min.X, r.Min.Y+y)
		di := out.PixOffset(0, y)
		copy(out.Pix[di:di+rowLen], img.Pix[si:si+rowLen])
	}
	return out, r, nil
}
