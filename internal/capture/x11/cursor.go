package x11

import (
	"errors"
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xfixes"
	"github.com/bryanchriswhite/AlphaShot/internal/matte"
)

var errNoXFixes = errors.New("XFixes extension not available")

// Cursor reads the current pointer image through XFixes.
func (p *Platform) Cursor() (*matte.Cursor, error) {
	if !p.xfixes {
		return nil, errNoXFixes
	}
	reply, err := xfixes.GetCursorImage(p.conn).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor image: %w", err)
	}
	return cursorFromARGB(
		int(reply.Width), int(reply.Height),
		image.Pt(int(reply.X), int(reply.Y)),
		image.Pt(int(reply.Xhot), int(reply.Yhot)),
		reply.CursorImage,
	), nil
}

// cursorFromARGB converts XFixes pixels, premultiplied ARGB packed in 32-bit
// words, to a straight-alpha cursor. An empty image means the pointer is
// hidden.
func cursorFromARGB(w, h int, pos, hot image.Point, argb []uint32) *matte.Cursor {
	c := &matte.Cursor{Position: pos, Hotspot: hot}
	if w <= 0 || h <= 0 || len(argb) < w*h {
		return c
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, px := range argb[:w*h] {
		a := px >> 24
		if a == 0 {
			continue
		}
		r, g, b := (px>>16)&0xff, (px>>8)&0xff, px&0xff
		o := i * 4
		img.Pix[o] = unpremultiply(r, a)
		img.Pix[o+1] = unpremultiply(g, a)
		img.Pix[o+2] = unpremultiply(b, a)
		img.Pix[o+3] = uint8(a)
	}
	c.Image = img
	c.Visible = true
	return c
}

func unpremultiply(v, a uint32) uint8 {
	out := (v*255 + a/2) / a
	if out > 255 {
		out = 255
	}
	return uint8(out)
}
