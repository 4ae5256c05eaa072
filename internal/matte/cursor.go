package matte

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Cursor is a snapshot of the system pointer.
type Cursor struct {
	Image    *image.NRGBA
	Position image.Point // screen position of the hotspot
	Hotspot  image.Point // hotspot offset inside Image
	Visible  bool
}

// DrawCursor alpha-blends the cursor onto dst, where dst's top-left pixel sits
// at origin in screen coordinates. Pixels falling outside dst are clipped and
// dst is never resized. Hidden or empty cursors are ignored.
func DrawCursor(dst *image.NRGBA, origin image.Point, c *Cursor) {
	if c == nil || !c.Visible || c.Image == nil || c.Image.Bounds().Empty() {
		return
	}
	at := c.Position.Sub(origin).Sub(c.Hotspot).Add(dst.Bounds().Min)
	r := image.Rectangle{Min: at, Max: at.Add(c.Image.Bounds().Size())}
	xdraw.Draw(dst, r, c.Image, c.Image.Bounds().Min, xdraw.Over)
}
