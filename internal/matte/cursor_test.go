package matte

import (
	"image"
	"image/color"
	"testing"
)

func redCursor(visible bool) *Cursor {
	return &Cursor{
		Image:    fillNRGBA(3, 3, color.NRGBA{255, 0, 0, 255}),
		Position: image.Pt(105, 107),
		Hotspot:  image.Pt(1, 1),
		Visible:  visible,
	}
}

func TestDrawCursorOffsets(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	DrawCursor(dst, image.Pt(100, 100), redCursor(true))

	if got := dst.NRGBAAt(4, 6); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Fatalf("expected cursor top-left at (4,6), got %v", got)
	}
	if got := dst.NRGBAAt(6, 8); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Fatalf("expected cursor bottom-right at (6,8), got %v", got)
	}
	if got := dst.NRGBAAt(3, 6); got.A != 0 {
		t.Fatalf("expected pixel left of cursor untouched, got %v", got)
	}
}

func TestDrawCursorClipsToBuffer(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	c := redCursor(true)
	c.Position = image.Pt(4, 4)
	c.Hotspot = image.Point{}

	DrawCursor(dst, image.Point{}, c)

	if dst.Bounds() != image.Rect(0, 0, 5, 5) {
		t.Fatalf("buffer must not be resized, got %v", dst.Bounds())
	}
	if got := dst.NRGBAAt(4, 4); got.A != 255 {
		t.Fatalf("expected visible corner pixel drawn, got %v", got)
	}
}

func TestDrawCursorHidden(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	DrawCursor(dst, image.Pt(100, 100), redCursor(false))
	DrawCursor(dst, image.Pt(100, 100), nil)

	for i := 3; i < len(dst.Pix); i += 4 {
		if dst.Pix[i] != 0 {
			t.Fatalf("hidden cursor must not draw")
		}
	}
}

func TestDrawCursorBlendsAlpha(t *testing.T) {
	dst := fillNRGBA(1, 1, color.NRGBA{0, 0, 0, 255})
	c := &Cursor{
		Image:   fillNRGBA(1, 1, color.NRGBA{255, 255, 255, 128}),
		Visible: true,
	}
	DrawCursor(dst, image.Point{}, c)

	got := dst.NRGBAAt(0, 0)
	if got.A != 255 || got.R < 126 || got.R > 130 {
		t.Fatalf("expected half-blended grey, got %v", got)
	}
}
