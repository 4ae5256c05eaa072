package x11

import (
	"image"
	"image/color"
	"testing"

	"github.com/BurntSushi/xgb/xinerama"
)

func TestCopyBGRX(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 2, 3))
	data := []byte{
		1, 2, 3, 0, 4, 5, 6, 0,
		7, 8, 9, 0, 10, 11, 12, 0,
	}
	if err := copyBGRX(dst, 1, data, 2, 2); err != nil {
		t.Fatalf("copyBGRX: %v", err)
	}
	if got := dst.RGBAAt(0, 1); got != (color.RGBA{3, 2, 1, 255}) {
		t.Errorf("unexpected first pixel %v", got)
	}
	if got := dst.RGBAAt(1, 2); got != (color.RGBA{12, 11, 10, 255}) {
		t.Errorf("unexpected last pixel %v", got)
	}
	if got := dst.RGBAAt(0, 0); got != (color.RGBA{}) {
		t.Errorf("row above the strip must be untouched, got %v", got)
	}
}

func TestCopyBGRXShortReply(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if err := copyBGRX(dst, 0, make([]byte, 12), 2, 2); err == nil {
		t.Fatalf("expected short reply to be rejected")
	}
}

func TestEncodePixel(t *testing.T) {
	c := color.RGBA{0x12, 0x34, 0x56, 255}
	if got := encodePixel(c, 0xff0000, 0x00ff00, 0x0000ff); got != 0x123456 {
		t.Errorf("expected 0x123456, got %#x", got)
	}
	// 16-bit RGB565
	white := color.RGBA{255, 255, 255, 255}
	if got := encodePixel(white, 0xf800, 0x07e0, 0x001f); got != 0xffff {
		t.Errorf("expected 0xffff, got %#x", got)
	}
	if got := encodePixel(color.RGBA{A: 255}, 0xff0000, 0x00ff00, 0x0000ff); got != 0 {
		t.Errorf("expected black to encode as 0, got %#x", got)
	}
}

func TestCursorFromARGB(t *testing.T) {
	argb := []uint32{
		0xff0000ff, // opaque blue
		0x80400000, // half-transparent red, premultiplied
		0x00000000,
		0xffffffff,
	}
	c := cursorFromARGB(2, 2, image.Pt(50, 60), image.Pt(1, 0), argb)
	if !c.Visible {
		t.Fatalf("expected visible cursor")
	}
	if c.Position != image.Pt(50, 60) || c.Hotspot != image.Pt(1, 0) {
		t.Fatalf("unexpected position %v hotspot %v", c.Position, c.Hotspot)
	}
	if got := c.Image.NRGBAAt(0, 0); got != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("unexpected opaque pixel %v", got)
	}
	if got := c.Image.NRGBAAt(1, 0); got.A != 0x80 || got.R < 126 || got.R > 128 {
		t.Errorf("expected un-premultiplied red, got %v", got)
	}
	if got := c.Image.NRGBAAt(0, 1); got != (color.NRGBA{}) {
		t.Errorf("expected transparent pixel, got %v", got)
	}
}

func TestCursorFromARGBHidden(t *testing.T) {
	c := cursorFromARGB(0, 0, image.Pt(5, 5), image.Point{}, nil)
	if c.Visible || c.Image != nil {
		t.Fatalf("expected hidden cursor, got %+v", c)
	}
}

func TestScreenRects(t *testing.T) {
	rects := screenRects([]xinerama.ScreenInfo{
		{XOrg: 0, YOrg: 0, Width: 1920, Height: 1080},
		{XOrg: -1280, YOrg: 100, Width: 1280, Height: 1024},
	})
	want := []image.Rectangle{
		image.Rect(0, 0, 1920, 1080),
		image.Rect(-1280, 100, 0, 1124),
	}
	for i := range want {
		if rects[i] != want[i] {
			t.Errorf("screen %d: expected %v, got %v", i, want[i], rects[i])
		}
	}
}
