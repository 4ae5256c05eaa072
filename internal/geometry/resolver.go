// Package geometry works out which part of the virtual screen a window
// occupies once its shadow is taken into account.
package geometry

import (
	"fmt"
	"image"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
)

// DefaultShadowMargin pads extended frame bounds so soft shadows are captured.
// Autocrop removes whatever the shadow did not need.
const DefaultShadowMargin = 100

// FrameSource is the window-system view the resolver needs.
type FrameSource interface {
	// ExtendedFrameBounds returns the compositor's visual bounds of the
	// window. It fails when no compositor is running.
	ExtendedFrameBounds(id config.WindowID) (image.Rectangle, error)
	// WindowRect returns the plain window rectangle including decorations.
	WindowRect(id config.WindowID) (image.Rectangle, error)
	// Displays returns the bounds of every active display.
	Displays() ([]image.Rectangle, error)
}

// Frame is a resolved capture rectangle.
type Frame struct {
	Rect     image.Rectangle
	Extended bool // Rect came from padded extended frame bounds
}

// Resolve returns the capture rectangle for id: the extended frame bounds
// padded by margin on all sides, or the unpadded window rectangle when the
// compositor cannot report extended bounds. The result is clipped to the
// virtual screen and may be empty if the window is entirely off-screen.
func Resolve(src FrameSource, id config.WindowID, margin int) (Frame, error) {
	var f Frame
	if r, err := src.ExtendedFrameBounds(id); err == nil && !r.Empty() {
		f = Frame{Rect: Pad(r, margin), Extended: true}
	} else {
		r, err := src.WindowRect(id)
		if err != nil {
			return Frame{}, fmt.Errorf("failed to get window rect for %s: %w", id, err)
		}
		f = Frame{Rect: r.Canon()}
	}

	displays, err := src.Displays()
	if err != nil {
		return Frame{}, fmt.Errorf("failed to get display bounds: %w", err)
	}
	f.Rect = Clip(f.Rect, VirtualScreen(displays))
	return f, nil
}

// Pad grows r by margin on every side.
func Pad(r image.Rectangle, margin int) image.Rectangle {
	if margin <= 0 {
		return r
	}
	return r.Inset(-margin)
}

// VirtualScreen is the bounding box of all displays.
func VirtualScreen(displays []image.Rectangle) image.Rectangle {
	var union image.Rectangle
	for _, d := range displays {
		union = union.Union(d)
	}
	return union
}

// Clip restricts r to screen. Edges are clamped independently so the result
// never has left > right or top > bottom; a rectangle that lies completely
// outside the screen clips to the empty rectangle.
func Clip(r, screen image.Rectangle) image.Rectangle {
	if screen.Empty() {
		return r
	}
	return r.Intersect(screen)
}
