package capture

import (
	"image"
	"image/color"
	"time"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/geometry"
	"github.com/bryanchriswhite/AlphaShot/internal/matte"
)

// Platform is the native half of a capture: screen reads, the backdrop
// window and cursor queries.
type Platform interface {
	geometry.FrameSource

	// CaptureRect copies r from the virtual screen, including windows
	// blended by the compositor. The returned image is opaque and has r's
	// size. Errors mean the display could not be read at all.
	CaptureRect(r image.Rectangle) (*image.RGBA, error)

	// NewBackdrop creates a borderless surface filling r with c, stacked
	// directly below target and shown without taking focus.
	NewBackdrop(target config.WindowID, r image.Rectangle, c color.RGBA) (Backdrop, error)

	// Cursor returns the current pointer image. A hidden pointer is
	// reported with Visible unset.
	Cursor() (*matte.Cursor, error)
}

// Backdrop is the matte window placed behind the target.
type Backdrop interface {
	// SetColor repaints the whole surface.
	SetColor(c color.RGBA) error
	// Settle gives the compositor d to put pending changes on screen,
	// processing any window-system work that is queued meanwhile.
	Settle(d time.Duration)
	// Close destroys the surface. It is safe to call more than once.
	Close() error
}

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
)
