package capture

import (
	"fmt"
	"image"
	"image/color"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
)

// Request describes one capture. It is not modified once submitted.
type Request struct {
	Window        config.WindowID
	Background    config.BackgroundMode
	SolidColor    color.RGBA
	CheckerSize   int
	CaptureCursor bool
	// Resize, when non-zero, asks for the window to be resized so that the
	// final image has these dimensions.
	Resize image.Point
}

// NewRequest builds a request for id from the configured capture defaults.
func NewRequest(id config.WindowID, cfg config.CaptureConfig) (Request, error) {
	mode, err := config.ParseBackgroundMode(string(cfg.Background))
	if err != nil {
		return Request{}, err
	}
	c, err := config.ParseColor(cfg.SolidColor)
	if err != nil {
		return Request{}, err
	}
	req := Request{
		Window:        id,
		Background:    mode,
		SolidColor:    c,
		CheckerSize:   cfg.CheckerSize,
		CaptureCursor: cfg.CaptureCursor,
	}
	if cfg.Resize.Enabled {
		req.Resize = image.Pt(cfg.Resize.Width, cfg.Resize.Height)
	}
	return req, req.Validate()
}

// Validate checks the request before any window state is touched.
func (r Request) Validate() error {
	if r.Window == 0 {
		return fmt.Errorf("no window selected")
	}
	switch r.Background {
	case config.BackgroundTransparent, config.BackgroundSolid:
	case config.BackgroundCheckerboard:
		if r.CheckerSize < 1 {
			return fmt.Errorf("invalid checker size: %d", r.CheckerSize)
		}
	default:
		return fmt.Errorf("invalid background mode: %q", r.Background)
	}
	if r.Resize != (image.Point{}) && (r.Resize.X < 1 || r.Resize.Y < 1) {
		return fmt.Errorf("invalid resize target: %dx%d", r.Resize.X, r.Resize.Y)
	}
	return nil
}

// Result is a finished capture.
type Result struct {
	ID     string
	Window config.WindowID
	Title  string
	Mode   config.BackgroundMode
	Image  *image.NRGBA
	// CaptureRect is the screen rectangle both passes were taken from.
	CaptureRect image.Rectangle
	// CropRect is the part of CaptureRect that survived autocrop, in screen
	// coordinates.
	CropRect image.Rectangle
	// Extended reports whether CaptureRect came from compositor frame bounds.
	Extended bool
}
