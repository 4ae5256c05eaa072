//go:build windows

package gdi

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/kbinani/screenshot"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const dwmwaExtendedFrameBounds = 9

var (
	dwmapi                       = windows.NewLazySystemDLL("dwmapi.dll")
	procDwmGetWindowAttribute    = dwmapi.NewProc("DwmGetWindowAttribute")
	procDwmIsCompositionEnabled  = dwmapi.NewProc("DwmIsCompositionEnabled")
	procDwmFlush                 = dwmapi.NewProc("DwmFlush")
	errCompositionDisabled       = errors.New("desktop composition is disabled")
	errExtendedBoundsUnavailable = errors.New("extended frame bounds unavailable")
)

// Platform implements capture.Platform with GDI and the desktop window
// manager.
type Platform struct{}

// New checks that the screen can be read.
func New() (*Platform, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	logger.WithComponent("gdi-platform").Info().
		Bool("composition", compositionEnabled()).
		Int("displays", screenshot.NumActiveDisplays()).
		Msg("GDI capture platform initialized")
	return &Platform{}, nil
}

func compositionEnabled() bool {
	if procDwmIsCompositionEnabled.Find() != nil {
		return false
	}
	var enabled int32
	hr, _, _ := procDwmIsCompositionEnabled.Call(uintptr(unsafe.Pointer(&enabled)))
	return hr == 0 && enabled != 0
}

// ExtendedFrameBounds asks DWM for the window's visual bounds.
func (p *Platform) ExtendedFrameBounds(id config.WindowID) (image.Rectangle, error) {
	if !compositionEnabled() {
		return image.Rectangle{}, errCompositionDisabled
	}
	var r win.RECT
	hr, _, _ := procDwmGetWindowAttribute.Call(
		uintptr(id),
		dwmwaExtendedFrameBounds,
		uintptr(unsafe.Pointer(&r)),
		unsafe.Sizeof(r),
	)
	if hr != 0 {
		return image.Rectangle{}, fmt.Errorf("%w: HRESULT %#x", errExtendedBoundsUnavailable, hr)
	}
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), nil
}

// WindowRect returns GetWindowRect.
func (p *Platform) WindowRect(id config.WindowID) (image.Rectangle, error) {
	var r win.RECT
	if !win.GetWindowRect(win.HWND(id), &r) {
		return image.Rectangle{}, fmt.Errorf("GetWindowRect failed for %s", id)
	}
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), nil
}

// Displays returns the bounds of every monitor.
func (p *Platform) Displays() ([]image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	rects := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		rects = append(rects, screenshot.GetDisplayBounds(i))
	}
	return rects, nil
}

// CaptureRect blits r from the screen. Layered windows are included.
func (p *Platform) CaptureRect(r image.Rectangle) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(r)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %v: %w", r, err)
	}
	return img, nil
}

// dwmFlush waits for the next composition pass when DWM is available.
func dwmFlush() {
	if procDwmFlush.Find() == nil {
		procDwmFlush.Call()
	}
}
