//go:build windows

package gdi

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
	"unsafe"

	"github.com/bryanchriswhite/AlphaShot/internal/capture"
	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const (
	backdropClass = "AlphaShotBackdrop"
	lwaAlpha      = 0x2
)

var (
	user32                         = windows.NewLazySystemDLL("user32.dll")
	gdi32                          = windows.NewLazySystemDLL("gdi32.dll")
	procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")
	procFillRect                   = user32.NewProc("FillRect")
	procCreateSolidBrush           = gdi32.NewProc("CreateSolidBrush")

	registerOnce sync.Once
	registerErr  error

	// colours maps live backdrops to their fill; the window procedure is
	// shared by every backdrop.
	coloursMu sync.Mutex
	colours   = map[win.HWND]color.RGBA{}
)

// Backdrop is a borderless layered popup. It is created fully transparent,
// stacked under the target, and only then made opaque so it never flashes
// above it.
type Backdrop struct {
	hwnd   win.HWND
	closed bool
}

func registerClass() error {
	registerOnce.Do(func() {
		wc := win.WNDCLASSEX{
			CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
			Style:         win.CS_HREDRAW | win.CS_VREDRAW,
			LpfnWndProc:   windows.NewCallback(backdropProc),
			HInstance:     win.GetModuleHandle(nil),
			HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_ARROW)),
			LpszClassName: windows.StringToUTF16Ptr(backdropClass),
		}
		if win.RegisterClassEx(&wc) == 0 {
			registerErr = fmt.Errorf("RegisterClassEx failed for %s", backdropClass)
		}
	})
	return registerErr
}

func backdropProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_ERASEBKGND:
		coloursMu.Lock()
		c, ok := colours[hwnd]
		coloursMu.Unlock()
		if !ok {
			break
		}
		var rc win.RECT
		win.GetClientRect(hwnd, &rc)
		brush, _, _ := procCreateSolidBrush.Call(uintptr(colorref(c)))
		if brush == 0 {
			break
		}
		procFillRect.Call(wParam, uintptr(unsafe.Pointer(&rc)), brush)
		win.DeleteObject(win.HGDIOBJ(brush))
		return 1
	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		win.BeginPaint(hwnd, &ps)
		win.EndPaint(hwnd, &ps)
		return 0
	case win.WM_NCHITTEST:
		return ^uintptr(0) // HTTRANSPARENT
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func setAlpha(hwnd win.HWND, alpha uint8) bool {
	r, _, _ := procSetLayeredWindowAttributes.Call(uintptr(hwnd), 0, uintptr(alpha), lwaAlpha)
	return r != 0
}

// NewBackdrop creates the backdrop on the calling thread, which must keep
// pumping its messages (Settle does) until Close.
func (p *Platform) NewBackdrop(target config.WindowID, r image.Rectangle, c color.RGBA) (capture.Backdrop, error) {
	if err := registerClass(); err != nil {
		return nil, err
	}

	hwnd := win.CreateWindowEx(
		win.WS_EX_LAYERED|win.WS_EX_TOOLWINDOW|win.WS_EX_NOACTIVATE|win.WS_EX_TRANSPARENT,
		windows.StringToUTF16Ptr(backdropClass),
		windows.StringToUTF16Ptr("AlphaShot backdrop"),
		win.WS_POPUP,
		int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return nil, fmt.Errorf("CreateWindowEx failed")
	}
	b := &Backdrop{hwnd: hwnd}

	coloursMu.Lock()
	colours[hwnd] = c
	coloursMu.Unlock()

	if !setAlpha(hwnd, 0) {
		b.Close()
		return nil, fmt.Errorf("SetLayeredWindowAttributes failed")
	}
	win.ShowWindow(hwnd, win.SW_SHOWNOACTIVATE)
	if !win.SetWindowPos(hwnd, win.HWND(target),
		int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()),
		win.SWP_NOACTIVATE) {
		b.Close()
		return nil, fmt.Errorf("failed to stack backdrop below %s", target)
	}
	if !setAlpha(hwnd, 255) {
		b.Close()
		return nil, fmt.Errorf("SetLayeredWindowAttributes failed")
	}
	win.InvalidateRect(hwnd, nil, true)
	win.UpdateWindow(hwnd)

	logger.WithComponent("gdi-platform").Debug().
		Uint64("backdrop_id", uint64(hwnd)).
		Stringer("target", target).
		Str("rect", r.String()).
		Msg("Backdrop shown")
	return b, nil
}

// SetColor repaints the backdrop synchronously.
func (b *Backdrop) SetColor(c color.RGBA) error {
	if b.closed {
		return fmt.Errorf("backdrop already destroyed")
	}
	coloursMu.Lock()
	colours[b.hwnd] = c
	coloursMu.Unlock()
	if !win.InvalidateRect(b.hwnd, nil, true) {
		return fmt.Errorf("InvalidateRect failed")
	}
	win.UpdateWindow(b.hwnd)
	return nil
}

// Settle pumps the thread's messages for d, then waits for DWM to compose.
func (b *Backdrop) Settle(d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		pump()
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	dwmFlush()
}

// Close destroys the window. Later calls do nothing.
func (b *Backdrop) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	coloursMu.Lock()
	delete(colours, b.hwnd)
	coloursMu.Unlock()
	ok := win.DestroyWindow(b.hwnd)
	pump()
	if !ok {
		return fmt.Errorf("DestroyWindow failed")
	}
	return nil
}

func pump() {
	var msg win.MSG
	for win.PeekMessage(&msg, 0, 0, 0, win.PM_REMOVE) {
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
}
