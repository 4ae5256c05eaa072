//go:build windows

package window

import (
	"fmt"
	"image"
	"syscall"
	"unsafe"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
)

// Win32Backend implements the Backend interface with user32
type Win32Backend struct{}

// NewWin32Backend creates a new Win32 backend
func NewWin32Backend() (*Win32Backend, error) {
	return &Win32Backend{}, nil
}

// Close is a no-op; user32 needs no connection
func (b *Win32Backend) Close() error {
	return nil
}

// Name returns the backend name
func (b *Win32Backend) Name() string {
	return "win32"
}

// ListWindows walks the desktop's top-level windows in z-order
func (b *Win32Backend) ListWindows() ([]*config.WindowInfo, error) {
	log := logger.WithComponent("win32-backend")

	foreground := win.GetForegroundWindow()
	windows := make([]*config.WindowInfo, 0)
	for hwnd := win.GetWindow(win.GetDesktopWindow(), win.GW_CHILD); hwnd != 0; hwnd = win.GetWindow(hwnd, win.GW_HWNDNEXT) {
		if !win.IsWindowVisible(hwnd) {
			continue
		}
		if win.GetWindowLong(hwnd, win.GWL_EXSTYLE)&win.WS_EX_TOOLWINDOW != 0 {
			continue
		}
		info, err := b.getWindowInfo(hwnd)
		if err != nil || info.Title == "" {
			continue
		}
		info.Focused = hwnd == foreground
		windows = append(windows, info)
	}

	log.Debug().Int("count", len(windows)).Msg("ListWindows: enumerated top-level windows")
	return windows, nil
}

// GetFocusedWindow returns the foreground window
func (b *Win32Backend) GetFocusedWindow() (*config.WindowInfo, error) {
	hwnd := win.GetForegroundWindow()
	if hwnd == 0 {
		return nil, fmt.Errorf("no foreground window")
	}
	info, err := b.getWindowInfo(hwnd)
	if err != nil {
		return nil, err
	}
	info.Focused = true
	return info, nil
}

// GetWindowInfo describes a single window
func (b *Win32Backend) GetWindowInfo(id config.WindowID) (*config.WindowInfo, error) {
	hwnd := win.HWND(id)
	info, err := b.getWindowInfo(hwnd)
	if err != nil {
		return nil, err
	}
	info.Focused = win.GetForegroundWindow() == hwnd
	return info, nil
}

func (b *Win32Backend) getWindowInfo(hwnd win.HWND) (*config.WindowInfo, error) {
	r, err := b.WindowRect(config.WindowID(hwnd))
	if err != nil {
		return nil, err
	}

	info := &config.WindowInfo{
		ID:        config.WindowID(hwnd),
		Title:     windowText(hwnd),
		Minimized: win.IsIconic(hwnd),
		Resizable: win.GetWindowLong(hwnd, win.GWL_STYLE)&win.WS_SIZEBOX != 0,
		Geometry:  config.Geometry{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()},
	}

	class := make([]uint16, 256)
	if n, err := win.GetClassName(hwnd, &class[0], len(class)); err == nil && n > 0 {
		info.Class = syscall.UTF16ToString(class[:n])
	}

	var pid uint32
	win.GetWindowThreadProcessId(hwnd, &pid)
	info.PID = int(pid)

	return info, nil
}

func windowText(hwnd win.HWND) string {
	n, _, _ := procGetWindowTextLength.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return syscall.UTF16ToString(buf)
}

// WindowRect returns GetWindowRect
func (b *Win32Backend) WindowRect(id config.WindowID) (image.Rectangle, error) {
	var r win.RECT
	if !win.GetWindowRect(win.HWND(id), &r) {
		return image.Rectangle{}, fmt.Errorf("GetWindowRect failed for %s", id)
	}
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), nil
}

// SetWindowRect moves and resizes without changing z-order or activation
func (b *Win32Backend) SetWindowRect(id config.WindowID, r image.Rectangle) error {
	if !win.SetWindowPos(win.HWND(id), 0, int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()),
		win.SWP_NOZORDER|win.SWP_NOACTIVATE|win.SWP_NOOWNERZORDER) {
		return fmt.Errorf("SetWindowPos failed for %s", id)
	}
	return nil
}

// Restore un-minimises the window
func (b *Win32Backend) Restore(id config.WindowID) error {
	win.ShowWindow(win.HWND(id), win.SW_RESTORE)
	return nil
}

// Show makes the window visible
func (b *Win32Backend) Show(id config.WindowID) error {
	win.ShowWindow(win.HWND(id), win.SW_SHOW)
	return nil
}

// Activate brings the window to the foreground
func (b *Win32Backend) Activate(id config.WindowID) error {
	if !win.SetForegroundWindow(win.HWND(id)) {
		return fmt.Errorf("SetForegroundWindow refused for %s", id)
	}
	return nil
}

// ShellWindows returns the taskbar and the start button
func (b *Win32Backend) ShellWindows() ([]config.WindowID, error) {
	var ids []config.WindowID
	if hwnd := win.FindWindow(syscall.StringToUTF16Ptr("Shell_TrayWnd"), nil); hwnd != 0 {
		ids = append(ids, config.WindowID(hwnd))
	}
	if hwnd := win.FindWindow(syscall.StringToUTF16Ptr("Button"), syscall.StringToUTF16Ptr("Start")); hwnd != 0 {
		ids = append(ids, config.WindowID(hwnd))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("taskbar not found")
	}
	return ids, nil
}

// SetVisible hides or shows a window
func (b *Win32Backend) SetVisible(id config.WindowID, visible bool) error {
	cmd := int32(win.SW_HIDE)
	if visible {
		cmd = win.SW_SHOW
	}
	win.ShowWindow(win.HWND(id), cmd)
	return nil
}
