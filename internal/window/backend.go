package window

import (
	"image"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
)

// Backend defines the window-system operations a capture needs (X11, Win32)
type Backend interface {
	// Close closes the connection to the display server
	Close() error

	// Name returns the backend name (e.g., "x11", "win32")
	Name() string

	// ListWindows returns all visible application windows
	ListWindows() ([]*config.WindowInfo, error)

	// GetFocusedWindow returns the currently focused window
	GetFocusedWindow() (*config.WindowInfo, error)

	// GetWindowInfo describes a single window
	GetWindowInfo(id config.WindowID) (*config.WindowInfo, error)

	// WindowRect returns the outer rectangle, decorations included, in
	// virtual-screen coordinates
	WindowRect(id config.WindowID) (image.Rectangle, error)

	// SetWindowRect moves and resizes the window so WindowRect returns r
	SetWindowRect(id config.WindowID, r image.Rectangle) error

	// Restore un-minimises the window
	Restore(id config.WindowID) error

	// Show makes the window visible without changing its state
	Show(id config.WindowID) error

	// Activate brings the window to the foreground
	Activate(id config.WindowID) error

	// ShellWindows returns the desktop shell's panels (taskbar, start button)
	ShellWindows() ([]config.WindowID, error)

	// SetVisible hides or shows a window
	SetVisible(id config.WindowID, visible bool) error
}
