package window

import (
	"fmt"
	"image"
	"sort"
	"strings"
	"time"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
)

// Manager wraps a Backend with the window preparation steps done before a
// capture.
type Manager struct {
	backend Backend
	sleep   func(time.Duration)
}

// NewManager creates a new window manager
func NewManager(backend Backend) *Manager {
	return &Manager{
		backend: backend,
		sleep:   time.Sleep,
	}
}

// Backend returns the underlying backend
func (m *Manager) Backend() Backend {
	return m.backend
}

// Close closes the backend
func (m *Manager) Close() error {
	return m.backend.Close()
}

// ListWindows returns all visible windows sorted by title
func (m *Manager) ListWindows() ([]*config.WindowInfo, error) {
	windows, err := m.backend.ListWindows()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(windows, func(i, j int) bool {
		return strings.ToLower(windows[i].Title) < strings.ToLower(windows[j].Title)
	})
	return windows, nil
}

// GetCurrentWindow returns the currently focused window
func (m *Manager) GetCurrentWindow() (*config.WindowInfo, error) {
	return m.backend.GetFocusedWindow()
}

// GetWindowInfo describes a single window
func (m *Manager) GetWindowInfo(id config.WindowID) (*config.WindowInfo, error) {
	return m.backend.GetWindowInfo(id)
}

// FindWindow returns the first window whose title or class contains query,
// case-insensitively.
func (m *Manager) FindWindow(query string) (*config.WindowInfo, error) {
	windows, err := m.ListWindows()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	for _, w := range windows {
		if strings.Contains(strings.ToLower(w.Title), q) || strings.Contains(strings.ToLower(w.Class), q) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("no window matches %q", query)
}

// Prepare gets a window ready to be captured: a minimised window is restored
// and given restoreDelay to animate, any other window is shown and given
// showDelay. The window is then brought to the foreground.
func (m *Manager) Prepare(id config.WindowID, restoreDelay, showDelay time.Duration) (*config.WindowInfo, error) {
	log := logger.WithComponent("window-manager")

	info, err := m.backend.GetWindowInfo(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get window info: %w", err)
	}

	if info.Minimized {
		log.Debug().Stringer("window_id", id).Msg("Restoring minimised window")
		if err := m.backend.Restore(id); err != nil {
			return nil, fmt.Errorf("failed to restore window: %w", err)
		}
		m.sleep(restoreDelay)
	} else {
		if err := m.backend.Show(id); err != nil {
			return nil, fmt.Errorf("failed to show window: %w", err)
		}
		m.sleep(showDelay)
	}

	if err := m.backend.Activate(id); err != nil {
		// Some window managers refuse focus requests; the capture still works.
		log.Warn().Err(err).Stringer("window_id", id).Msg("Failed to activate window")
	}

	if refreshed, err := m.backend.GetWindowInfo(id); err == nil {
		info = refreshed
	}
	return info, nil
}

// HideShell hides the shell panels unless except is one of them. The returned
// function shows them again and must always be called.
func (m *Manager) HideShell(except config.WindowID) func() {
	log := logger.WithComponent("window-manager")

	panels, err := m.backend.ShellWindows()
	if err != nil {
		log.Debug().Err(err).Msg("No shell windows to hide")
		return func() {}
	}
	for _, p := range panels {
		if p == except {
			log.Debug().Stringer("window_id", except).Msg("Target is a shell window, leaving shell visible")
			return func() {}
		}
	}

	hidden := make([]config.WindowID, 0, len(panels))
	for _, p := range panels {
		if err := m.backend.SetVisible(p, false); err != nil {
			log.Warn().Err(err).Stringer("window_id", p).Msg("Failed to hide shell window")
			continue
		}
		hidden = append(hidden, p)
	}

	return func() {
		for _, p := range hidden {
			if err := m.backend.SetVisible(p, true); err != nil {
				log.Error().Err(err).Stringer("window_id", p).Msg("Failed to show shell window")
			}
		}
	}
}

// WindowRect returns the outer rectangle of a window
func (m *Manager) WindowRect(id config.WindowID) (image.Rectangle, error) {
	return m.backend.WindowRect(id)
}

// SetWindowRect moves and resizes a window
func (m *Manager) SetWindowRect(id config.WindowID, r image.Rectangle) error {
	if r.Empty() {
		return fmt.Errorf("invalid window rectangle %v", r)
	}
	return m.backend.SetWindowRect(id, r)
}
