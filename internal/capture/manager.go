package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StateSaved is published after the caller has written a result to disk.
// The engine never enters it.
const StateSaved State = "saved"

// WindowControl is the window-system half of a capture: getting the target
// on screen, hiding the shell and resizing. window.Manager implements it.
type WindowControl interface {
	Prepare(id config.WindowID, restoreDelay, showDelay time.Duration) (*config.WindowInfo, error)
	GetWindowInfo(id config.WindowID) (*config.WindowInfo, error)
	HideShell(except config.WindowID) func()
	WindowRect(id config.WindowID) (image.Rectangle, error)
	SetWindowRect(id config.WindowID, r image.Rectangle) error
}

// Event reports the progress of one capture.
type Event struct {
	ID       string          `json:"id"`
	WindowID config.WindowID `json:"window_id"`
	Title    string          `json:"title,omitempty"`
	State    State           `json:"state"`
	Reason   Reason          `json:"reason,omitempty"`
	Error    string          `json:"error,omitempty"`
	Width    int             `json:"width,omitempty"`
	Height   int             `json:"height,omitempty"`
	Path     string          `json:"path,omitempty"`
}

// Manager runs captures on behalf of the CLI and the API. Each capture runs
// on its own goroutine locked to an OS thread, since native backdrop windows
// belong to the thread that created them. A window can only be captured by
// one request at a time.
type Manager struct {
	platform Platform
	windows  WindowControl

	mu       sync.Mutex
	cfg      config.CaptureConfig
	inflight map[config.WindowID]string

	subMu sync.RWMutex
	subs  map[chan Event]struct{}

	sleep func(time.Duration)
}

// NewManager creates a capture manager.
func NewManager(p Platform, windows WindowControl, cfg config.CaptureConfig) *Manager {
	return &Manager{
		platform: p,
		windows:  windows,
		cfg:      cfg,
		inflight: make(map[config.WindowID]string),
		subs:     make(map[chan Event]struct{}),
		sleep:    time.Sleep,
	}
}

// SetConfig replaces the timing and preparation settings used by later
// captures.
func (m *Manager) SetConfig(cfg config.CaptureConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// Config returns the current capture settings.
func (m *Manager) Config() config.CaptureConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Busy reports whether id is being captured.
func (m *Manager) Busy(id config.WindowID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[id]
	return ok
}

func (m *Manager) acquire(id config.WindowID, captureID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[id]; ok {
		return false
	}
	m.inflight[id] = captureID
	return true
}

func (m *Manager) release(id config.WindowID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, id)
}

// Capture runs req on a dedicated worker and waits for it. If ctx ends first
// Capture returns ctx.Err(); the worker still finishes and restores window
// state, and the window stays busy until it has.
func (m *Manager) Capture(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if !m.acquire(req.Window, id) {
		return nil, newError(ReasonBusy, "capture", fmt.Errorf("window %s is already being captured", req.Window))
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer m.release(req.Window)

		res, err := m.run(id, req)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		logger.WithComponent("capture-manager").Warn().
			Str("capture_id", id).
			Stringer("window_id", req.Window).
			Msg("Caller gave up waiting, capture continues in the background")
		return nil, ctx.Err()
	}
}

func (m *Manager) run(id string, req Request) (res *Result, err error) {
	log := logger.WithComponent("capture-manager").With().
		Str("capture_id", id).
		Stringer("window_id", req.Window).
		Logger()
	cfg := m.Config()
	start := time.Now()

	title := ""
	defer func() {
		ev := Event{ID: id, WindowID: req.Window, Title: title}
		if err != nil {
			ev.State = StateFailed
			ev.Reason = ReasonOf(err)
			ev.Error = err.Error()
			m.Publish(ev)
			return
		}
		b := res.Image.Bounds()
		log.Info().
			Int("width", b.Dx()).
			Int("height", b.Dy()).
			Dur("elapsed", time.Since(start)).
			Msg("Capture complete")
	}()

	info, err := m.windows.Prepare(req.Window, cfg.RestoreDelay, cfg.ShowDelay)
	if err != nil {
		return nil, newError(ReasonInvalidRect, "prepare", err)
	}
	title = info.Title

	if cfg.HideShell {
		defer m.windows.HideShell(req.Window)()
	}

	engine := NewEngine(m.platform, EngineOptions{
		ShadowMargin: cfg.ShadowMargin,
		SettleDelay:  cfg.SettleDelay,
		OnState: func(w config.WindowID, s State) {
			// Terminal states are published once the result is known.
			if s == StateDone || s == StateFailed {
				return
			}
			m.Publish(Event{ID: id, WindowID: w, Title: title, State: s})
		},
	})

	if req.Resize != (image.Point{}) {
		if restore := m.smartResize(req, info, cfg, &log); restore != nil {
			defer restore()
		}
	}

	res, err = engine.Capture(req)
	if err != nil {
		return nil, err
	}
	res.ID = id
	res.Title = title

	b := res.Image.Bounds()
	m.Publish(Event{
		ID:       id,
		WindowID: req.Window,
		Title:    title,
		State:    StateDone,
		Width:    b.Dx(),
		Height:   b.Dy(),
	})
	return res, nil
}

// smartResize sizes the window so that the final capture, shadow and frame
// included, matches req.Resize. A preliminary capture measures how far the
// visual bounds overhang the window rectangle. It returns a function putting
// the window back, or nil if nothing was changed.
func (m *Manager) smartResize(req Request, info *config.WindowInfo, cfg config.CaptureConfig, log *zerolog.Logger) func() {
	if !info.Resizable {
		log.Debug().Msg("Window is not resizable, capturing at its current size")
		return nil
	}

	original, err := m.windows.WindowRect(req.Window)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read window rectangle, skipping resize")
		return nil
	}

	probe := req
	probe.Resize = image.Point{}
	probe.CaptureCursor = false
	quiet := NewEngine(m.platform, EngineOptions{
		ShadowMargin: cfg.ShadowMargin,
		SettleDelay:  cfg.SettleDelay,
	})

	size := req.Resize
	if res, err := quiet.Capture(probe); err == nil {
		b := res.Image.Bounds()
		size = image.Pt(
			req.Resize.X-(b.Dx()-original.Dx()),
			req.Resize.Y-(b.Dy()-original.Dy()),
		)
	} else if !errors.Is(err, ErrBlankCapture) {
		log.Warn().Err(err).Msg("Preliminary capture failed, resizing to the raw target")
	}

	target := image.Rectangle{Min: original.Min, Max: original.Min.Add(size)}
	if err := m.windows.SetWindowRect(req.Window, target); err != nil {
		log.Warn().Err(err).Str("target", target.String()).Msg("Failed to resize window")
		return nil
	}
	log.Debug().Str("from", original.String()).Str("to", target.String()).Msg("Resized window")
	m.sleep(cfg.ResizeDelay)

	return func() {
		current, err := m.windows.GetWindowInfo(req.Window)
		if err != nil || !current.Resizable {
			return
		}
		if err := m.windows.SetWindowRect(req.Window, original); err != nil {
			log.Warn().Err(err).Msg("Failed to restore window size")
		}
	}
}

// Subscribe returns a channel receiving every capture event. Slow
// subscribers miss events rather than stalling captures.
func (m *Manager) Subscribe() chan Event {
	ch := make(chan Event, 32)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (m *Manager) Unsubscribe(ch chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
}

// Publish sends ev to every subscriber without blocking.
func (m *Manager) Publish(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
