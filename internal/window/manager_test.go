package window

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
)

type fakeBackend struct {
	windows  map[config.WindowID]*config.WindowInfo
	focused  config.WindowID
	shell    []config.WindowID
	hidden   map[config.WindowID]bool
	calls    []string
	hideErr  error
	activate error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		windows: map[config.WindowID]*config.WindowInfo{
			1: {ID: 1, Title: "Terminal", Class: "XTerm", Geometry: config.Geometry{X: 10, Y: 10, Width: 300, Height: 200}},
			2: {ID: 2, Title: "browser", Class: "Firefox", Minimized: true},
			9: {ID: 9, Title: "panel", Class: "Panel"},
		},
		shell:  []config.WindowID{9},
		hidden: map[config.WindowID]bool{},
	}
}

func (f *fakeBackend) Close() error { return nil }
func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) ListWindows() ([]*config.WindowInfo, error) {
	var out []*config.WindowInfo
	for _, id := range []config.WindowID{2, 9, 1} {
		w := *f.windows[id]
		out = append(out, &w)
	}
	return out, nil
}

func (f *fakeBackend) GetFocusedWindow() (*config.WindowInfo, error) {
	return f.GetWindowInfo(f.focused)
}

func (f *fakeBackend) GetWindowInfo(id config.WindowID) (*config.WindowInfo, error) {
	w, ok := f.windows[id]
	if !ok {
		return nil, errors.New("bad window")
	}
	c := *w
	return &c, nil
}

func (f *fakeBackend) WindowRect(id config.WindowID) (image.Rectangle, error) {
	g := f.windows[id].Geometry
	return image.Rect(g.X, g.Y, g.X+g.Width, g.Y+g.Height), nil
}

func (f *fakeBackend) SetWindowRect(id config.WindowID, r image.Rectangle) error {
	f.calls = append(f.calls, "set_rect")
	f.windows[id].Geometry = config.Geometry{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
	return nil
}

func (f *fakeBackend) Restore(id config.WindowID) error {
	f.calls = append(f.calls, "restore")
	f.windows[id].Minimized = false
	return nil
}

func (f *fakeBackend) Show(config.WindowID) error {
	f.calls = append(f.calls, "show")
	return nil
}

func (f *fakeBackend) Activate(id config.WindowID) error {
	f.calls = append(f.calls, "activate")
	f.focused = id
	return f.activate
}

func (f *fakeBackend) ShellWindows() ([]config.WindowID, error) {
	return f.shell, nil
}

func (f *fakeBackend) SetVisible(id config.WindowID, visible bool) error {
	if !visible && f.hideErr != nil {
		return f.hideErr
	}
	f.hidden[id] = !visible
	return nil
}

func newTestManager(b Backend) (*Manager, *[]time.Duration) {
	m := NewManager(b)
	var slept []time.Duration
	m.sleep = func(d time.Duration) { slept = append(slept, d) }
	return m, &slept
}

func TestPrepareRestoresMinimisedWindow(t *testing.T) {
	b := newFakeBackend()
	m, slept := newTestManager(b)

	info, err := m.Prepare(2, 300*time.Millisecond, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if info.Minimized {
		t.Fatalf("expected refreshed info after restore")
	}
	if len(b.calls) != 2 || b.calls[0] != "restore" || b.calls[1] != "activate" {
		t.Fatalf("expected restore then activate, got %v", b.calls)
	}
	if len(*slept) != 1 || (*slept)[0] != 300*time.Millisecond {
		t.Fatalf("expected restore delay, got %v", *slept)
	}
}

func TestPrepareShowsNormalWindow(t *testing.T) {
	b := newFakeBackend()
	b.activate = errors.New("focus stealing prevented")
	m, slept := newTestManager(b)

	if _, err := m.Prepare(1, 300*time.Millisecond, 100*time.Millisecond); err != nil {
		t.Fatalf("activation failures must not fail Prepare: %v", err)
	}
	if b.calls[0] != "show" {
		t.Fatalf("expected show, got %v", b.calls)
	}
	if (*slept)[0] != 100*time.Millisecond {
		t.Fatalf("expected show delay, got %v", *slept)
	}
}

func TestPrepareUnknownWindow(t *testing.T) {
	m, _ := newTestManager(newFakeBackend())
	if _, err := m.Prepare(77, 0, 0); err == nil {
		t.Fatalf("expected error for unknown window")
	}
}

func TestHideShell(t *testing.T) {
	b := newFakeBackend()
	m, _ := newTestManager(b)

	restore := m.HideShell(1)
	if !b.hidden[9] {
		t.Fatalf("expected panel hidden")
	}
	restore()
	if b.hidden[9] {
		t.Fatalf("expected panel shown again")
	}
}

func TestHideShellSkipsWhenTargetIsShell(t *testing.T) {
	b := newFakeBackend()
	m, _ := newTestManager(b)

	restore := m.HideShell(9)
	if b.hidden[9] {
		t.Fatalf("shell must stay visible when it is the capture target")
	}
	restore()
}

func TestHideShellFailureDoesNotReshow(t *testing.T) {
	b := newFakeBackend()
	b.hideErr = errors.New("denied")
	m, _ := newTestManager(b)

	m.HideShell(1)()
	if _, touched := b.hidden[9]; touched {
		t.Fatalf("a panel that was never hidden must not be re-shown")
	}
}

func TestListWindowsSortedByTitle(t *testing.T) {
	m, _ := newTestManager(newFakeBackend())
	windows, err := m.ListWindows()
	if err != nil {
		t.Fatalf("ListWindows: %v", err)
	}
	got := []string{windows[0].Title, windows[1].Title, windows[2].Title}
	want := []string{"browser", "panel", "Terminal"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFindWindow(t *testing.T) {
	m, _ := newTestManager(newFakeBackend())
	w, err := m.FindWindow("firefox")
	if err != nil || w.ID != 2 {
		t.Fatalf("expected window 2, got %v (%v)", w, err)
	}
	if _, err := m.FindWindow("nothing"); err == nil {
		t.Fatalf("expected no match")
	}
}

func TestSetWindowRectRejectsEmpty(t *testing.T) {
	b := newFakeBackend()
	m, _ := newTestManager(b)
	if err := m.SetWindowRect(1, image.Rect(5, 5, 5, 50)); err == nil {
		t.Fatalf("expected empty rect to be rejected")
	}
	if err := m.SetWindowRect(1, image.Rect(0, 0, 640, 480)); err != nil {
		t.Fatalf("SetWindowRect: %v", err)
	}
	if r, _ := m.WindowRect(1); r != image.Rect(0, 0, 640, 480) {
		t.Fatalf("unexpected rect %v", r)
	}
}
