package capture

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/matte"
)

// fakeScreen renders a fixed scene: every pixel of content is drawn over the
// backdrop colour according to its alpha, the way a compositor would.
type fakeScreen struct {
	mu sync.Mutex

	extended    image.Rectangle
	extendedErr error
	window      image.Rectangle
	displays    []image.Rectangle

	// content is the window scene in screen coordinates.
	content func(p image.Point) color.NRGBA

	cursor    *matte.Cursor
	cursorErr error

	captureErr  error
	blackShrink bool // return a smaller black capture
	backdropErr error
	setColorErr error

	backdrops []*fakeBackdrop
	captures  []image.Rectangle
}

func (f *fakeScreen) ExtendedFrameBounds(config.WindowID) (image.Rectangle, error) {
	if f.extendedErr != nil {
		return image.Rectangle{}, f.extendedErr
	}
	return f.extended, nil
}

func (f *fakeScreen) WindowRect(config.WindowID) (image.Rectangle, error) {
	return f.window, nil
}

func (f *fakeScreen) Displays() ([]image.Rectangle, error) {
	return f.displays, nil
}

func (f *fakeScreen) current() *fakeBackdrop {
	for i := len(f.backdrops) - 1; i >= 0; i-- {
		if !f.backdrops[i].closed {
			return f.backdrops[i]
		}
	}
	return nil
}

func (f *fakeScreen) CaptureRect(r image.Rectangle) (*image.RGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	f.captures = append(f.captures, r)

	bg := color.RGBA{40, 40, 40, 255} // desktop wallpaper
	if bd := f.current(); bd != nil {
		bg = bd.color
	}
	if f.blackShrink && bg == black {
		r.Max.X--
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			c := f.content(image.Pt(r.Min.X+x, r.Min.Y+y))
			a := int(c.A)
			blend := func(fg, back uint8) uint8 {
				return uint8((int(fg)*a + int(back)*(255-a)) / 255)
			}
			img.SetRGBA(x, y, color.RGBA{blend(c.R, bg.R), blend(c.G, bg.G), blend(c.B, bg.B), 255})
		}
	}
	return img, nil
}

func (f *fakeScreen) NewBackdrop(_ config.WindowID, r image.Rectangle, c color.RGBA) (Backdrop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backdropErr != nil {
		return nil, f.backdropErr
	}
	bd := &fakeBackdrop{screen: f, rect: r, color: c, history: []color.RGBA{c}}
	f.backdrops = append(f.backdrops, bd)
	return bd, nil
}

func (f *fakeScreen) Cursor() (*matte.Cursor, error) {
	return f.cursor, f.cursorErr
}

type fakeBackdrop struct {
	screen  *fakeScreen
	rect    image.Rectangle
	color   color.RGBA
	history []color.RGBA
	settles int
	closed  bool
	closes  int
}

func (b *fakeBackdrop) SetColor(c color.RGBA) error {
	if b.screen.setColorErr != nil {
		return b.screen.setColorErr
	}
	b.color = c
	b.history = append(b.history, c)
	return nil
}

func (b *fakeBackdrop) Settle(time.Duration) { b.settles++ }

func (b *fakeBackdrop) Close() error {
	b.closed = true
	b.closes++
	return nil
}

// squareWindow draws an opaque green 20x20 window at (200,200) with a 50%
// black shadow row directly underneath it.
func squareWindow(p image.Point) color.NRGBA {
	switch {
	case p.In(image.Rect(200, 200, 220, 220)):
		return color.NRGBA{10, 200, 30, 255}
	case p.In(image.Rect(200, 220, 220, 221)):
		return color.NRGBA{0, 0, 0, 128}
	}
	return color.NRGBA{}
}

func newFakeScreen() *fakeScreen {
	return &fakeScreen{
		extended: image.Rect(200, 200, 220, 220),
		window:   image.Rect(200, 200, 220, 220),
		displays: []image.Rectangle{image.Rect(0, 0, 1920, 1080)},
		content:  squareWindow,
	}
}

func transparentRequest() Request {
	return Request{Window: 0x42, Background: config.BackgroundTransparent, CheckerSize: 8}
}

func TestEngineTransparentCapture(t *testing.T) {
	screen := newFakeScreen()
	var states []State
	e := NewEngine(screen, EngineOptions{
		ShadowMargin: 100,
		OnState:      func(_ config.WindowID, s State) { states = append(states, s) },
	})

	res, err := e.Capture(transparentRequest())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if want := image.Rect(100, 100, 320, 320); res.CaptureRect != want {
		t.Fatalf("expected padded capture rect %v, got %v", want, res.CaptureRect)
	}
	if want := image.Rect(200, 200, 220, 221); res.CropRect != want {
		t.Fatalf("expected crop to window plus shadow %v, got %v", want, res.CropRect)
	}
	if s := res.Image.Bounds().Size(); s != image.Pt(20, 21) {
		t.Fatalf("expected 20x21 image, got %v", s)
	}
	if got := res.Image.NRGBAAt(5, 5); got != (color.NRGBA{10, 200, 30, 255}) {
		t.Errorf("expected opaque window body, got %v", got)
	}
	shadow := res.Image.NRGBAAt(5, 20)
	if shadow.A < 126 || shadow.A > 129 || shadow.R != 0 {
		t.Errorf("expected half-transparent black shadow, got %v", shadow)
	}

	if len(screen.captures) != 2 || screen.captures[0] != screen.captures[1] {
		t.Fatalf("expected two captures of the same rect, got %v", screen.captures)
	}
	bd := screen.backdrops[0]
	if len(bd.history) != 2 || bd.history[0] != white || bd.history[1] != black {
		t.Fatalf("expected white then black backdrop, got %v", bd.history)
	}
	if bd.closes != 1 {
		t.Fatalf("expected backdrop closed once, got %d", bd.closes)
	}
	if bd.settles != 2 {
		t.Fatalf("expected a settle after each colour, got %d", bd.settles)
	}

	want := []State{StateIdle, StateBackdropWhite, StateCaptureWhite, StateBackdropBlack, StateCaptureBlack, StateDifferencing, StateDone}
	if len(states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, states)
		}
	}
}

func TestEngineSolidSinglePass(t *testing.T) {
	screen := newFakeScreen()
	e := NewEngine(screen, EngineOptions{ShadowMargin: 100})

	req := transparentRequest()
	req.Background = config.BackgroundSolid
	req.SolidColor = color.RGBA{255, 0, 0, 255}

	res, err := e.Capture(req)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(screen.captures) != 1 {
		t.Fatalf("expected a single pass, got %d", len(screen.captures))
	}
	bd := screen.backdrops[0]
	if len(bd.history) != 1 || bd.history[0] != req.SolidColor {
		t.Fatalf("expected red backdrop only, got %v", bd.history)
	}
	if !bd.closed {
		t.Fatalf("expected backdrop released")
	}
	// The shadow over red is (127,0,0) which shares G and B with the
	// backdrop, so it counts as background.
	if want := image.Rect(200, 200, 220, 220); res.CropRect != want {
		t.Fatalf("expected crop %v, got %v", want, res.CropRect)
	}
	for i := 3; i < len(res.Image.Pix); i += 4 {
		if res.Image.Pix[i] != 255 {
			t.Fatalf("solid result must be opaque")
		}
	}
}

func TestEngineCheckerboard(t *testing.T) {
	screen := newFakeScreen()
	e := NewEngine(screen, EngineOptions{ShadowMargin: 100})

	req := transparentRequest()
	req.Background = config.BackgroundCheckerboard
	req.CheckerSize = 4

	res, err := e.Capture(req)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if s := res.Image.Bounds().Size(); s != image.Pt(20, 21) {
		t.Fatalf("expected 20x21 image, got %v", s)
	}
	got := res.Image.NRGBAAt(0, 20)
	// Shadow over a dark square: 200 * 127/255 is roughly 100.
	if got.A != 255 || got.R < 95 || got.R > 105 {
		t.Fatalf("expected shadow blended over dark checker square, got %v", got)
	}
}

func TestEngineBlankCapture(t *testing.T) {
	screen := newFakeScreen()
	screen.content = func(image.Point) color.NRGBA { return color.NRGBA{} }
	e := NewEngine(screen, EngineOptions{ShadowMargin: 100})

	_, err := e.Capture(transparentRequest())
	if !errors.Is(err, ErrBlankCapture) {
		t.Fatalf("expected ErrBlankCapture, got %v", err)
	}
	if !IsWarning(err) {
		t.Fatalf("expected blank capture to be a warning")
	}
	if !screen.backdrops[0].closed {
		t.Fatalf("expected backdrop released after blank capture")
	}
}

func TestEngineSolidEmptyCrop(t *testing.T) {
	screen := newFakeScreen()
	screen.content = func(image.Point) color.NRGBA { return color.NRGBA{} }
	e := NewEngine(screen, EngineOptions{ShadowMargin: 100})

	req := transparentRequest()
	req.Background = config.BackgroundSolid
	req.SolidColor = color.RGBA{0, 255, 0, 255}

	_, err := e.Capture(req)
	if !errors.Is(err, ErrEmptyCrop) || !errors.Is(err, ErrBlankCapture) {
		t.Fatalf("expected empty crop, got %v", err)
	}
}

func TestEngineDeviceUnavailable(t *testing.T) {
	screen := newFakeScreen()
	screen.captureErr = errors.New("no display context")
	e := NewEngine(screen, EngineOptions{ShadowMargin: 100})

	_, err := e.Capture(transparentRequest())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if IsWarning(err) {
		t.Fatalf("device failures are errors, not warnings")
	}
	if !screen.backdrops[0].closed {
		t.Fatalf("expected backdrop released after capture failure")
	}
}

func TestEngineBackdropFailures(t *testing.T) {
	screen := newFakeScreen()
	screen.backdropErr = errors.New("cannot create window")
	e := NewEngine(screen, EngineOptions{})
	if _, err := e.Capture(transparentRequest()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for backdrop creation, got %v", err)
	}

	screen = newFakeScreen()
	screen.setColorErr = errors.New("repaint failed")
	e = NewEngine(screen, EngineOptions{})
	if _, err := e.Capture(transparentRequest()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for repaint, got %v", err)
	}
	if screen.backdrops[0].closes != 1 {
		t.Fatalf("expected backdrop released once, got %d", screen.backdrops[0].closes)
	}
}

func TestEngineDimensionMismatch(t *testing.T) {
	screen := newFakeScreen()
	screen.blackShrink = true
	e := NewEngine(screen, EngineOptions{ShadowMargin: 100})

	_, err := e.Capture(transparentRequest())
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if !screen.backdrops[0].closed {
		t.Fatalf("expected backdrop released")
	}
}

func TestEngineInvalidRect(t *testing.T) {
	screen := newFakeScreen()
	screen.extended = image.Rect(3000, 3000, 3100, 3100)
	e := NewEngine(screen, EngineOptions{ShadowMargin: 100})

	_, err := e.Capture(transparentRequest())
	if !errors.Is(err, ErrInvalidRect) {
		t.Fatalf("expected ErrInvalidRect, got %v", err)
	}
	if len(screen.backdrops) != 0 {
		t.Fatalf("no backdrop should be created for an off-screen window")
	}
}

func TestEngineFallsBackToWindowRect(t *testing.T) {
	screen := newFakeScreen()
	screen.extendedErr = errors.New("compositor disabled")
	e := NewEngine(screen, EngineOptions{ShadowMargin: 100})

	res, err := e.Capture(transparentRequest())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Extended || res.CaptureRect != screen.window {
		t.Fatalf("expected unpadded window rect, got %v (extended=%v)", res.CaptureRect, res.Extended)
	}
}

func TestEngineCursorOverlay(t *testing.T) {
	screen := newFakeScreen()
	cur := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range cur.Pix {
		cur.Pix[i] = 255
	}
	// Pointer hotspot just right of the window: the cursor widens the crop.
	screen.cursor = &matte.Cursor{Image: cur, Position: image.Pt(221, 205), Hotspot: image.Pt(0, 0), Visible: true}
	e := NewEngine(screen, EngineOptions{ShadowMargin: 100})

	req := transparentRequest()
	req.CaptureCursor = true
	res, err := e.Capture(req)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if want := image.Rect(200, 200, 223, 221); res.CropRect != want {
		t.Fatalf("expected crop to include cursor %v, got %v", want, res.CropRect)
	}
	if got := res.Image.NRGBAAt(21, 5); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Fatalf("expected white cursor pixel, got %v", got)
	}

	screen.cursorErr = errors.New("xfixes missing")
	if _, err := e.Capture(req); err != nil {
		t.Fatalf("cursor failures must not fail the capture: %v", err)
	}
}

func TestEngineRejectsInvalidRequest(t *testing.T) {
	e := NewEngine(newFakeScreen(), EngineOptions{})
	req := transparentRequest()
	req.Background = config.BackgroundCheckerboard
	req.CheckerSize = 0
	if _, err := e.Capture(req); err == nil {
		t.Fatalf("expected checker size 0 to be rejected")
	}
}
