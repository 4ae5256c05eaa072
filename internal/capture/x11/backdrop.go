package x11

import (
	"fmt"
	"image"
	"image/color"
	"math/bits"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/AlphaShot/internal/capture"
	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
)

const backdropTitle = "AlphaShot backdrop"

// Backdrop is an override-redirect window painted with a solid background
// pixel. The window manager never sees it, so it gets no frame, no taskbar
// entry and never takes focus.
type Backdrop struct {
	p      *Platform
	win    xproto.Window
	closed bool
}

// NewBackdrop creates the backdrop at r, stacks it directly below the
// target's top-level frame and maps it.
func (p *Platform) NewBackdrop(target config.WindowID, r image.Rectangle, c color.RGBA) (capture.Backdrop, error) {
	log := logger.WithComponent("x11-platform")

	sibling, err := p.backend.TopLevel(target)
	if err != nil {
		return nil, fmt.Errorf("failed to find frame of %s: %w", target, err)
	}

	win, err := xproto.NewWindowId(p.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create window ID: %w", err)
	}

	// Values follow the bit order of the mask.
	mask := uint32(xproto.CwBackPixel | xproto.CwOverrideRedirect | xproto.CwEventMask)
	values := []uint32{
		p.pixel(c),
		1,
		xproto.EventMaskNoEvent,
	}
	err = xproto.CreateWindowChecked(
		p.conn,
		p.screen.RootDepth,
		win,
		p.root,
		int16(r.Min.X), int16(r.Min.Y),
		uint16(r.Dx()), uint16(r.Dy()),
		0,
		xproto.WindowClassInputOutput,
		p.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	b := &Backdrop{p: p, win: win}

	if err := b.setTitle(backdropTitle); err != nil {
		log.Debug().Err(err).Msg("Failed to set backdrop title")
	}

	err = xproto.ConfigureWindowChecked(
		p.conn,
		win,
		xproto.ConfigWindowSibling|xproto.ConfigWindowStackMode,
		[]uint32{uint32(sibling), xproto.StackModeBelow},
	).Check()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to stack backdrop below %s: %w", target, err)
	}

	if err := xproto.MapWindowChecked(p.conn, win).Check(); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to map window: %w", err)
	}
	p.conn.Sync()

	log.Debug().
		Uint32("backdrop_id", uint32(win)).
		Uint32("sibling_id", uint32(sibling)).
		Str("rect", r.String()).
		Msg("Backdrop mapped")
	return b, nil
}

// SetColor changes the background pixel and repaints the whole window.
func (b *Backdrop) SetColor(c color.RGBA) error {
	if b.closed {
		return fmt.Errorf("backdrop already destroyed")
	}
	err := xproto.ChangeWindowAttributesChecked(b.p.conn, b.win, xproto.CwBackPixel, []uint32{b.p.pixel(c)}).Check()
	if err != nil {
		return fmt.Errorf("failed to change background: %w", err)
	}
	// A zero width and height clear the whole window.
	if err := xproto.ClearAreaChecked(b.p.conn, false, b.win, 0, 0, 0, 0).Check(); err != nil {
		return fmt.Errorf("failed to clear window: %w", err)
	}
	b.p.conn.Sync()
	return nil
}

// Settle flushes pending requests and waits d for the compositor to redraw.
func (b *Backdrop) Settle(d time.Duration) {
	b.p.conn.Sync()
	time.Sleep(d)
}

// Close destroys the window. Later calls do nothing.
func (b *Backdrop) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	err := xproto.DestroyWindowChecked(b.p.conn, b.win).Check()
	b.p.conn.Sync()
	if err != nil {
		return fmt.Errorf("failed to destroy backdrop: %w", err)
	}
	return nil
}

func (b *Backdrop) setTitle(title string) error {
	nameAtom, err := b.p.backend.Atom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := b.p.backend.Atom("UTF8_STRING")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		b.p.conn,
		xproto.PropModeReplace,
		b.win,
		nameAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

// pixel encodes c for the root visual.
func (p *Platform) pixel(c color.RGBA) uint32 {
	for _, d := range p.screen.AllowedDepths {
		for _, v := range d.Visuals {
			if v.VisualId == p.screen.RootVisual && v.Class == xproto.VisualClassTrueColor {
				return encodePixel(c, v.RedMask, v.GreenMask, v.BlueMask)
			}
		}
	}
	return encodePixel(c, 0xff0000, 0x00ff00, 0x0000ff)
}

// encodePixel scales each 8-bit channel into its mask.
func encodePixel(c color.RGBA, rm, gm, bm uint32) uint32 {
	return channel(c.R, rm) | channel(c.G, gm) | channel(c.B, bm)
}

func channel(v uint8, mask uint32) uint32 {
	if mask == 0 {
		return 0
	}
	shift := bits.TrailingZeros32(mask)
	width := bits.OnesCount32(mask)
	max := uint32(1)<<width - 1
	return (uint32(v) * max / 255) << shift & mask
}
