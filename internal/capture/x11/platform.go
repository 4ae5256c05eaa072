// Package x11 implements the capture platform for X11 desktops: root-window
// reads, an override-redirect backdrop window and the XFixes cursor.
package x11

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xinerama"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/bryanchriswhite/AlphaShot/internal/window"
)

// ErrNoCompositor is returned for extended frame bounds when no compositing
// manager owns the screen; shadows and translucency do not exist then.
var ErrNoCompositor = errors.New("no compositing manager running")

// Platform implements capture.Platform on the window backend's connection.
type Platform struct {
	backend *window.X11Backend
	conn    *xgb.Conn
	root    xproto.Window
	screen  *xproto.ScreenInfo

	composite bool
	xfixes    bool
	xinerama  bool

	// mu serialises multi-request sequences such as strip reads.
	mu sync.Mutex
}

// New initialises the extensions the platform uses. Missing extensions
// degrade features instead of failing: no Composite means opaque captures,
// no XFixes means no cursor, no Xinerama means one display.
func New(backend *window.X11Backend) (*Platform, error) {
	if backend == nil {
		return nil, fmt.Errorf("x11 backend is required")
	}
	log := logger.WithComponent("x11-platform")

	p := &Platform{
		backend: backend,
		conn:    backend.GetConn(),
		root:    backend.GetRoot(),
		screen:  backend.GetScreen(),
	}

	if err := composite.Init(p.conn); err != nil {
		log.Warn().Err(err).Msg("Composite extension not available, captures will be opaque")
	} else {
		p.composite = true
	}

	if err := xfixes.Init(p.conn); err != nil {
		log.Warn().Err(err).Msg("XFixes extension not available, cursor capture disabled")
	} else if _, err := xfixes.QueryVersion(p.conn, 4, 0).Reply(); err != nil {
		log.Warn().Err(err).Msg("XFixes version negotiation failed, cursor capture disabled")
	} else {
		p.xfixes = true
	}

	if err := xinerama.Init(p.conn); err != nil {
		log.Debug().Err(err).Msg("Xinerama not available, using root window bounds")
	} else {
		p.xinerama = true
	}

	log.Info().
		Bool("composite", p.composite).
		Bool("xfixes", p.xfixes).
		Bool("xinerama", p.xinerama).
		Msg("X11 capture platform initialized")

	return p, nil
}

// compositing reports whether a compositing manager owns _NET_WM_CM_Sn.
func (p *Platform) compositing() bool {
	if !p.composite {
		return false
	}
	atom, err := p.backend.Atom(fmt.Sprintf("_NET_WM_CM_S%d", p.conn.DefaultScreen))
	if err != nil {
		return false
	}
	reply, err := xproto.GetSelectionOwner(p.conn, atom).Reply()
	if err != nil {
		return false
	}
	return reply.Owner != xproto.WindowNone
}

// ExtendedFrameBounds returns the outer frame rectangle while a compositor is
// running. Client-side decorated windows already include their shadow area
// in it.
func (p *Platform) ExtendedFrameBounds(id config.WindowID) (image.Rectangle, error) {
	if !p.compositing() {
		return image.Rectangle{}, ErrNoCompositor
	}
	return p.backend.WindowRect(id)
}

// WindowRect returns the frame rectangle, decorations included.
func (p *Platform) WindowRect(id config.WindowID) (image.Rectangle, error) {
	return p.backend.WindowRect(id)
}

// Displays returns the Xinerama screens, or the root window when Xinerama is
// missing or inactive.
func (p *Platform) Displays() ([]image.Rectangle, error) {
	if p.xinerama {
		if active, err := xinerama.IsActive(p.conn).Reply(); err == nil && active.State != 0 {
			reply, err := xinerama.QueryScreens(p.conn).Reply()
			if err == nil && len(reply.ScreenInfo) > 0 {
				return screenRects(reply.ScreenInfo), nil
			}
		}
	}
	return []image.Rectangle{
		image.Rect(0, 0, int(p.screen.WidthInPixels), int(p.screen.HeightInPixels)),
	}, nil
}

func screenRects(screens []xinerama.ScreenInfo) []image.Rectangle {
	rects := make([]image.Rectangle, 0, len(screens))
	for _, s := range screens {
		x, y := int(s.XOrg), int(s.YOrg)
		rects = append(rects, image.Rect(x, y, x+int(s.Width), y+int(s.Height)))
	}
	return rects
}
