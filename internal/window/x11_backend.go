package window

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
)

// EWMH source indication for requests from a pager or taskbar, which window
// managers honour without focus-stealing prevention.
const sourcePager = 2

// X11Backend implements the Backend interface using X11
type X11Backend struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo

	mu    sync.Mutex
	atoms map[string]xproto.Atom
}

// NewX11Backend creates a new X11 backend
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	return &X11Backend{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
		atoms:  make(map[string]xproto.Atom),
	}, nil
}

// Close closes the X11 connection
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// GetConn returns the X11 connection (shared with the capture platform)
func (b *X11Backend) GetConn() *xgb.Conn {
	return b.conn
}

// GetRoot returns the root window
func (b *X11Backend) GetRoot() xproto.Window {
	return b.root
}

// GetScreen returns the screen info
func (b *X11Backend) GetScreen() *xproto.ScreenInfo {
	return b.screen
}

// ListWindows returns all visible windows using EWMH _NET_CLIENT_LIST with QueryTree fallback
func (b *X11Backend) ListWindows() ([]*config.WindowInfo, error) {
	log := logger.WithComponent("x11-backend")

	ids, err := b.clientList()
	if err != nil || len(ids) == 0 {
		log.Debug().Err(err).Msg("ListWindows: EWMH unavailable, falling back to QueryTree")
		tree, err := xproto.QueryTree(b.conn, b.root).Reply()
		if err != nil {
			log.Error().Err(err).Msg("ListWindows: QueryTree fallback failed")
			return nil, err
		}
		ids = tree.Children
	}

	focused, _ := b.activeWindow()
	windows := make([]*config.WindowInfo, 0, len(ids))
	skipped := 0
	for _, win := range ids {
		info, err := b.getWindowInfo(win)
		if err != nil {
			skipped++
			continue
		}
		// Skip windows without titles or class (usually not user windows)
		if info.Title == "" && info.Class == "" {
			skipped++
			continue
		}
		if b.isDock(win) {
			skipped++
			continue
		}
		info.Focused = win == focused
		windows = append(windows, info)
	}

	log.Debug().
		Int("found", len(windows)).
		Int("skipped", skipped).
		Msg("ListWindows: summary")
	return windows, nil
}

// clientList reads _NET_CLIENT_LIST from the root window
func (b *X11Backend) clientList() ([]xproto.Window, error) {
	vals, err := b.getCardinals(b.root, "_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}
	ids := make([]xproto.Window, len(vals))
	for i, v := range vals {
		ids[i] = xproto.Window(v)
	}
	return ids, nil
}

// activeWindow reads _NET_ACTIVE_WINDOW, falling back to the input focus
// walked up to its top-level client
func (b *X11Backend) activeWindow() (xproto.Window, error) {
	if vals, err := b.getCardinals(b.root, "_NET_ACTIVE_WINDOW"); err == nil && len(vals) > 0 && vals[0] != 0 {
		return xproto.Window(vals[0]), nil
	}

	focusReply, err := xproto.GetInputFocus(b.conn).Reply()
	if err != nil {
		return 0, err
	}
	win := focusReply.Focus
	if win == xproto.WindowNone || win == b.root {
		return 0, fmt.Errorf("no window has focus")
	}
	if top, err := b.topLevel(win); err == nil {
		win = top
	}
	return win, nil
}

// topLevel walks up the tree to the child of the root that contains win
func (b *X11Backend) topLevel(win xproto.Window) (xproto.Window, error) {
	for {
		tree, err := xproto.QueryTree(b.conn, win).Reply()
		if err != nil {
			return 0, fmt.Errorf("failed to query tree: %w", err)
		}
		if tree.Parent == b.root || tree.Parent == xproto.WindowNone {
			return win, nil
		}
		win = tree.Parent
	}
}

// TopLevel returns the root child holding id: the window manager's frame for
// reparented clients, the client itself otherwise.
func (b *X11Backend) TopLevel(id config.WindowID) (xproto.Window, error) {
	return b.topLevel(xproto.Window(id))
}

// GetFocusedWindow returns the currently focused window
func (b *X11Backend) GetFocusedWindow() (*config.WindowInfo, error) {
	win, err := b.activeWindow()
	if err != nil {
		return nil, err
	}
	info, err := b.getWindowInfo(win)
	if err != nil {
		return nil, err
	}
	info.Focused = true
	return info, nil
}

// GetWindowInfo is the public version of getWindowInfo
func (b *X11Backend) GetWindowInfo(id config.WindowID) (*config.WindowInfo, error) {
	info, err := b.getWindowInfo(xproto.Window(id))
	if err != nil {
		return nil, err
	}
	if active, err := b.activeWindow(); err == nil {
		info.Focused = active == xproto.Window(id)
	}
	return info, nil
}

// getWindowInfo retrieves information about a window
func (b *X11Backend) getWindowInfo(win xproto.Window) (*config.WindowInfo, error) {
	info := &config.WindowInfo{
		ID:        config.WindowID(win),
		Resizable: true,
	}

	r, err := b.windowRect(win)
	if err != nil {
		return nil, err
	}
	info.Geometry = config.Geometry{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}

	if title, err := b.getString(win, "_NET_WM_NAME"); err == nil {
		info.Title = title
	}
	if info.Title == "" {
		if title, err := b.getString(win, "WM_NAME"); err == nil {
			info.Title = title
		}
	}

	// WM_CLASS format is: instance\0class\0 (two null-terminated strings)
	if classRaw, err := b.getString(win, "WM_CLASS"); err == nil {
		parts := strings.Split(classRaw, "\x00")
		if len(parts) >= 2 && parts[1] != "" {
			info.Class = parts[1]
		} else if len(parts) >= 1 && parts[0] != "" {
			info.Class = parts[0]
		}
	}

	if pid, err := b.getCardinals(win, "_NET_WM_PID"); err == nil && len(pid) > 0 {
		info.PID = int(pid[0])
	}

	info.Minimized = b.isMinimized(win)

	// WM_NORMAL_HINTS: flags, 4 obsolete fields, min w/h, max w/h
	if hints, err := b.getCardinals(win, "WM_NORMAL_HINTS"); err == nil && len(hints) >= 9 {
		const pMinSize, pMaxSize = 1 << 4, 1 << 5
		if hints[0]&pMinSize != 0 && hints[0]&pMaxSize != 0 &&
			hints[5] == hints[7] && hints[6] == hints[8] {
			info.Resizable = false
		}
	}

	return info, nil
}

// isMinimized checks _NET_WM_STATE_HIDDEN, then the ICCCM WM_STATE
func (b *X11Backend) isMinimized(win xproto.Window) bool {
	if hidden, err := b.getAtom("_NET_WM_STATE_HIDDEN"); err == nil {
		if states, err := b.getCardinals(win, "_NET_WM_STATE"); err == nil {
			for _, s := range states {
				if xproto.Atom(s) == hidden {
					return true
				}
			}
		}
	}
	const iconicState = 3
	if state, err := b.getCardinals(win, "WM_STATE"); err == nil && len(state) > 0 {
		return state[0] == iconicState
	}
	return false
}

// isDock reports whether win is a panel (_NET_WM_WINDOW_TYPE_DOCK)
func (b *X11Backend) isDock(win xproto.Window) bool {
	dock, err := b.getAtom("_NET_WM_WINDOW_TYPE_DOCK")
	if err != nil {
		return false
	}
	types, err := b.getCardinals(win, "_NET_WM_WINDOW_TYPE")
	if err != nil {
		return false
	}
	for _, t := range types {
		if xproto.Atom(t) == dock {
			return true
		}
	}
	return false
}

// FrameExtents returns the decoration sizes from _NET_FRAME_EXTENTS
func (b *X11Backend) FrameExtents(win xproto.Window) (left, right, top, bottom int) {
	vals, err := b.getCardinals(win, "_NET_FRAME_EXTENTS")
	if err != nil || len(vals) < 4 {
		return 0, 0, 0, 0
	}
	return int(vals[0]), int(vals[1]), int(vals[2]), int(vals[3])
}

// ClientRect returns the window's own rectangle in root coordinates, without
// decorations
func (b *X11Backend) ClientRect(win xproto.Window) (image.Rectangle, error) {
	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to get window geometry: %w", err)
	}
	pos, err := xproto.TranslateCoordinates(b.conn, win, b.root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to translate coordinates: %w", err)
	}
	return image.Rect(int(pos.DstX), int(pos.DstY), int(pos.DstX)+int(geom.Width), int(pos.DstY)+int(geom.Height)), nil
}

func (b *X11Backend) windowRect(win xproto.Window) (image.Rectangle, error) {
	r, err := b.ClientRect(win)
	if err != nil {
		return image.Rectangle{}, err
	}
	left, right, top, bottom := b.FrameExtents(win)
	return image.Rect(r.Min.X-left, r.Min.Y-top, r.Max.X+right, r.Max.Y+bottom), nil
}

// WindowRect returns the outer frame rectangle
func (b *X11Backend) WindowRect(id config.WindowID) (image.Rectangle, error) {
	return b.windowRect(xproto.Window(id))
}

// SetWindowRect asks the window manager to move and resize the frame to r
func (b *X11Backend) SetWindowRect(id config.WindowID, r image.Rectangle) error {
	win := xproto.Window(id)
	left, right, top, bottom := b.FrameExtents(win)
	x, y := r.Min.X+left, r.Min.Y+top
	w, h := r.Dx()-left-right, r.Dy()-top-bottom
	if w < 1 || h < 1 {
		return fmt.Errorf("rectangle %v is smaller than the window decorations", r)
	}

	// Static gravity: x and y name the client origin, not the frame origin.
	const staticGravity = 10
	const xywh = 1<<8 | 1<<9 | 1<<10 | 1<<11
	err := b.sendRootMessage(win, "_NET_MOVERESIZE_WINDOW",
		staticGravity|xywh|sourcePager<<12, uint32(x), uint32(y), uint32(w), uint32(h))
	if err == nil {
		b.conn.Sync()
		return nil
	}

	logger.WithComponent("x11-backend").Debug().Err(err).Msg("_NET_MOVERESIZE_WINDOW failed, configuring directly")
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	if err := xproto.ConfigureWindowChecked(b.conn, win, mask,
		[]uint32{uint32(x), uint32(y), uint32(w), uint32(h)}).Check(); err != nil {
		return fmt.Errorf("failed to configure window: %w", err)
	}
	return nil
}

// Restore maps an iconified window and asks the window manager to activate it
func (b *X11Backend) Restore(id config.WindowID) error {
	if err := xproto.MapWindowChecked(b.conn, xproto.Window(id)).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}
	return b.Activate(id)
}

// Show maps the window; this is a no-op for windows that are already mapped
func (b *X11Backend) Show(id config.WindowID) error {
	if err := xproto.MapWindowChecked(b.conn, xproto.Window(id)).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}
	return nil
}

// Activate sends _NET_ACTIVE_WINDOW to the root window
func (b *X11Backend) Activate(id config.WindowID) error {
	if err := b.sendRootMessage(xproto.Window(id), "_NET_ACTIVE_WINDOW", sourcePager, xproto.TimeCurrentTime, 0); err != nil {
		return fmt.Errorf("failed to activate window: %w", err)
	}
	b.conn.Sync()
	return nil
}

// ShellWindows returns dock windows (panels and taskbars)
func (b *X11Backend) ShellWindows() ([]config.WindowID, error) {
	candidates, _ := b.clientList()
	if tree, err := xproto.QueryTree(b.conn, b.root).Reply(); err == nil {
		candidates = append(candidates, tree.Children...)
	}

	seen := make(map[xproto.Window]bool)
	var docks []config.WindowID
	for _, win := range candidates {
		if seen[win] {
			continue
		}
		seen[win] = true
		if b.isDock(win) {
			docks = append(docks, config.WindowID(win))
		}
	}
	if len(docks) == 0 {
		return nil, fmt.Errorf("no dock windows found")
	}
	return docks, nil
}

// SetVisible maps or unmaps a window
func (b *X11Backend) SetVisible(id config.WindowID, visible bool) error {
	win := xproto.Window(id)
	var err error
	if visible {
		err = xproto.MapWindowChecked(b.conn, win).Check()
	} else {
		err = xproto.UnmapWindowChecked(b.conn, win).Check()
	}
	if err != nil {
		return fmt.Errorf("failed to change visibility of %s: %w", id, err)
	}
	return nil
}

// sendRootMessage sends an EWMH client message about win to the root window
func (b *X11Backend) sendRootMessage(win xproto.Window, name string, data ...uint32) error {
	atom, err := b.getAtom(name)
	if err != nil {
		return err
	}
	payload := make([]uint32, 5)
	copy(payload, data)
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New(payload),
	}
	mask := uint32(xproto.EventMaskSubstructureRedirect | xproto.EventMaskSubstructureNotify)
	return xproto.SendEventChecked(b.conn, false, b.root, mask, string(ev.Bytes())).Check()
}

// Atom interns name through the backend's cache
func (b *X11Backend) Atom(name string) (xproto.Atom, error) {
	return b.getAtom(name)
}

// getAtom gets an atom ID by name
func (b *X11Backend) getAtom(name string) (xproto.Atom, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if atom, ok := b.atoms[name]; ok {
		return atom, nil
	}
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	b.atoms[name] = reply.Atom
	return reply.Atom, nil
}

func (b *X11Backend) getRaw(win xproto.Window, name string) (*xproto.GetPropertyReply, error) {
	atom, err := b.getAtom(name)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return nil, err
	}
	if reply.ValueLen == 0 {
		return nil, fmt.Errorf("empty property %s", name)
	}
	return reply, nil
}

// getString gets a property value as a string
func (b *X11Backend) getString(win xproto.Window, name string) (string, error) {
	reply, err := b.getRaw(win, name)
	if err != nil {
		return "", err
	}
	return string(reply.Value), nil
}

// getCardinals decodes a 32-bit list property (CARDINAL, ATOM or WINDOW)
func (b *X11Backend) getCardinals(win xproto.Window, name string) ([]uint32, error) {
	reply, err := b.getRaw(win, name)
	if err != nil {
		return nil, err
	}
	if reply.Format != 32 {
		return nil, fmt.Errorf("property %s has format %d", name, reply.Format)
	}
	vals := make([]uint32, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		vals = append(vals, xgb.Get32(reply.Value[i:]))
	}
	return vals, nil
}
