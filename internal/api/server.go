package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bryanchriswhite/AlphaShot/internal/capture"
	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/bryanchriswhite/AlphaShot/internal/output"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// captureTimeout bounds how long a request waits for its capture.
const captureTimeout = 30 * time.Second

// Windows is the window listing the API exposes. window.Manager implements it.
type Windows interface {
	ListWindows() ([]*config.WindowInfo, error)
	GetCurrentWindow() (*config.WindowInfo, error)
	GetWindowInfo(id config.WindowID) (*config.WindowInfo, error)
}

// Captures runs captures and streams their events. capture.Manager
// implements it.
type Captures interface {
	Capture(ctx context.Context, req capture.Request) (*capture.Result, error)
	SetConfig(cfg config.CaptureConfig)
	Subscribe() chan capture.Event
	Unsubscribe(ch chan capture.Event)
	Publish(ev capture.Event)
}

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	windows   Windows
	captures  Captures
	configMgr *config.Manager
	upgrader  websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(windows Windows, captures Captures, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		windows:   windows,
		captures:  captures,
		configMgr: configMgr,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Windows
	api.HandleFunc("/windows", s.handleListWindows).Methods("GET")
	api.HandleFunc("/windows/{id}", s.handleGetWindow).Methods("GET")
	api.HandleFunc("/window/current", s.handleGetCurrentWindow).Methods("GET")

	// Captures
	api.HandleFunc("/capture", s.handleCapture).Methods("POST")
	api.HandleFunc("/events", s.handleEvents)

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the router wrapped with CORS headers
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start starts the HTTP server on host:port and blocks until ctx is
// cancelled. An empty host means loopback.
func (s *Server) Start(ctx context.Context, host string, port int) error {
	log := logger.WithComponent("api")
	if host == "" {
		host = "127.0.0.1"
	}
	srv := &http.Server{
		Addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", "http://"+srv.Addr).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// enableCORS rejects browser requests from foreign origins and adds CORS
// headers for the allowed ones. A simple cross-origin POST is never
// preflighted, so it has to be refused before the handler runs.
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !s.originAllowed(r) {
			logger.WithComponent("api").Warn().
				Str("origin", origin).
				Str("path", r.URL.Path).
				Msg("Rejected cross-origin request")
			writeError(w, http.StatusForbidden, fmt.Errorf("origin %q is not allowed", origin))
			return
		}

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Expose-Headers", "X-Capture-Id, X-Crop-Rect, X-Saved-Path")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// originAllowed accepts requests without an Origin header (non-browser
// clients), requests from the API's own origin and the configured origins.
// The own-origin case only counts for IP literals and localhost, so a
// rebound DNS name cannot pass as same-origin.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) && literalHost(u.Hostname()) {
		return true
	}
	for _, allowed := range s.configMgr.Get().AllowedOrigins {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

func literalHost(h string) bool {
	return strings.EqualFold(h, "localhost") || net.ParseIP(h) != nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string         `json:"error"`
	Reason capture.Reason `json:"reason,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Reason: capture.ReasonOf(err)})
}

// captureStatus maps a capture failure to an HTTP status.
func captureStatus(err error) int {
	switch capture.ReasonOf(err) {
	case capture.ReasonBlankCapture, capture.ReasonEmptyCrop:
		return http.StatusUnprocessableEntity
	case capture.ReasonInvalidRect:
		return http.StatusNotFound
	case capture.ReasonBusy:
		return http.StatusConflict
	case capture.ReasonDeviceUnavailable:
		return http.StatusServiceUnavailable
	case capture.ReasonDimensionMismatch:
		return http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadRequest
}

// HTTP Handlers

func (s *Server) handleListWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := s.windows.ListWindows()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleGetWindow(w http.ResponseWriter, r *http.Request) {
	id, err := config.ParseWindowID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	info, err := s.windows.GetWindowInfo(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetCurrentWindow(w http.ResponseWriter, r *http.Request) {
	current, err := s.windows.GetCurrentWindow()
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no window focused: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// handleCapture captures a window and returns the PNG. Query parameters
// override the configured capture settings:
//
//	window      window id, or "current" (default)
//	background  transparent | checkerboard | solid
//	color       #RRGGBB for solid backgrounds
//	checker     checkerboard tile size
//	cursor      true to draw the pointer
//	width, height  resize target
//	flatten     true to return the image composited over white
//	save        true to also write it to the output directory
//	thumb       maximum edge of a scaled-down preview
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")
	q := r.URL.Query()
	cfg := s.configMgr.Get()

	id, err := s.resolveWindow(q.Get("window"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	req, err := buildRequest(id, cfg.Capture, q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), captureTimeout)
	defer cancel()

	res, err := s.captures.Capture(ctx, req)
	if err != nil {
		log.Warn().Err(err).Stringer("window_id", id).Msg("Capture request failed")
		writeError(w, captureStatus(err), err)
		return
	}

	w.Header().Set("X-Capture-Id", res.ID)
	w.Header().Set("X-Crop-Rect", res.CropRect.String())

	if q.Get("save") == "true" {
		saved, err := output.NewWriter(cfg.Output).Save(res.Title, res.Image)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("X-Saved-Path", saved.Path)
		b := res.Image.Bounds()
		s.captures.Publish(capture.Event{
			ID:       res.ID,
			WindowID: res.Window,
			Title:    res.Title,
			State:    capture.StateSaved,
			Width:    b.Dx(),
			Height:   b.Dy(),
			Path:     saved.Path,
		})
	}

	var buf bytes.Buffer
	switch {
	case q.Get("thumb") != "":
		edge, err := strconv.Atoi(q.Get("thumb"))
		if err != nil || edge < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid thumb size %q", q.Get("thumb")))
			return
		}
		err = output.EncodeThumbnail(&buf, res.Image, edge, edge)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	case q.Get("flatten") == "true":
		if err := output.EncodeFlat(&buf, res.Image); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	default:
		if err := output.Encode(&buf, res.Image); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func (s *Server) resolveWindow(v string) (config.WindowID, error) {
	if v == "" || v == "current" {
		current, err := s.windows.GetCurrentWindow()
		if err != nil {
			return 0, fmt.Errorf("no window focused: %w", err)
		}
		return current.ID, nil
	}
	return config.ParseWindowID(v)
}

// buildRequest applies query overrides on top of the configured defaults.
func buildRequest(id config.WindowID, defaults config.CaptureConfig, q map[string][]string) (capture.Request, error) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	cfg := defaults
	if v := get("background"); v != "" {
		cfg.Background = config.BackgroundMode(strings.ToLower(v))
	}
	if v := get("color"); v != "" {
		cfg.SolidColor = v
	}
	if v := get("checker"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return capture.Request{}, fmt.Errorf("invalid checker size %q", v)
		}
		cfg.CheckerSize = n
	}
	if v := get("cursor"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return capture.Request{}, fmt.Errorf("invalid cursor flag %q", v)
		}
		cfg.CaptureCursor = b
	}

	req, err := capture.NewRequest(id, cfg)
	if err != nil {
		return capture.Request{}, err
	}

	if get("width") != "" || get("height") != "" {
		wd, err1 := strconv.Atoi(get("width"))
		ht, err2 := strconv.Atoi(get("height"))
		if err1 != nil || err2 != nil {
			return capture.Request{}, fmt.Errorf("resize needs both width and height")
		}
		req.Resize = image.Pt(wd, ht)
		if err := req.Validate(); err != nil {
			return capture.Request{}, err
		}
	}
	return req, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	events := s.captures.Subscribe()
	defer s.captures.Unsubscribe(events)

	// Reader goroutine notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		case <-closed:
			return
		}
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.configMgr.Get()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.configMgr.Update(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.captures.SetConfig(cfg.Capture)

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>AlphaShot</title>
    <style>
        body { font-family: sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        code { background: #f5f5f5; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>AlphaShot</h1>
    <p>Window screenshots with transparent shadows and rounded corners.</p>
    <h3>API Endpoints:</h3>
    <ul>
        <li><a href="/api/health">/api/health</a> - Server health check</li>
        <li><a href="/api/windows">/api/windows</a> - List windows</li>
        <li><a href="/api/window/current">/api/window/current</a> - Focused window</li>
        <li><a href="/api/config">/api/config</a> - Configuration</li>
        <li><code>POST /api/capture?window=0x1a00003</code> - Capture a window as PNG</li>
        <li><code>/api/events</code> - Capture progress (WebSocket)</li>
    </ul>
</body>
</html>`

	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
		return
	}
	http.NotFound(w, r)
}
