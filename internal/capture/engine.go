package capture

import (
	"errors"
	"image"
	"time"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/geometry"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/bryanchriswhite/AlphaShot/internal/matte"
	"github.com/rs/zerolog"
)

// State is a step of the capture pipeline.
type State string

const (
	StateIdle          State = "idle"
	StateBackdropWhite State = "backdrop_white"
	StateCaptureWhite  State = "capture_white"
	StateBackdropBlack State = "backdrop_black"
	StateCaptureBlack  State = "capture_black"
	StateDifferencing  State = "differencing"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// EngineOptions tunes the pipeline.
type EngineOptions struct {
	ShadowMargin int
	SettleDelay  time.Duration
	// OnState, if set, is called on every transition.
	OnState func(id config.WindowID, s State)
}

// Engine runs the two-pass backdrop capture for a single window. It keeps no
// per-capture state, but callers must not run two captures of the same
// window at once; Manager enforces that.
type Engine struct {
	platform Platform
	opts     EngineOptions
	log      *zerolog.Logger
}

// NewEngine creates an engine on top of a platform.
func NewEngine(p Platform, opts EngineOptions) *Engine {
	if opts.ShadowMargin < 0 {
		opts.ShadowMargin = 0
	}
	return &Engine{
		platform: p,
		opts:     opts,
		log:      logger.WithComponent("engine"),
	}
}

// Capture runs the pipeline for req and returns the final image. The backdrop
// is destroyed before Capture returns, whatever the outcome.
func (e *Engine) Capture(req Request) (res *Result, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := e.log.With().Stringer("window_id", req.Window).Str("mode", string(req.Background)).Logger()
	var rect image.Rectangle
	step := func(s State) {
		log.Debug().Str("state", string(s)).Str("rect", rect.String()).Msg("Capture state")
		if e.opts.OnState != nil {
			e.opts.OnState(req.Window, s)
		}
	}

	step(StateIdle)
	defer func() {
		if err == nil {
			step(StateDone)
			return
		}
		step(StateFailed)
		if IsWarning(err) {
			log.Warn().Err(err).Msg("Capture produced no content")
		} else {
			log.Error().Err(err).Msg("Capture failed")
		}
	}()

	frame, err := geometry.Resolve(e.platform, req.Window, e.opts.ShadowMargin)
	if err != nil {
		return nil, newError(ReasonInvalidRect, "resolve", err)
	}
	rect = frame.Rect
	if rect.Empty() {
		return nil, newError(ReasonInvalidRect, "resolve", errors.New("window is outside every display"))
	}

	first := white
	if req.Background == config.BackgroundSolid {
		first = req.SolidColor
		first.A = 255
	}

	step(StateBackdropWhite)
	bd, err := e.platform.NewBackdrop(req.Window, rect, first)
	if err != nil {
		return nil, newError(ReasonDeviceUnavailable, "backdrop", err)
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if cerr := bd.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to destroy backdrop")
		}
	}
	defer release()
	bd.Settle(e.opts.SettleDelay)

	step(StateCaptureWhite)
	whiteShot, err := e.grab(rect, "capture white")
	if err != nil {
		return nil, err
	}

	res = &Result{
		Window:      req.Window,
		Mode:        req.Background,
		CaptureRect: rect,
		Extended:    frame.Extended,
	}

	if req.Background == config.BackgroundSolid {
		release()
		img := matte.Opaque(whiteShot)
		e.overlayCursor(req, img, rect.Min, &log)
		cropped, crop, err := matte.Crop(img, matte.Solid(first))
		if err != nil {
			return nil, newError(ReasonEmptyCrop, "autocrop", err)
		}
		res.Image = cropped
		res.CropRect = crop.Add(rect.Min)
		return res, nil
	}

	step(StateBackdropBlack)
	if err := bd.SetColor(black); err != nil {
		return nil, newError(ReasonDeviceUnavailable, "backdrop", err)
	}
	bd.Settle(e.opts.SettleDelay)

	step(StateCaptureBlack)
	blackShot, err := e.grab(rect, "capture black")
	if err != nil {
		return nil, err
	}
	release()

	step(StateDifferencing)
	img, err := matte.Differentiate(whiteShot, blackShot)
	switch {
	case errors.Is(err, matte.ErrNoContent):
		return nil, newError(ReasonBlankCapture, "differencing", nil)
	case errors.Is(err, matte.ErrDimensionMismatch):
		return nil, newError(ReasonDimensionMismatch, "differencing", err)
	case err != nil:
		return nil, err
	}

	e.overlayCursor(req, img, rect.Min, &log)

	cropped, crop, err := matte.Crop(img, matte.Transparent)
	if err != nil {
		return nil, newError(ReasonEmptyCrop, "autocrop", err)
	}
	res.CropRect = crop.Add(rect.Min)

	if req.Background == config.BackgroundCheckerboard {
		cropped = matte.RenderCheckerboard(cropped, req.CheckerSize)
	}
	res.Image = cropped
	return res, nil
}

// grab takes one pass. Read failures are fatal; an empty read means the
// window produced nothing to capture.
func (e *Engine) grab(r image.Rectangle, op string) (*image.RGBA, error) {
	img, err := e.platform.CaptureRect(r)
	if err != nil {
		return nil, newError(ReasonDeviceUnavailable, op, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, newError(ReasonBlankCapture, op, nil)
	}
	return img, nil
}

// overlayCursor draws the pointer if requested. Failing to read the pointer
// does not fail the capture.
func (e *Engine) overlayCursor(req Request, img *image.NRGBA, origin image.Point, log *zerolog.Logger) {
	if !req.CaptureCursor {
		return
	}
	c, err := e.platform.Cursor()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read cursor, capturing without it")
		return
	}
	matte.DrawCursor(img, origin, c)
}

