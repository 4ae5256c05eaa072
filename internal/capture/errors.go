package capture

import (
	"errors"
	"fmt"
)

// Reason classifies a failed capture.
type Reason string

const (
	ReasonBlankCapture      Reason = "blank_capture"
	ReasonInvalidRect       Reason = "invalid_rect"
	ReasonDeviceUnavailable Reason = "device_unavailable"
	ReasonDimensionMismatch Reason = "dimension_mismatch"
	ReasonEmptyCrop         Reason = "empty_crop"
	ReasonBusy              Reason = "busy"
)

var reasonText = map[Reason]string{
	ReasonBlankCapture:      "blank screenshot",
	ReasonInvalidRect:       "invalid capture rectangle",
	ReasonDeviceUnavailable: "display device unavailable",
	ReasonDimensionMismatch: "white and black captures differ in size",
	ReasonEmptyCrop:         "nothing left after autocrop",
	ReasonBusy:              "capture already in progress for this window",
}

// Error is a typed capture failure. Two Errors match under errors.Is when
// their reasons match; an empty-crop failure also matches ErrBlankCapture.
type Error struct {
	Reason Reason
	Op     string
	Err    error
}

func (e *Error) Error() string {
	msg := reasonText[e.Reason]
	if msg == "" {
		msg = string(e.Reason)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason == e.Reason {
		return true
	}
	return t.Reason == ReasonBlankCapture && e.Reason == ReasonEmptyCrop
}

// Sentinels for errors.Is.
var (
	ErrBlankCapture      = &Error{Reason: ReasonBlankCapture}
	ErrInvalidRect       = &Error{Reason: ReasonInvalidRect}
	ErrDeviceUnavailable = &Error{Reason: ReasonDeviceUnavailable}
	ErrDimensionMismatch = &Error{Reason: ReasonDimensionMismatch}
	ErrEmptyCrop         = &Error{Reason: ReasonEmptyCrop}
	ErrBusy              = &Error{Reason: ReasonBusy}
)

func newError(reason Reason, op string, err error) *Error {
	return &Error{Reason: reason, Op: op, Err: err}
}

// IsWarning reports whether err is a blank capture: a minimised or invisible
// window is legitimate input, so callers show a warning instead of an error.
func IsWarning(err error) bool {
	return errors.Is(err, ErrBlankCapture)
}

// ReasonOf returns the failure class of err, or "" for foreign errors.
func ReasonOf(err error) Reason {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}
