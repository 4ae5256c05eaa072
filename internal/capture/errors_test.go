package capture

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMatchesByReason(t *testing.T) {
	err := newError(ReasonDeviceUnavailable, "capture white", io.ErrUnexpectedEOF)

	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected match on reason")
	}
	if errors.Is(err, ErrBlankCapture) {
		t.Fatalf("unexpected match on a different reason")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	wrapped := fmt.Errorf("window 0x1: %w", err)
	if ReasonOf(wrapped) != ReasonDeviceUnavailable {
		t.Fatalf("expected reason through wrapping, got %q", ReasonOf(wrapped))
	}
}

func TestEmptyCropIsBlankCapture(t *testing.T) {
	err := newError(ReasonEmptyCrop, "autocrop", nil)
	if !errors.Is(err, ErrBlankCapture) {
		t.Fatalf("empty crop must be treated like a blank capture")
	}
	if !errors.Is(err, ErrEmptyCrop) {
		t.Fatalf("empty crop must still match itself")
	}
	if errors.Is(ErrBlankCapture, ErrEmptyCrop) {
		t.Fatalf("blank capture must not match empty crop")
	}
}

func TestIsWarning(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{newError(ReasonBlankCapture, "differencing", nil), true},
		{newError(ReasonEmptyCrop, "autocrop", nil), true},
		{newError(ReasonDimensionMismatch, "differencing", nil), false},
		{errors.New("boom"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsWarning(tc.err); got != tc.want {
			t.Errorf("IsWarning(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := newError(ReasonBlankCapture, "differencing", nil)
	if got := err.Error(); got != "differencing: blank screenshot" {
		t.Fatalf("unexpected message %q", got)
	}
	err = newError(ReasonInvalidRect, "resolve", errors.New("off-screen"))
	if got := err.Error(); got != "resolve: invalid capture rectangle: off-screen" {
		t.Fatalf("unexpected message %q", got)
	}
}
