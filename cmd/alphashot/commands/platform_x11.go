//go:build !windows

package commands

import (
	"fmt"

	"github.com/bryanchriswhite/AlphaShot/internal/capture"
	"github.com/bryanchriswhite/AlphaShot/internal/capture/x11"
	"github.com/bryanchriswhite/AlphaShot/internal/window"
)

func openPlatform() (*window.Manager, capture.Platform, error) {
	backend, err := window.NewX11Backend()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	p, err := x11.New(backend)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("failed to initialise X11 capture: %w", err)
	}
	return window.NewManager(backend), p, nil
}
