//go:build windows

package commands

import (
	"fmt"

	"github.com/bryanchriswhite/AlphaShot/internal/capture"
	"github.com/bryanchriswhite/AlphaShot/internal/capture/gdi"
	"github.com/bryanchriswhite/AlphaShot/internal/window"
)

func openPlatform() (*window.Manager, capture.Platform, error) {
	backend, err := window.NewWin32Backend()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open window backend: %w", err)
	}
	p, err := gdi.New()
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("failed to initialise GDI capture: %w", err)
	}
	return window.NewManager(backend), p, nil
}
