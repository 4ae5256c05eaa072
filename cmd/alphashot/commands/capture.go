package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/AlphaShot/internal/capture"
	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/bryanchriswhite/AlphaShot/internal/output"
	"github.com/bryanchriswhite/AlphaShot/internal/window"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a window with its shadow",
	Long: `Capture a single window, including its drop shadow and rounded corners,
as a PNG with real transparency.

Without --window or --title the focused window is captured. The image is
written to the configured output directory under a name derived from the
window title, unless --output is given.`,
	Example: `  # Capture the focused window
  alphashot capture

  # Capture a window by id onto a checkerboard
  alphashot capture --window 0x3a00007 --background checkerboard

  # Capture the first window whose title mentions "terminal" with the pointer
  alphashot capture --title terminal --cursor

  # Resize the window so the image is exactly 1280x800 and write it to stdout
  alphashot capture --width 1280 --height 800 --output - > shot.png`,
	RunE: runCapture,
}

var (
	captureWindow     string
	captureTitle      string
	captureForeground bool
	captureBackground string
	captureColor      string
	captureChecker    int
	captureCursor     bool
	captureWidth      int
	captureHeight     int
	captureOutput     string
	captureDir        string
	captureFlat       bool
)

func init() {
	rootCmd.AddCommand(captureCmd)

	f := captureCmd.Flags()
	f.StringVarP(&captureWindow, "window", "w", "", "window id to capture (decimal or 0x hex)")
	f.StringVarP(&captureTitle, "title", "t", "", "capture the first window whose title or class contains this text")
	f.BoolVar(&captureForeground, "foreground", false, "capture the focused window (the default without --window or --title)")
	f.StringVarP(&captureBackground, "background", "b", "", "background mode (transparent, checkerboard, solid)")
	f.StringVar(&captureColor, "color", "", "solid background colour as #RRGGBB")
	f.IntVar(&captureChecker, "checker", 0, "checkerboard tile size in pixels")
	f.BoolVar(&captureCursor, "cursor", false, "draw the mouse pointer")
	f.IntVar(&captureWidth, "width", 0, "resize the window so the image is this wide")
	f.IntVar(&captureHeight, "height", 0, "resize the window so the image is this tall")
	f.StringVarP(&captureOutput, "output", "o", "", "write the PNG to this file, or - for stdout")
	f.StringVar(&captureDir, "dir", "", "output directory (overrides output.directory)")
	f.BoolVar(&captureFlat, "flat", false, "also write a copy flattened over white")
}

// applyCaptureFlags overlays the flags the user set on the configured
// defaults.
func applyCaptureFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("background") {
		cfg.Capture.Background = config.BackgroundMode(captureBackground)
	}
	if f.Changed("color") {
		cfg.Capture.SolidColor = captureColor
	}
	if f.Changed("checker") {
		cfg.Capture.CheckerSize = captureChecker
	}
	if f.Changed("cursor") {
		cfg.Capture.CaptureCursor = captureCursor
	}
	if f.Changed("width") || f.Changed("height") {
		cfg.Capture.Resize = config.ResizeConfig{
			Enabled: true,
			Width:   captureWidth,
			Height:  captureHeight,
		}
	}
	if f.Changed("dir") {
		cfg.Output.Directory = captureDir
	}
	if f.Changed("flat") {
		cfg.Output.WriteFlattened = captureFlat
	}
}

func resolveTarget(windowMgr *window.Manager) (config.WindowID, error) {
	switch {
	case captureForeground:
	case captureWindow != "":
		return config.ParseWindowID(captureWindow)
	case captureTitle != "":
		info, err := windowMgr.FindWindow(captureTitle)
		if err != nil {
			return 0, err
		}
		return info.ID, nil
	}
	info, err := windowMgr.GetCurrentWindow()
	if err != nil {
		return 0, fmt.Errorf("no window focused: %w", err)
	}
	return info.ID, nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCaptureFlags(cmd, cfg)
	log := logger.WithComponent("cli")

	windowMgr, platform, err := openPlatform()
	if err != nil {
		return err
	}
	defer windowMgr.Close()

	id, err := resolveTarget(windowMgr)
	if err != nil {
		return err
	}
	req, err := capture.NewRequest(id, cfg.Capture)
	if err != nil {
		return err
	}

	captures := capture.NewManager(platform, windowMgr, cfg.Capture)
	events := captures.Subscribe()
	defer captures.Unsubscribe(events)
	go func() {
		for ev := range events {
			log.Debug().Str("state", string(ev.State)).Stringer("window_id", ev.WindowID).Msg("Capture progress")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := captures.Capture(ctx, req)
	if err != nil {
		if capture.IsWarning(err) {
			log.Warn().Err(err).Msg("Nothing to capture: the window may be minimised or off screen")
		}
		return err
	}

	switch captureOutput {
	case "":
		saved, err := output.NewWriter(cfg.Output).Save(res.Title, res.Image)
		if err != nil {
			return err
		}
		fmt.Println(saved.Path)
		if saved.FlatPath != "" {
			fmt.Println(saved.FlatPath)
		}
		return nil
	case "-":
		return output.Encode(os.Stdout, res.Image)
	default:
		f, err := os.Create(captureOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", captureOutput, err)
		}
		if err := output.Encode(f, res.Image); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode %s: %w", captureOutput, err)
		}
		return f.Close()
	}
}
