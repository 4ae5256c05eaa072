package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/AlphaShot/internal/api"
	"github.com/bryanchriswhite/AlphaShot/internal/capture"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the AlphaShot server",
	Long: `Start the AlphaShot HTTP server.

The server exposes the window list, captures on demand as PNG and streams
capture progress over a WebSocket.`,
	Example: `  # Start server on default port (8080)
  alphashot serve

  # Start server on custom port
  alphashot serve --port 9090

  # Start with specific config file
  alphashot serve --config /path/to/config.yaml

  # Listen on all interfaces (exposes captures to the network)
  alphashot serve --host 0.0.0.0

  # Start with debug logging
  alphashot serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("serve")
	log.Info().
		Str("path", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	windowMgr, platform, err := openPlatform()
	if err != nil {
		return err
	}
	defer windowMgr.Close()
	log.Info().Str("backend", windowMgr.Backend().Name()).Msg("Window backend ready")

	captures := capture.NewManager(platform, windowMgr, cfg.Capture)
	server := api.NewServer(windowMgr, captures, configMgr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("host", cfg.ServerHost).
		Int("port", cfg.ServerPort).
		Msg("AlphaShot is running, press Ctrl+C to stop")

	if err := server.Start(ctx, cfg.ServerHost, cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("Shut down gracefully")
	return nil
}
