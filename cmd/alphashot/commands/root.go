package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "alphashot",
		Short: "AlphaShot - Window screenshots with real transparency",
		Long: `AlphaShot captures a single window together with its drop shadow and
rounded corners, and saves it as a PNG with a genuine alpha channel.

The window is photographed twice, once over a white backdrop and once over a
black one. Comparing the two recovers how opaque every pixel is.

Features:
  • Transparent, checkerboard or solid backgrounds
  • Optional mouse pointer overlay
  • Resize a window to an exact image size before capturing
  • Persistent configuration
  • REST API with live capture progress`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/alphashot/config.yaml)")
	rootCmd.PersistentFlags().String("host", "", "server listen address (default is 127.0.0.1)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", true, "human readable log output")

	// Bind flags to viper
	viper.BindPFlag("server_host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
}

func initConfig() {
	viper.SetEnvPrefix("ALPHASHOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	if cfgFile == "" {
		cfgFile = viper.GetString("config")
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig opens the config file and applies command-line overrides to the
// in-memory copy. Overrides are not persisted.
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configMgr.Get()

	if host := viper.GetString("server_host"); host != "" {
		cfg.ServerHost = host
	}
	if port := viper.GetInt("server_port"); port > 0 {
		cfg.ServerPort = port
	}
	if level := viper.GetString("log_level"); level != "" {
		cfg.LogLevel = level
	}
	logger.Init(cfg.LogLevel, viper.GetBool("pretty"))

	return configMgr, cfg, nil
}
