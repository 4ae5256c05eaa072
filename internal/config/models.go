package config

import (
	"bytes"
	"fmt"
	"image/color"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// WindowID is an opaque native window handle (an X11 window id or a Win32 HWND).
type WindowID uint64

// String renders the id the way xprop and Spy++ print window handles.
func (id WindowID) String() string {
	return fmt.Sprintf("0x%x", uint64(id))
}

// ParseWindowID accepts decimal or 0x-prefixed hexadecimal ids.
func ParseWindowID(s string) (WindowID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q: %w", s, err)
	}
	return WindowID(v), nil
}

// WindowInfo represents information about a window
type WindowInfo struct {
	ID        WindowID `json:"id" mapstructure:"id"`
	Title     string   `json:"title" mapstructure:"title"`
	Class     string   `json:"class" mapstructure:"class"`
	PID       int      `json:"pid" mapstructure:"pid"`
	Focused   bool     `json:"focused" mapstructure:"focused"`
	Minimized bool     `json:"minimized" mapstructure:"minimized"`
	Resizable bool     `json:"resizable" mapstructure:"resizable"`
	Geometry  Geometry `json:"geometry" mapstructure:"geometry"`
}

// Geometry represents window geometry
type Geometry struct {
	X      int `json:"x" mapstructure:"x"`
	Y      int `json:"y" mapstructure:"y"`
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// BackgroundMode selects what the final image is rendered onto.
type BackgroundMode string

const (
	BackgroundTransparent  BackgroundMode = "transparent"
	BackgroundCheckerboard BackgroundMode = "checkerboard"
	BackgroundSolid        BackgroundMode = "solid"
)

// ParseBackgroundMode validates a mode name.
func ParseBackgroundMode(s string) (BackgroundMode, error) {
	switch m := BackgroundMode(strings.ToLower(strings.TrimSpace(s))); m {
	case BackgroundTransparent, BackgroundCheckerboard, BackgroundSolid:
		return m, nil
	}
	return "", fmt.Errorf("invalid background mode: %s (use transparent, checkerboard or solid)", s)
}

// ParseColor parses "#RRGGBB" (the leading # is optional).
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: expected #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// FormatColor is the inverse of ParseColor.
func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Config represents the application configuration. Captures expose the
// screen, so the API listens on loopback by default and only answers browser
// requests from its own origin or one listed in AllowedOrigins.
type Config struct {
	ServerHost     string        `json:"server_host" yaml:"server_host" mapstructure:"server_host"`
	ServerPort     int           `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
	AllowedOrigins []string      `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
	LogLevel       string        `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	Capture        CaptureConfig `json:"capture" yaml:"capture" mapstructure:"capture"`
	Output         OutputConfig  `json:"output" yaml:"output" mapstructure:"output"`
}

// CaptureConfig holds the defaults applied to every capture request.
type CaptureConfig struct {
	Background    BackgroundMode `json:"background" yaml:"background" mapstructure:"background"`
	SolidColor    string         `json:"solid_color" yaml:"solid_color" mapstructure:"solid_color"`
	CheckerSize   int            `json:"checker_size" yaml:"checker_size" mapstructure:"checker_size"`
	CaptureCursor bool           `json:"capture_cursor" yaml:"capture_cursor" mapstructure:"capture_cursor"`
	Resize        ResizeConfig   `json:"resize" yaml:"resize" mapstructure:"resize"`
	ShadowMargin  int            `json:"shadow_margin" yaml:"shadow_margin" mapstructure:"shadow_margin"`
	SettleDelay   time.Duration  `json:"settle_delay" yaml:"settle_delay" mapstructure:"settle_delay"`
	RestoreDelay  time.Duration  `json:"restore_delay" yaml:"restore_delay" mapstructure:"restore_delay"`
	ShowDelay     time.Duration  `json:"show_delay" yaml:"show_delay" mapstructure:"show_delay"`
	ResizeDelay   time.Duration  `json:"resize_delay" yaml:"resize_delay" mapstructure:"resize_delay"`
	HideShell     bool           `json:"hide_shell" yaml:"hide_shell" mapstructure:"hide_shell"`
}

// ResizeConfig asks for the window to be resized so the final image has the
// given dimensions.
type ResizeConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Width   int  `json:"width" yaml:"width" mapstructure:"width"`
	Height  int  `json:"height" yaml:"height" mapstructure:"height"`
}

// OutputConfig controls where captures are written.
type OutputConfig struct {
	Directory      string `json:"directory" yaml:"directory" mapstructure:"directory"`
	WriteFlattened bool   `json:"write_flattened" yaml:"write_flattened" mapstructure:"write_flattened"`
}

// Validate rejects values the capture pipeline cannot honour.
func (c *Config) Validate() error {
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port: %d", c.ServerPort)
	}
	for _, o := range c.AllowedOrigins {
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid allowed_origins entry %q: expected scheme://host[:port]", o)
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", c.LogLevel)
	}
	if _, err := ParseBackgroundMode(string(c.Capture.Background)); err != nil {
		return err
	}
	if _, err := ParseColor(c.Capture.SolidColor); err != nil {
		return err
	}
	if c.Capture.CheckerSize < 1 {
		return fmt.Errorf("invalid capture.checker_size: %d (must be at least 1)", c.Capture.CheckerSize)
	}
	if c.Capture.ShadowMargin < 0 {
		return fmt.Errorf("invalid capture.shadow_margin: %d", c.Capture.ShadowMargin)
	}
	if r := c.Capture.Resize; r.Enabled && (r.Width < 1 || r.Height < 1) {
		return fmt.Errorf("invalid capture.resize: %dx%d", r.Width, r.Height)
	}
	for name, d := range map[string]time.Duration{
		"settle_delay":  c.Capture.SettleDelay,
		"restore_delay": c.Capture.RestoreDelay,
		"show_delay":    c.Capture.ShowDelay,
		"resize_delay":  c.Capture.ResizeDelay,
	} {
		if d < 0 {
			return fmt.Errorf("invalid capture.%s: %s", name, d)
		}
	}
	return nil
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	v          *viper.Viper
	mu         sync.RWMutex
}

// DefaultDir is $HOME/.config/alphashot.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "alphashot"), nil
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		configDir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		actualConfigPath = filepath.Join(configDir, "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			if err := m.Update(Defaults()); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("background", string(m.config.Capture.Background)).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	outDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		outDir = filepath.Join(home, "Pictures", "AlphaShot")
	}
	return &Config{
		ServerHost: "127.0.0.1",
		ServerPort: 8080,
		LogLevel:   "info",
		Capture: CaptureConfig{
			Background:    BackgroundTransparent,
			SolidColor:    "#FFFFFF",
			CheckerSize:   8,
			CaptureCursor: false,
			ShadowMargin:  100,
			SettleDelay:   50 * time.Millisecond,
			RestoreDelay:  300 * time.Millisecond,
			ShowDelay:     100 * time.Millisecond,
			ResizeDelay:   100 * time.Millisecond,
			HideShell:     true,
		},
		Output: OutputConfig{
			Directory:      outDir,
			WriteFlattened: false,
		},
	}
}

// load reads the configuration from disk. Keys missing from the file keep
// their default values.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	v, err := newViper(cfg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.v = v
	m.mu.Unlock()
	return nil
}

// newViper exposes cfg under its dotted yaml keys.
func newViper(cfg *Config) (*viper.Viper, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to index config: %w", err)
	}
	return v, nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	cfg.AllowedOrigins = append([]string(nil), m.config.AllowedOrigins...)
	return &cfg
}

// GetViper returns the key/value view of the configuration. Values set on it
// are validated and persisted by Save.
func (m *Manager) GetViper() *viper.Viper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v
}

// Save folds any values set through GetViper back into the configuration,
// validates it and writes it to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	cfg := m.config
	if cfg == nil {
		cfg = Defaults()
	}
	if m.v != nil {
		merged := *cfg
		err := m.v.Unmarshal(&merged)
		if err == nil {
			err = merged.Validate()
		}
		if err != nil {
			// Drop the rejected values so later saves start from the last good state.
			if v, verr := newViper(cfg); verr == nil {
				m.v = v
			}
			m.mu.Unlock()
			return fmt.Errorf("failed to apply config: %w", err)
		}
		cfg = &merged
	}
	m.config = cfg
	m.mu.Unlock()

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Msg("Failed to marshal config")
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// Update replaces the entire configuration
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	v, err := newViper(cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	c := *cfg
	m.config = &c
	m.v = v
	m.mu.Unlock()
	return m.Save()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
