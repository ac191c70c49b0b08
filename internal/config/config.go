// Package config loads airboard settings from defaults, an optional YAML file
// and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/airboard/internal/board"
	"github.com/ayusman/airboard/internal/canvas"
	"github.com/ayusman/airboard/internal/capture"
	"github.com/ayusman/airboard/internal/detector"
	"github.com/ayusman/airboard/internal/store"
)

// Config is the complete application configuration.
type Config struct {
	Camera   capture.Config  `yaml:"camera"`
	Detector detector.Config `yaml:"detector"`
	Board    board.Config    `yaml:"board"`
	Drawing  DrawingConfig   `yaml:"drawing"`
	Server   ServerConfig    `yaml:"server"`
	// Tray shows the system tray menu.
	Tray bool `yaml:"tray"`
	// Headless runs without the preview window.
	Headless bool   `yaml:"headless"`
	DBPath   string `yaml:"db"`
	LogLevel string `yaml:"log_level"`
}

// DrawingConfig holds the pen and the look of the composed frame.
type DrawingConfig struct {
	Color      string  `yaml:"color"`      // #rrggbb
	Thickness  int     `yaml:"thickness"`  // pixels
	Enabled    bool    `yaml:"enabled"`    // drawing on at startup
	Background string  `yaml:"background"` // board, camera
	Theme      string  `yaml:"theme"`      // light, dark
	Mirror     bool    `yaml:"mirror"`
	Motion     float64 `yaml:"motion_threshold"`
}

// ServerConfig configures the local preview server.
type ServerConfig struct {
	// Listen is the address to serve on; empty disables the server.
	Listen string `yaml:"listen"`
}

// Dir returns the per-user airboard directory (~/.airboard).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".airboard"
	}
	return filepath.Join(home, ".airboard")
}

// DefaultPath is the config file read when none is given explicitly.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Camera:   capture.DefaultConfig(),
		Detector: detector.DefaultConfig(),
		Board:    board.DefaultConfig(),
		Drawing: DrawingConfig{
			Color:      canvas.FormatColor(canvas.DefaultColor),
			Thickness:  canvas.DefaultThickness,
			Enabled:    true,
			Background: string(canvas.BackgroundBoard),
			Theme:      string(canvas.ThemeLight),
			Mirror:     true,
			Motion:     capture.DefaultMotionThreshold,
		},
		Tray:     true,
		DBPath:   filepath.Join(Dir(), "airboard.db"),
		LogLevel: "info",
	}
}

// Load reads path over the defaults. An empty path reads DefaultPath when it
// exists; an explicit path that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the app cannot run with.
func (c *Config) Validate() error {
	if c.Camera.DeviceID < 0 {
		return fmt.Errorf("camera.device must be >= 0")
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be > 0")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera.width and camera.height must be > 0")
	}

	if c.Detector.MaxHands < 1 {
		return fmt.Errorf("detector.max_hands must be >= 1")
	}
	if !unit(c.Detector.MinConfidence) || !unit(c.Detector.MinTrackingConf) {
		return fmt.Errorf("detector confidences must be within [0,1]")
	}
	if c.Detector.Timeout < 0 || c.Detector.StartTimeout < 0 {
		return fmt.Errorf("detector timeouts must not be negative")
	}

	if c.Board.PinchTolerance <= 0 || c.Board.PinchTolerance >= 1 {
		return fmt.Errorf("board.pinch_tolerance must be within (0,1)")
	}
	if c.Board.Smoothing < 0 || c.Board.Smoothing >= 1 {
		return fmt.Errorf("board.smoothing must be within [0,1)")
	}

	if _, err := c.Pen(); err != nil {
		return err
	}

	switch canvas.Background(c.Drawing.Background) {
	case canvas.BackgroundBoard, canvas.BackgroundCamera:
	default:
		return fmt.Errorf("drawing.background must be %q or %q", canvas.BackgroundBoard, canvas.BackgroundCamera)
	}
	switch canvas.Theme(c.Drawing.Theme) {
	case canvas.ThemeLight, canvas.ThemeDark:
	default:
		return fmt.Errorf("drawing.theme must be %q or %q", canvas.ThemeLight, canvas.ThemeDark)
	}

	if c.Headless && c.Server.Listen == "" {
		return fmt.Errorf("headless mode needs server.listen, nothing would show the board")
	}

	return nil
}

// Pen returns the configured pen.
func (c *Config) Pen() (canvas.Pen, error) {
	col, err := canvas.ParseColor(c.Drawing.Color)
	if err != nil {
		return canvas.Pen{}, fmt.Errorf("drawing.color: %w", err)
	}
	pen := canvas.Pen{Color: col, Thickness: c.Drawing.Thickness}
	if !pen.Valid() {
		return canvas.Pen{}, fmt.Errorf("drawing.thickness must be within %d..%d", canvas.MinThickness, canvas.MaxThickness)
	}
	return pen, nil
}

// CompositorOptions returns the composition settings.
func (c *Config) CompositorOptions() canvas.Options {
	return canvas.Options{
		Background: canvas.Background(c.Drawing.Background),
		Theme:      canvas.Theme(c.Drawing.Theme),
		Mirror:     c.Drawing.Mirror,
	}
}

// ApplyPreferences overlays stored user choices. Values that would not
// validate are skipped so a stale database never blocks startup.
func (c *Config) ApplyPreferences(p store.Preferences) {
	if p.PenColor != "" {
		if _, err := canvas.ParseColor(p.PenColor); err == nil {
			c.Drawing.Color = p.PenColor
		}
	}
	if p.PenThickness >= canvas.MinThickness && p.PenThickness <= canvas.MaxThickness {
		c.Drawing.Thickness = p.PenThickness
	}
	if p.Drawing != nil {
		c.Drawing.Enabled = *p.Drawing
	}
	switch canvas.Background(p.Background) {
	case canvas.BackgroundBoard, canvas.BackgroundCamera:
		c.Drawing.Background = p.Background
	}
	switch canvas.Theme(p.Theme) {
	case canvas.ThemeLight, canvas.ThemeDark:
		c.Drawing.Theme = p.Theme
	}
	if p.Mirror != nil {
		c.Drawing.Mirror = *p.Mirror
	}
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
