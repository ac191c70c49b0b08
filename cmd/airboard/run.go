package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/airboard/internal/app"
	"github.com/ayusman/airboard/internal/capture"
	"github.com/ayusman/airboard/internal/config"
	"github.com/ayusman/airboard/internal/detector"
	"github.com/ayusman/airboard/internal/display"
	"github.com/ayusman/airboard/internal/logging"
	"github.com/ayusman/airboard/internal/metrics"
	"github.com/ayusman/airboard/internal/server"
	"github.com/ayusman/airboard/internal/store"
	"github.com/ayusman/airboard/internal/tray"
)

func runBoard(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(level)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	defer st.Close()

	prefs, err := st.Settings().LoadPreferences()
	if err != nil {
		logger.Warn("ignoring stored preferences", "error", err)
	} else {
		cfg.ApplyPreferences(prefs)
	}
	// Flags win over stored preferences.
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	det, err := detector.NewMediaPipeDetector(cfg.Detector, logger)
	if err != nil {
		return fmt.Errorf("hand detector: %w", err)
	}

	var disp display.Display
	if cfg.Headless {
		disp = display.NewHeadless()
	} else {
		disp = display.NewWindow("Airboard")
	}

	m := metrics.New()
	board, err := app.New(cfg, app.Deps{
		Camera:   capture.NewCamera(cfg.Camera),
		Detector: det,
		Display:  disp,
		Store:    st,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		det.Close()
		disp.Close()
		return err
	}
	defer func() {
		if err := board.Close(); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := board.Start(ctx); err != nil {
		return err
	}

	previewURL := ""
	if cfg.Server.Listen != "" {
		previewURL = startServer(ctx, cfg, board, m, logger)
	}

	if cfg.Tray && !cfg.Headless {
		tr := newTray(board, previewURL, logger)
		tr.Register()
		defer tr.Close()
	}

	return board.Run(ctx)
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("camera") {
		cfg.Camera.DeviceID, _ = f.GetInt("camera")
	}
	if f.Changed("fps") {
		cfg.Camera.FPS, _ = f.GetInt("fps")
	}
	if f.Changed("width") {
		cfg.Camera.Width, _ = f.GetInt("width")
	}
	if f.Changed("height") {
		cfg.Camera.Height, _ = f.GetInt("height")
	}
	if f.Changed("listen") {
		cfg.Server.Listen, _ = f.GetString("listen")
	}
	if f.Changed("headless") {
		cfg.Headless, _ = f.GetBool("headless")
	}
	if f.Changed("no-tray") {
		noTray, _ := f.GetBool("no-tray")
		cfg.Tray = !noTray
	}
	if f.Changed("db") {
		cfg.DBPath, _ = f.GetString("db")
	}
	if f.Changed("log-level") {
		cfg.LogLevel, _ = f.GetString("log-level")
	}
}

func startServer(ctx context.Context, cfg *config.Config, board *app.App, m *metrics.Metrics, logger *slog.Logger) string {
	hub := server.NewCursorHub(logger, m)
	board.Observe(hub.Publish)

	webDir := findWebDir()
	if webDir != "" {
		logger.Info("serving preview page", "dir", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Board:     board,
		Frames:    board.Compositor(),
		Cursor:    hub,
		Metrics:   m,
		Logger:    logger,
	})

	go func() {
		if err := srv.ListenAndServe(ctx, cfg.Server.Listen); err != nil {
			logger.Error("preview server stopped", "error", err)
		}
	}()

	url := "http://" + cfg.Server.Listen
	logger.Info("preview server listening", "url", url)
	return url
}

func newTray(board *app.App, previewURL string, logger *slog.Logger) *tray.Tray {
	tr := tray.New(board.State().Drawing, previewURL)

	report := func(what string, err error) {
		if err != nil {
			logger.Warn("tray command dropped", "command", what, "error", err)
		}
	}
	tr.OnToggle(func(enabled bool) { report("drawing", board.SetDrawing(enabled)) })
	tr.OnClear(func() { report("clear", board.Clear()) })
	tr.OnColor(func(i int) { report("color", board.SelectColor(i)) })
	tr.OnThickness(func(px int) { report("thickness", board.SetThickness(px)) })
	tr.OnQuit(func() { report("quit", board.Quit()) })
	tr.OnPreview(func() {
		if err := openBrowser(previewURL); err != nil {
			logger.Warn("failed to open preview", "error", err)
		}
	})

	// Keep the menu in step with key presses.
	board.Observe(func(u app.Update) {
		if tr.Drawing() != u.Drawing {
			tr.SetDrawing(u.Drawing)
		}
	})
	return tr
}

func openBrowser(url string) error {
	if url == "" {
		return fmt.Errorf("preview server not running")
	}
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	return c.Start()
}

// findWebDir searches for the preview page directory.
// It checks: "web", "../web", "../../web", and ~/.airboard/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.Dir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
