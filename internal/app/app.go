// Package app wires camera, detector, drawing controller and display into the
// air drawing board and runs its tick loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ayusman/airboard/internal/board"
	"github.com/ayusman/airboard/internal/canvas"
	"github.com/ayusman/airboard/internal/capture"
	"github.com/ayusman/airboard/internal/config"
	"github.com/ayusman/airboard/internal/detector"
	"github.com/ayusman/airboard/internal/display"
	"github.com/ayusman/airboard/internal/metrics"
	"github.com/ayusman/airboard/internal/store"
)

// ThicknessStep is how much one thicker/thinner command changes the pen.
const ThicknessStep = 2

var (
	// ErrNoFrame means the capture side had nothing new for this tick.
	ErrNoFrame = errors.New("no frame available")
	// ErrQueueFull is returned when a command cannot be queued.
	ErrQueueFull = errors.New("command queue full")
)

// Deps are the collaborators the app drives. Camera, Detector and Display
// are required; the rest are optional.
type Deps struct {
	Camera   capture.Camera
	Detector detector.Detector
	Display  display.Display
	Store    *store.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// State is a read-only view of the board for other goroutines.
type State struct {
	SessionID string       `json:"session_id"`
	Drawing   bool         `json:"drawing"`
	Pen       canvas.Pen   `json:"-"`
	Cursor    board.Cursor `json:"cursor"`
	Segments  int          `json:"segments"`
	Strokes   int          `json:"strokes"`
}

// Update is delivered to observers after every processed tick.
type Update struct {
	Cursor  board.Cursor
	Drawing bool
	Segment *canvas.Segment
}

// App is the drawing board application.
type App struct {
	config *config.Config
	camera capture.Camera
	det    detector.Detector
	disp   display.Display
	store  *store.Store
	metric *metrics.Metrics
	logger *slog.Logger

	slot       *capture.Slot
	motion     *capture.MotionDetector
	pump       *capture.Pump
	controller *board.Controller
	compositor *canvas.Compositor

	commands chan command
	session  store.Session

	mu        sync.RWMutex
	state     State
	observers []func(Update)

	quit      bool
	started   bool
	closeOnce sync.Once
}

// New wires an app from cfg and deps. Nothing is opened until Start.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if deps.Camera == nil || deps.Detector == nil || deps.Display == nil {
		return nil, errors.New("app: camera, detector and display are required")
	}

	pen, err := cfg.Pen()
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	a := &App{
		config:     cfg,
		camera:     deps.Camera,
		det:        deps.Detector,
		disp:       deps.Display,
		store:      deps.Store,
		metric:     m,
		logger:     logger,
		slot:       capture.NewSlot(),
		motion:     capture.NewMotionDetector(cfg.Drawing.Motion),
		controller: board.NewController(cfg.Board),
		compositor: canvas.NewCompositor(cfg.CompositorOptions()),
		commands:   make(chan command, 32),
	}
	a.pump = capture.NewPump(a.camera, a.slot, a.motion, logger)
	a.pump.OnError(func(error) { a.metric.CaptureError() })
	a.controller.SetPen(pen)
	a.controller.SetDrawing(cfg.Drawing.Enabled)
	a.session = store.Session{ID: uuid.NewString()}

	a.metric.RegisterSlot(a.slot.Stats)
	a.metric.SetDrawing(cfg.Drawing.Enabled)
	a.publishState()

	return a, nil
}

// Start opens the camera and starts the detector. Either failure is fatal.
func (a *App) Start(ctx context.Context) error {
	if a.started {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	if s, ok := a.det.(interface{ Start() error }); ok {
		if err := s.Start(); err != nil {
			a.camera.Close()
			return fmt.Errorf("start detector: %w", err)
		}
	}

	if a.store != nil {
		if err := a.store.Sessions().Create(&a.session); err != nil {
			a.logger.Warn("failed to record session", "error", err)
		}
	}

	a.started = true
	a.setStatus()
	a.logger.Info("board started",
		"session", a.session.ID,
		"camera", a.config.Camera.DeviceID,
		"fps", a.config.Camera.FPS,
	)
	return nil
}

// Close stops capture, persists preferences and session totals, and
// releases every resource. Safe to call more than once.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		a.slot.Close()
		if err := a.camera.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close camera: %w", err))
		}
		if err := a.det.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
		if err := a.disp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close display: %w", err))
		}
		a.motion.Close()

		a.persist()

		if err := a.compositor.Close(); err != nil {
			errs = append(errs, err)
		}
		a.logger.Info("board stopped",
			"frames", a.session.Frames,
			"segments", a.session.Segments,
			"strokes", a.session.Strokes,
		)
	})
	return errors.Join(errs...)
}

func (a *App) persist() {
	if a.store == nil {
		return
	}

	drawing := a.controller.Drawing()
	opts := a.compositor.Options()
	pen := a.controller.Pen()
	prefs := store.Preferences{
		PenColor:     canvas.FormatColor(pen.Color),
		PenThickness: pen.Thickness,
		Drawing:      &drawing,
		Background:   string(opts.Background),
		Theme:        string(opts.Theme),
		Mirror:       &opts.Mirror,
	}
	if err := a.store.Settings().SavePreferences(prefs); err != nil {
		a.logger.Warn("failed to save preferences", "error", err)
	}

	if a.started {
		if err := a.store.Sessions().Finish(&a.session); err != nil {
			a.logger.Warn("failed to finish session", "error", err)
		}
	}
}

// Observe registers fn to be called from the tick loop after every processed
// tick. fn must not block.
func (a *App) Observe(fn func(Update)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// State returns the board state as of the last tick or command.
func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// SessionID identifies this run.
func (a *App) SessionID() string {
	return a.session.ID
}

// Compositor returns the compositor, whose last frame feeds the preview stream.
func (a *App) Compositor() *canvas.Compositor {
	return a.compositor
}

// Metrics returns the app's metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metric
}

func (a *App) publishState() {
	layer := a.controller.Layer()
	s := State{
		SessionID: a.session.ID,
		Drawing:   a.controller.Drawing(),
		Pen:       a.controller.Pen(),
		Cursor:    a.controller.Cursor(),
		Segments:  layer.Len(),
		Strokes:   layer.Strokes(),
	}
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *App) setStatus() {
	on := "OFF"
	if a.controller.Drawing() {
		on = "ON"
	}
	pen := a.controller.Pen()
	a.disp.SetStatus(fmt.Sprintf("Drawing: %s  %s %dpx", on, canvas.FormatColor(pen.Color), pen.Thickness))
}
