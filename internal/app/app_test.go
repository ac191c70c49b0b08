package app

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/airboard/internal/board"
	"github.com/ayusman/airboard/internal/canvas"
	"github.com/ayusman/airboard/internal/capture"
	"github.com/ayusman/airboard/internal/config"
	"github.com/ayusman/airboard/internal/detector"
	"github.com/ayusman/airboard/internal/display"
	"github.com/ayusman/airboard/internal/logging"
	"github.com/ayusman/airboard/internal/store"
)

type fixture struct {
	app    *App
	camera *capture.MockCamera
	det    *detector.MockDetector
	disp   *display.Headless
}

func newFixture(t *testing.T, st *store.Store) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Drawing.Mirror = false

	f := &fixture{
		camera: capture.NewMockCamera(nil, false),
		det:    detector.NewMockDetector(),
		disp:   display.NewHeadless(),
	}

	a, err := New(cfg, Deps{
		Camera:   f.camera,
		Detector: f.det,
		Display:  f.disp,
		Store:    st,
		Logger:   logging.NewNop(),
	})
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { a.Close() })

	f.app = a
	return f
}

// frame publishes a blank 100x100 frame so pixel coordinates equal
// normalized coordinates times 100.
func (f *fixture) frame() {
	m := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	f.app.slot.Publish(&m)
}

func (f *fixture) tick(t *testing.T, hands ...detector.HandLandmarks) {
	t.Helper()
	f.det.Enqueue(hands)
	f.frame()
	require.NoError(t, f.app.Tick())
}

func pinch(x, y int) detector.HandLandmarks {
	return detector.PinchLandmarks(float64(x)/100, float64(y)/100)
}

func hover(x, y int) detector.HandLandmarks {
	return detector.HoverLandmarks(float64(x)/100, float64(y)/100)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(config.Default(), Deps{})
	assert.Error(t, err)
}

func TestNew_InvalidPen(t *testing.T) {
	cfg := config.Default()
	cfg.Drawing.Color = "nope"

	_, err := New(cfg, Deps{
		Camera:   capture.NewMockCamera(nil, false),
		Detector: detector.NewMockDetector(),
		Display:  display.NewHeadless(),
	})
	assert.Error(t, err)
}

func TestStart_CameraFailureIsFatal(t *testing.T) {
	cam := capture.NewMockCamera(nil, false)
	cam.SetOpenError(errors.New("no device"))

	disp := display.NewHeadless()
	a, err := New(config.Default(), Deps{
		Camera:   cam,
		Detector: detector.NewMockDetector(),
		Display:  disp,
		Logger:   logging.NewNop(),
	})
	require.NoError(t, err)
	defer a.Close()

	err = a.Start(context.Background())
	assert.ErrorContains(t, err, "open camera")
	assert.Zero(t, disp.Shown(), "nothing is shown when startup fails")
	assert.Error(t, a.Run(context.Background()), "Run refuses to start after a failed Start")
}

type failingStarter struct {
	*detector.MockDetector
}

func (failingStarter) Start() error { return detector.ErrServiceNotFound }

func TestStart_DetectorFailureIsFatal(t *testing.T) {
	cam := capture.NewMockCamera(nil, false)
	a, err := New(config.Default(), Deps{
		Camera:   cam,
		Detector: failingStarter{detector.NewMockDetector()},
		Display:  display.NewHeadless(),
		Logger:   logging.NewNop(),
	})
	require.NoError(t, err)
	defer a.Close()

	err = a.Start(context.Background())
	assert.ErrorIs(t, err, detector.ErrServiceNotFound)
	assert.False(t, cam.IsOpen(), "camera is released when the detector cannot start")
}

func TestTick_DrawSequence(t *testing.T) {
	f := newFixture(t, nil)

	f.tick(t, pinch(10, 10))
	f.tick(t, pinch(20, 10))
	f.tick(t, pinch(20, 20))

	segs := f.app.controller.Layer().Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, image.Pt(10, 10), segs[0].From)
	assert.Equal(t, image.Pt(20, 20), segs[1].To)

	state := f.app.State()
	assert.Equal(t, 2, state.Segments)
	assert.Equal(t, 1, state.Strokes)
	assert.Equal(t, board.ModeDraw, state.Cursor.Mode)
	assert.Equal(t, 3, f.disp.Shown())
}

func TestTick_NoFrameSkips(t *testing.T) {
	f := newFixture(t, nil)

	err := f.app.Tick()

	assert.ErrorIs(t, err, ErrNoFrame)
	assert.Zero(t, f.det.Calls(), "detector is not called without a frame")
	assert.Zero(t, f.disp.Shown(), "previous display stays")
}

func TestTick_DetectorErrorSkips(t *testing.T) {
	f := newFixture(t, nil)
	f.tick(t, pinch(10, 10))

	f.det.SetError(errors.New("subprocess died"))
	f.frame()
	err := f.app.Tick()

	assert.ErrorContains(t, err, "detect")
	assert.Equal(t, 1, f.disp.Shown())
	assert.Equal(t, board.ModeDraw, f.app.controller.Cursor().Mode, "controller untouched on error")
}

func TestTick_NoHandIsNormal(t *testing.T) {
	f := newFixture(t, nil)

	f.tick(t)

	assert.Equal(t, board.ModeNone, f.app.State().Cursor.Mode)
	assert.Equal(t, 1, f.disp.Shown())
}

func TestTick_HoverBreaksStroke(t *testing.T) {
	f := newFixture(t, nil)

	f.tick(t, pinch(10, 10))
	f.tick(t, pinch(20, 10))
	f.tick(t, hover(50, 50))
	f.tick(t, pinch(80, 80))
	f.tick(t, pinch(90, 80))

	assert.Equal(t, 2, f.app.State().Segments)
	assert.Equal(t, 2, f.app.State().Strokes)
}

func TestTick_SingleFramePinchIsNotAStroke(t *testing.T) {
	f := newFixture(t, nil)

	f.tick(t, pinch(10, 10))
	f.tick(t, hover(50, 50))
	f.tick(t, pinch(80, 80))
	f.tick(t)

	assert.Zero(t, f.app.State().Segments)
	assert.Zero(t, f.app.State().Strokes)
	assert.Zero(t, f.app.session.Strokes)
}

func TestTick_ObserversSeeEveryProcessedTick(t *testing.T) {
	f := newFixture(t, nil)
	var updates []Update
	f.app.Observe(func(u Update) { updates = append(updates, u) })

	f.tick(t, pinch(10, 10))
	f.tick(t, pinch(20, 10))
	_ = f.app.Tick() // no frame

	require.Len(t, updates, 2)
	assert.Nil(t, updates[0].Segment)
	require.NotNil(t, updates[1].Segment)
	assert.Equal(t, image.Pt(20, 10), updates[1].Cursor.Position)
}

func TestCommands_AppliedAtNextTick(t *testing.T) {
	f := newFixture(t, nil)
	f.tick(t, pinch(10, 10))
	f.tick(t, pinch(20, 10))

	require.NoError(t, f.app.Clear())
	assert.Equal(t, 1, f.app.State().Segments, "commands wait for the loop")

	f.tick(t)
	assert.Zero(t, f.app.State().Segments)

	require.NoError(t, f.app.SetDrawing(false))
	require.NoError(t, f.app.SetPen(canvas.Pen{Color: canvas.Palette[2], Thickness: 6}))
	f.tick(t)

	state := f.app.State()
	assert.False(t, state.Drawing)
	assert.Equal(t, canvas.Palette[2], state.Pen.Color)
	assert.Equal(t, 6, state.Pen.Thickness)
	assert.Contains(t, f.disp.Status(), "Drawing: OFF")
}

func TestCommands_ThicknessKeepsColor(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.app.SelectColor(1))
	require.NoError(t, f.app.SetThickness(30))
	require.NoError(t, f.app.SetThickness(500))
	f.tick(t)

	pen := f.app.State().Pen
	assert.Equal(t, canvas.Palette[1], pen.Color)
	assert.Equal(t, 30, pen.Thickness, "out of range thickness is ignored")
}

func TestCommands_QueueFull(t *testing.T) {
	f := newFixture(t, nil)

	var err error
	for i := 0; i < cap(f.app.commands)+1; i++ {
		err = f.app.ToggleDrawing()
	}
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestKeys(t *testing.T) {
	f := newFixture(t, nil)
	start := f.app.controller.Pen().Thickness

	f.app.handleAction(display.Action{Kind: display.ActionThicker})
	f.app.handleAction(display.Action{Kind: display.ActionColor, Color: 3})
	f.app.handleAction(display.Action{Kind: display.ActionColor, Color: 99})
	f.app.handleAction(display.Action{Kind: display.ActionToggleDrawing})

	pen := f.app.controller.Pen()
	assert.Equal(t, start+ThicknessStep, pen.Thickness)
	assert.Equal(t, canvas.Palette[3], pen.Color)
	assert.False(t, f.app.controller.Drawing())

	for i := 0; i < 100; i++ {
		f.app.handleAction(display.Action{Kind: display.ActionThinner})
	}
	assert.Equal(t, canvas.MinThickness, f.app.controller.Pen().Thickness)
}

func TestRun_StopsOnQuitKey(t *testing.T) {
	f := newFixture(t, nil)
	f.disp.Press(display.Action{}, display.Action{Kind: display.ActionQuit})

	done := make(chan error, 1)
	go func() { done <- f.app.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after quit key")
	}
}

func TestRun_StopsOnQuitCommand(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.app.Quit())

	done := make(chan error, 1)
	go func() { done <- f.app.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after quit command")
	}
}

func TestRun_StopsOnWindowClose(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.disp.Close())

	assert.NoError(t, f.app.Run(context.Background()))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, f.app.Run(ctx))
}

func TestClose_PersistsPreferencesAndSession(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "airboard.db"))
	require.NoError(t, err)
	defer st.Close()

	f := newFixture(t, st)
	f.tick(t, pinch(10, 10))
	f.tick(t, pinch(20, 10))
	require.NoError(t, f.app.SetPen(canvas.Pen{Color: canvas.Palette[2], Thickness: 8}))
	require.NoError(t, f.app.Clear())
	f.tick(t)

	require.NoError(t, f.app.Close())
	require.NoError(t, f.app.Close(), "Close is idempotent")

	prefs, err := st.Settings().LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, canvas.FormatColor(canvas.Palette[2]), prefs.PenColor)
	assert.Equal(t, 8, prefs.PenThickness)
	require.NotNil(t, prefs.Drawing)
	assert.True(t, *prefs.Drawing)

	sess, err := st.Sessions().GetByID(f.app.SessionID())
	require.NoError(t, err)
	assert.Equal(t, int64(3), sess.Frames)
	assert.Equal(t, int64(1), sess.Segments)
	assert.Equal(t, int64(1), sess.Strokes)
	assert.Equal(t, int64(1), sess.Clears)
	assert.NotNil(t, sess.EndedAt)
	assert.False(t, f.camera.IsOpen())
}
