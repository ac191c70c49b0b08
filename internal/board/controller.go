// Package board turns per-frame hand detections into strokes on the canvas.
package board

import (
	"image"

	"github.com/ayusman/airboard/internal/canvas"
	"github.com/ayusman/airboard/internal/detector"
)

// DefaultPinchTolerance is the largest per-axis gap, in normalized frame
// coordinates, between index fingertip and thumb tip that still counts as a pinch.
const DefaultPinchTolerance = 0.05

// Mode is what the fingertip is doing in a frame.
type Mode int

const (
	// ModeNone means no hand was detected.
	ModeNone Mode = iota
	// ModeHover means a hand is visible but not pinching.
	ModeHover
	// ModeDraw means index fingertip and thumb tip are pinched together.
	ModeDraw
)

func (m Mode) String() string {
	switch m {
	case ModeHover:
		return "hover"
	case ModeDraw:
		return "draw"
	default:
		return "none"
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Cursor is the controller's memory of the previous frame.
type Cursor struct {
	Mode     Mode        `json:"mode"`
	Position image.Point `json:"position"`
	// Anchored is set while a stroke is in progress; the next draw frame
	// connects Position to the new point.
	Anchored bool `json:"anchored"`
}

// Config tunes the draw/hover decision.
type Config struct {
	// PinchTolerance is the per-axis threshold for ModeDraw.
	PinchTolerance float64 `yaml:"pinch_tolerance"`
	// Smoothing in [0,1) blends each position with the previous one.
	// 0 disables it.
	Smoothing float64 `yaml:"smoothing"`
}

// DefaultConfig returns a 0.05 pinch tolerance and no smoothing.
func DefaultConfig() Config {
	return Config{PinchTolerance: DefaultPinchTolerance}
}

// Result describes what one Process call did.
type Result struct {
	Mode     Mode
	Position image.Point
	// Segment is set when a line was appended this frame.
	Segment *canvas.Segment
	// Marker is the hover indicator to draw on the composed frame only.
	Marker canvas.Marker
}

// Controller owns the cursor and the stroke layer.
// It is not safe for concurrent use; the tick loop is its only caller.
type Controller struct {
	config  Config
	layer   *canvas.Layer
	pen     canvas.Pen
	cursor  Cursor
	drawing bool

	smoothX, smoothY float64
	smoothed         bool
}

// NewController creates a controller with drawing enabled and the default pen.
func NewController(cfg Config) *Controller {
	if cfg.PinchTolerance <= 0 {
		cfg.PinchTolerance = DefaultPinchTolerance
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = 0
	}
	return &Controller{
		config:  cfg,
		layer:   canvas.NewLayer(),
		pen:     canvas.DefaultPen(),
		drawing: true,
	}
}

// Process interprets one frame's detection. size is the frame size in pixels.
func (c *Controller) Process(det detector.Detection, size image.Point) Result {
	if !det.Found {
		c.reset()
		return Result{Mode: ModeNone}
	}

	hand := det.Hand
	pos := c.smooth(hand.IndexTip().Midpoint(hand.ThumbTip()).Pixel(size))

	if !c.drawing {
		c.dropAnchor()
		c.cursor = Cursor{Mode: ModeHover, Position: pos}
		return Result{Mode: ModeHover, Position: pos}
	}

	if !c.pinched(&hand) {
		c.dropAnchor()
		c.cursor = Cursor{Mode: ModeHover, Position: pos}
		return Result{
			Mode:     ModeHover,
			Position: pos,
			Marker:   canvas.Marker{At: pos, Radius: c.pen.Thickness / 2, Visible: true},
		}
	}

	res := Result{Mode: ModeDraw, Position: pos}
	if c.cursor.Mode == ModeDraw && c.cursor.Anchored {
		seg := c.layer.Append(c.cursor.Position, pos, c.pen)
		res.Segment = &seg
	} else {
		c.layer.BeginStroke()
	}

	c.cursor = Cursor{Mode: ModeDraw, Position: pos, Anchored: true}
	return res
}

// Clear empties the stroke layer and forgets the cursor. Idempotent.
func (c *Controller) Clear() {
	c.layer.Clear()
	c.reset()
}

// SetDrawing enables or disables drawing. Either way the current stroke ends.
func (c *Controller) SetDrawing(enabled bool) {
	c.drawing = enabled
	c.dropAnchor()
}

// ToggleDrawing flips drawing on or off and returns the new state.
func (c *Controller) ToggleDrawing() bool {
	c.SetDrawing(!c.drawing)
	return c.drawing
}

// Drawing reports whether drawing is enabled.
func (c *Controller) Drawing() bool {
	return c.drawing
}

// SetPen changes the pen for subsequent segments. An invalid pen is ignored.
func (c *Controller) SetPen(p canvas.Pen) bool {
	if !p.Valid() {
		return false
	}
	c.pen = p
	return true
}

// Pen returns the current pen.
func (c *Controller) Pen() canvas.Pen {
	return c.pen
}

// Cursor returns the cursor state after the last Process.
func (c *Controller) Cursor() Cursor {
	return c.cursor
}

// Layer returns the stroke layer for rendering.
func (c *Controller) Layer() *canvas.Layer {
	return c.layer
}

func (c *Controller) pinched(h *detector.HandLandmarks) bool {
	dx, dy := h.PinchGap()
	return dx < c.config.PinchTolerance && dy < c.config.PinchTolerance
}

func (c *Controller) reset() {
	c.cursor = Cursor{Mode: ModeNone}
	c.smoothed = false
}

func (c *Controller) dropAnchor() {
	c.cursor.Anchored = false
	if c.cursor.Mode == ModeDraw {
		c.cursor.Mode = ModeHover
	}
}

func (c *Controller) smooth(p image.Point) image.Point {
	if c.config.Smoothing == 0 {
		return p
	}
	x, y := float64(p.X), float64(p.Y)
	if c.smoothed {
		a := c.config.Smoothing
		x = a*c.smoothX + (1-a)*x
		y = a*c.smoothY + (1-a)*y
	}
	c.smoothX, c.smoothY = x, y
	c.smoothed = true
	return image.Pt(int(x+0.5), int(y+0.5))
}
