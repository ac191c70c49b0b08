package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// Background selects what the strokes are drawn over.
type Background string

const (
	// BackgroundBoard is a flat whiteboard the size of the camera frame.
	BackgroundBoard Background = "board"
	// BackgroundCamera draws over the live camera frame.
	BackgroundCamera Background = "camera"
)

// Theme selects the whiteboard shade.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

const (
	lightBoard = 255
	darkBoard  = 31
)

// MarkerColor is the fill of the hover indicator.
var MarkerColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}

// ErrNoSnapshot is returned before the first frame has been composed.
var ErrNoSnapshot = errors.New("no frame composed yet")

// Options controls composition.
type Options struct {
	Background Background
	Theme      Theme
	// Mirror flips the output horizontally for a selfie view.
	Mirror bool
}

// Marker is the transient hover indicator. It is never part of the Layer.
type Marker struct {
	At      image.Point
	Radius  int
	Visible bool
}

// Compositor renders the stroke layer and marker into display frames and
// keeps the latest result for preview consumers.
type Compositor struct {
	mu   sync.Mutex
	opts Options
	last gocv.Mat
}

// NewCompositor creates a compositor.
func NewCompositor(opts Options) *Compositor {
	if opts.Background == "" {
		opts.Background = BackgroundBoard
	}
	if opts.Theme == "" {
		opts.Theme = ThemeLight
	}
	return &Compositor{opts: opts, last: gocv.NewMat()}
}

// SetOptions replaces the composition options.
func (c *Compositor) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// Options returns the current composition options.
func (c *Compositor) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Compose draws layer and marker over a background sized like frame.
// The caller owns the returned Mat.
func (c *Compositor) Compose(frame *gocv.Mat, layer *Layer, marker Marker) (gocv.Mat, error) {
	if frame == nil || frame.Empty() {
		return gocv.NewMat(), fmt.Errorf("compose: empty frame")
	}

	c.mu.Lock()
	opts := c.opts
	c.mu.Unlock()

	var out gocv.Mat
	switch opts.Background {
	case BackgroundCamera:
		out = frame.Clone()
	default:
		shade := float64(lightBoard)
		if opts.Theme == ThemeDark {
			shade = darkBoard
		}
		out = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(shade, shade, shade, 0), frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC3)
	}

	if layer != nil {
		for _, seg := range layer.segments {
			gocv.Line(&out, seg.From, seg.To, seg.Color, seg.Thickness)
		}
	}

	if marker.Visible {
		radius := marker.Radius
		if radius < 1 {
			radius = 1
		}
		gocv.Circle(&out, marker.At, radius, MarkerColor, -1)
	}

	if opts.Mirror {
		gocv.Flip(out, &out, 1)
	}

	c.mu.Lock()
	out.CopyTo(&c.last)
	c.mu.Unlock()

	return out, nil
}

// SnapshotJPEG encodes the most recently composed frame.
func (c *Compositor) SnapshotJPEG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last.Empty() {
		return nil, ErrNoSnapshot
	}

	buf, err := gocv.IMEncode(".jpg", c.last)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// Close releases the retained snapshot.
func (c *Compositor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Close()
}
