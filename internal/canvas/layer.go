// Package canvas holds the stroke layer and composes it into display frames.
package canvas

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Pen limits.
const (
	MinThickness     = 2
	MaxThickness     = 100
	DefaultThickness = 10
)

// DefaultColor is the pen color used when nothing is configured.
var DefaultColor = color.RGBA{R: 255, A: 255}

// Palette holds the quick-pick pen colors, in key order.
var Palette = []color.RGBA{
	{R: 255, A: 255},
	{G: 200, A: 255},
	{B: 255, A: 255},
	{A: 255},
}

// Pen is the color and thickness used for new segments.
type Pen struct {
	Color     color.RGBA
	Thickness int
}

// DefaultPen returns a red pen of DefaultThickness.
func DefaultPen() Pen {
	return Pen{Color: DefaultColor, Thickness: DefaultThickness}
}

// Valid reports whether the thickness is within MinThickness..MaxThickness.
func (p Pen) Valid() bool {
	return p.Thickness >= MinThickness && p.Thickness <= MaxThickness
}

// ParseColor parses "#rrggbb" or "rrggbb".
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// FormatColor renders c as "#rrggbb".
func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Segment is one committed line of the drawing.
type Segment struct {
	From      image.Point
	To        image.Point
	Color     color.RGBA
	Thickness int
	// Stroke groups the segments drawn during one continuous pinch.
	Stroke uuid.UUID
}

// Layer accumulates segments. It is only ever appended to or cleared.
type Layer struct {
	segments []Segment
	strokes  int
	current  uuid.UUID
	counted  uuid.UUID
}

// NewLayer returns an empty layer.
func NewLayer() *Layer {
	return &Layer{}
}

// BeginStroke starts a new stroke; following segments share its id. The
// stroke is counted once its first segment is appended.
func (l *Layer) BeginStroke() uuid.UUID {
	l.current = uuid.New()
	return l.current
}

// Append adds a segment from -> to to the current stroke.
func (l *Layer) Append(from, to image.Point, pen Pen) Segment {
	if l.current == uuid.Nil {
		l.BeginStroke()
	}
	seg := Segment{
		From:      from,
		To:        to,
		Color:     pen.Color,
		Thickness: pen.Thickness,
		Stroke:    l.current,
	}
	if l.counted != l.current {
		l.counted = l.current
		l.strokes++
	}
	l.segments = append(l.segments, seg)
	return seg
}

// Clear removes every segment.
func (l *Layer) Clear() {
	l.segments = nil
	l.strokes = 0
	l.current = uuid.Nil
	l.counted = uuid.Nil
}

// Len returns the number of segments.
func (l *Layer) Len() int {
	return len(l.segments)
}

// Strokes returns how many non-empty strokes were drawn since the last Clear.
func (l *Layer) Strokes() int {
	return l.strokes
}

// Segments returns a copy of the segments in drawing order.
func (l *Layer) Segments() []Segment {
	out := make([]Segment, len(l.segments))
	copy(out, l.segments)
	return out
}
