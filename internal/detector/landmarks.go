// Package detector provides hand landmark detection for the drawing board.
package detector

import (
	"image"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a landmark position. X and Y are normalized to the frame
// (0..1, origin top-left); Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pixel maps the normalized point onto a frame of the given size.
func (p Point3D) Pixel(size image.Point) image.Point {
	return image.Point{
		X: int(math.Round(p.X * float64(size.X))),
		Y: int(math.Round(p.Y * float64(size.Y))),
	}
}

// Midpoint returns the point halfway between p and q.
func (p Point3D) Midpoint(q Point3D) Point3D {
	return Point3D{
		X: (p.X + q.X) / 2,
		Y: (p.Y + q.Y) / 2,
		Z: (p.Z + q.Z) / 2,
	}
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// IndexTip returns the index fingertip landmark.
func (h *HandLandmarks) IndexTip() Point3D {
	return h.Points[IndexTip]
}

// ThumbTip returns the thumb tip landmark.
func (h *HandLandmarks) ThumbTip() Point3D {
	return h.Points[ThumbTip]
}

// PinchGap returns the per-axis distance between index fingertip and thumb tip
// in normalized coordinates.
func (h *HandLandmarks) PinchGap() (dx, dy float64) {
	i, t := h.IndexTip(), h.ThumbTip()
	return math.Abs(i.X - t.X), math.Abs(i.Y - t.Y)
}

// Detection is the result of looking for a hand in one frame.
// Found is false when no hand was detected; Hand is then the zero value.
type Detection struct {
	Found bool
	Hand  HandLandmarks
}

// None is a Detection with no hand.
func None() Detection {
	return Detection{}
}

// Found wraps a detected hand.
func Found(h HandLandmarks) Detection {
	return Detection{Found: true, Hand: h}
}

// Primary picks the hand used for drawing out of a detector result.
// The detector is asked for a single hand, so this is the first one.
func Primary(hands []HandLandmarks) Detection {
	if len(hands) == 0 {
		return None()
	}
	return Found(hands[0])
}
