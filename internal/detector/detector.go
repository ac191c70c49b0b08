package detector

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrServiceNotFound is returned when the MediaPipe service script cannot be located.
	ErrServiceNotFound = errors.New("mediapipe_service.py not found")
	// ErrServiceUnavailable is returned while a crashed service waits to be relaunched.
	ErrServiceUnavailable = errors.New("mediapipe service unavailable")
)

// Service timing defaults.
const (
	DefaultTimeout      = time.Second
	DefaultStartTimeout = 15 * time.Second

	closeGrace        = 2 * time.Second
	restartBackoff    = 500 * time.Millisecond
	maxRestartBackoff = 15 * time.Second
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int `yaml:"max_hands"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`

	// ScriptPath overrides the search for mediapipe_service.py.
	ScriptPath string `yaml:"script"`

	// Python overrides the interpreter used to run the service.
	Python string `yaml:"python"`

	// Timeout bounds the wait for one frame's reply.
	Timeout time.Duration `yaml:"timeout"`

	// StartTimeout bounds the wait for the service's ready line.
	StartTimeout time.Duration `yaml:"start_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		Timeout:         DefaultTimeout,
		StartTimeout:    DefaultStartTimeout,
	}
}
