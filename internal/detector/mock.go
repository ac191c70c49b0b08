package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	queue [][]HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect once the queue is drained.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// Enqueue adds per-call results. Each Detect pops one entry; a nil entry
// means no hand in that frame.
func (m *MockDetector) Enqueue(results ...[]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, results...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// PinchLandmarks returns a right hand whose index fingertip and thumb tip
// touch at the normalized position (x, y).
func PinchLandmarks(x, y float64) HandLandmarks {
	h := openHand(x, y)
	h.Points[IndexTip] = Point3D{X: x, Y: y, Z: 0.0}
	h.Points[ThumbTip] = Point3D{X: x, Y: y, Z: 0.0}
	return h
}

// HoverLandmarks returns a right hand with index fingertip and thumb tip
// spread apart, centered on the normalized position (x, y).
func HoverLandmarks(x, y float64) HandLandmarks {
	h := openHand(x, y)
	h.Points[IndexTip] = Point3D{X: x - 0.1, Y: y, Z: 0.0}
	h.Points[ThumbTip] = Point3D{X: x + 0.1, Y: y, Z: 0.0}
	return h
}

// openHand lays out an open palm below the fingertip position (x, y).
// Only the tips matter to the drawing board; the rest keeps the shape plausible.
func openHand(x, y float64) HandLandmarks {
	h := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	offsets := [NumLandmarks][2]float64{
		Wrist:     {0.0, 0.45},
		ThumbCMC:  {0.05, 0.40},
		ThumbMCP:  {0.09, 0.33},
		ThumbIP:   {0.10, 0.25},
		ThumbTip:  {0.10, 0.18},
		IndexMCP:  {0.05, 0.30},
		IndexPIP:  {0.04, 0.18},
		IndexDIP:  {0.02, 0.09},
		IndexTip:  {0.0, 0.0},
		MiddleMCP: {0.0, 0.31},
		MiddlePIP: {0.0, 0.17},
		MiddleDIP: {0.0, 0.07},
		MiddleTip: {0.0, -0.02},
		RingMCP:   {-0.05, 0.32},
		RingPIP:   {-0.06, 0.20},
		RingDIP:   {-0.07, 0.11},
		RingTip:   {-0.07, 0.03},
		PinkyMCP:  {-0.10, 0.35},
		PinkyPIP:  {-0.12, 0.27},
		PinkyDIP:  {-0.13, 0.20},
		PinkyTip:  {-0.14, 0.14},
	}

	for i, o := range offsets {
		h.Points[i] = Point3D{X: x + o[0], Y: y + o[1]}
	}
	return h
}
