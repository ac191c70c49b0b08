package capture

import (
	"context"
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrSlotClosed is returned by Take once the slot has been closed.
var ErrSlotClosed = errors.New("frame slot closed")

// Slot hands frames from the capture goroutine to the render loop.
//
// It holds at most one frame. Publishing over a frame nobody took closes the
// old one and counts a drop, so a slow consumer always sees the newest frame
// and memory stays bounded.
type Slot struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *gocv.Mat
	closed bool

	published uint64
	dropped   uint64
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	s := &Slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Publish stores frame, replacing any frame that was not taken yet.
// The slot owns frame afterwards. Publishing to a closed slot closes frame.
func (s *Slot) Publish(frame *gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		frame.Close()
		return
	}

	if s.frame != nil {
		s.frame.Close()
		s.dropped++
	}

	s.frame = frame
	s.published++
	s.cond.Signal()
}

// TryTake returns the pending frame, or nil when there is none.
// The caller owns the returned frame.
func (s *Slot) TryTake() *gocv.Mat {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := s.frame
	s.frame = nil
	return frame
}

// Take blocks until a frame is available, ctx is done or the slot is closed.
func (s *Slot) Take(ctx context.Context) (*gocv.Mat, error) {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.frame == nil && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}

	if s.closed {
		return nil, ErrSlotClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame := s.frame
	s.frame = nil
	return frame, nil
}

// Close releases the pending frame and wakes any waiter. Idempotent.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.frame != nil {
		s.frame.Close()
		s.frame = nil
	}
	s.cond.Broadcast()
}

// Stats returns how many frames were published and how many were
// overwritten before being taken.
func (s *Slot) Stats() (published, dropped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published, s.dropped
}
