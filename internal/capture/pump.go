package capture

import (
	"context"
	"log/slog"
	"time"
)

// Pump timing defaults.
const (
	// IdleFPS is the capture rate once the scene has been still for IdleAfter.
	IdleFPS = 10
	// IdleAfter is how long without motion before dropping to IdleFPS.
	IdleAfter = 2 * time.Second
)

// Pump reads frames from a Camera and publishes them into a Slot.
//
// It starts at the camera's configured rate and falls back to IdleFPS while
// the motion detector reports a still scene, switching back as soon as
// anything moves.
type Pump struct {
	camera    Camera
	slot      *Slot
	motion    *MotionDetector
	logger    *slog.Logger
	activeFPS int
	onError   func(error)
}

// NewPump creates a pump. motion may be nil to always capture at the active rate.
func NewPump(camera Camera, slot *Slot, motion *MotionDetector, logger *slog.Logger) *Pump {
	return &Pump{
		camera:    camera,
		slot:      slot,
		motion:    motion,
		logger:    logger,
		activeFPS: camera.FPS(),
	}
}

// OnError registers a callback for frame read failures.
func (p *Pump) OnError(fn func(error)) {
	p.onError = fn
}

// Run captures until ctx is done.
func (p *Pump) Run(ctx context.Context) {
	active := true
	lastMotion := time.Now()

	ticker := time.NewTicker(interval(p.activeFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := p.camera.ReadFrame()
		if err != nil {
			p.logger.Debug("frame read failed", "err", err)
			if p.onError != nil {
				p.onError(err)
			}
			continue
		}

		if p.motion != nil {
			moved, changed := p.motion.Detect(frame)
			switch {
			case moved:
				lastMotion = time.Now()
				if !active {
					active = true
					p.camera.SetFPS(p.activeFPS)
					ticker.Reset(interval(p.activeFPS))
					p.logger.Debug("capture active", "change_pct", changed)
				}
			case active && time.Since(lastMotion) > IdleAfter && p.activeFPS > IdleFPS:
				active = false
				p.camera.SetFPS(IdleFPS)
				ticker.Reset(interval(IdleFPS))
				p.logger.Debug("capture idle")
			}
		}

		p.slot.Publish(frame)
	}
}

func interval(fps int) time.Duration {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
