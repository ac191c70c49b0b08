package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ayusman/airboard/internal/capture"
	"github.com/ayusman/airboard/internal/detector"
	"github.com/ayusman/airboard/internal/metrics"
)

// Run captures in the background and ticks on the calling goroutine until
// the user quits, the window is closed or ctx is done. With a gocv window
// it must be called from the main goroutine.
func (a *App) Run(ctx context.Context) error {
	if !a.started {
		return errors.New("app: Run called before Start")
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.pump.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	ticker := time.NewTicker(tickInterval(a.config.Camera.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("tick loop stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}

		switch err := a.Tick(); {
		case err == nil, errors.Is(err, ErrNoFrame):
		case errors.Is(err, detector.ErrServiceUnavailable):
			a.logger.Debug("tick skipped", "error", err)
		default:
			a.logger.Warn("tick skipped", "error", err)
		}

		a.handleAction(a.disp.PollKey())

		if a.quit {
			a.logger.Info("quit requested")
			return nil
		}
		if !a.disp.IsOpen() {
			a.logger.Info("window closed")
			return nil
		}
	}
}

// Tick runs one iteration: apply queued commands, take the latest frame,
// detect, update the board, compose and present. A missing frame or a
// detector error skips the rest of the tick and leaves the display as is.
func (a *App) Tick() error {
	a.drainCommands()
	if a.quit {
		return nil
	}

	frame := a.slot.TryTake()
	if frame == nil {
		a.metric.Tick(metrics.TickNoFrame)
		return ErrNoFrame
	}
	defer frame.Close()

	start := time.Now()
	hands, err := a.det.Detect(frame)
	a.metric.ObserveDetect(time.Since(start))
	if err != nil {
		a.metric.Tick(metrics.TickDetectError)
		return fmt.Errorf("detect: %w", err)
	}

	strokes := a.controller.Layer().Strokes()
	res := a.controller.Process(detector.Primary(hands), image.Pt(frame.Cols(), frame.Rows()))
	if a.controller.Layer().Strokes() > strokes {
		a.session.Strokes++
		a.metric.Stroke()
	}
	if res.Segment != nil {
		a.session.Segments++
		a.metric.Segment()
	}
	a.metric.SetMode(res.Mode.String())

	composed, err := a.compositor.Compose(frame, a.controller.Layer(), res.Marker)
	if err != nil {
		composed.Close()
		a.metric.Tick(metrics.TickComposeFail)
		return fmt.Errorf("compose: %w", err)
	}
	a.disp.Show(&composed)
	composed.Close()

	a.session.Frames++
	a.metric.Tick(metrics.TickProcessed)
	a.publishState()
	a.notify(Update{Cursor: a.controller.Cursor(), Drawing: a.controller.Drawing(), Segment: res.Segment})

	return nil
}

func (a *App) notify(u Update) {
	a.mu.RLock()
	observers := a.observers
	a.mu.RUnlock()

	for _, fn := range observers {
		fn(u)
	}
}

func tickInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
