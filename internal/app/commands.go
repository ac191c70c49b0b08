package app

import (
	"github.com/ayusman/airboard/internal/canvas"
	"github.com/ayusman/airboard/internal/display"
)

type commandKind int

const (
	cmdClear commandKind = iota
	cmdSetDrawing
	cmdToggleDrawing
	cmdSetPen
	cmdPalette
	cmdThickness
	cmdQuit
)

// command is a board mutation requested from outside the tick loop.
type command struct {
	kind    commandKind
	enabled bool
	pen     canvas.Pen
	index   int
	delta   int
}

// Clear queues a board clear.
func (a *App) Clear() error {
	return a.submit(command{kind: cmdClear})
}

// SetDrawing queues enabling or disabling drawing.
func (a *App) SetDrawing(enabled bool) error {
	return a.submit(command{kind: cmdSetDrawing, enabled: enabled})
}

// ToggleDrawing queues flipping the drawing state.
func (a *App) ToggleDrawing() error {
	return a.submit(command{kind: cmdToggleDrawing})
}

// SetPen queues a pen change. Invalid pens are ignored by the loop.
func (a *App) SetPen(p canvas.Pen) error {
	return a.submit(command{kind: cmdSetPen, pen: p})
}

// SelectColor queues switching to palette color i.
func (a *App) SelectColor(i int) error {
	return a.submit(command{kind: cmdPalette, index: i})
}

// SetThickness queues a pen thickness change keeping the current color.
func (a *App) SetThickness(px int) error {
	return a.submit(command{kind: cmdSetPen, pen: canvas.Pen{Thickness: px}, index: -1})
}

// Quit asks the tick loop to stop.
func (a *App) Quit() error {
	return a.submit(command{kind: cmdQuit})
}

func (a *App) submit(c command) error {
	select {
	case a.commands <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

// drainCommands applies every queued command. Called only from the loop.
func (a *App) drainCommands() {
	for {
		select {
		case c := <-a.commands:
			a.apply(c)
		default:
			return
		}
	}
}

func (a *App) apply(c command) {
	changed := true

	switch c.kind {
	case cmdClear:
		a.controller.Clear()
		a.session.Clears++
		a.metric.Clear()
		a.metric.SetMode("none")
		a.logger.Debug("board cleared")
	case cmdSetDrawing:
		a.controller.SetDrawing(c.enabled)
	case cmdToggleDrawing:
		a.controller.ToggleDrawing()
	case cmdSetPen:
		pen := c.pen
		if c.index < 0 {
			pen.Color = a.controller.Pen().Color
		}
		changed = a.controller.SetPen(pen)
	case cmdPalette:
		if c.index < 0 || c.index >= len(canvas.Palette) {
			return
		}
		pen := a.controller.Pen()
		pen.Color = canvas.Palette[c.index]
		a.controller.SetPen(pen)
	case cmdThickness:
		pen := a.controller.Pen()
		pen.Thickness = clamp(pen.Thickness+c.delta, canvas.MinThickness, canvas.MaxThickness)
		a.controller.SetPen(pen)
	case cmdQuit:
		a.quit = true
		return
	}

	if !changed {
		return
	}
	a.metric.SetDrawing(a.controller.Drawing())
	a.publishState()
	a.setStatus()
}

// handleAction applies a key press from the display.
func (a *App) handleAction(act display.Action) {
	switch act.Kind {
	case display.ActionClear:
		a.apply(command{kind: cmdClear})
	case display.ActionToggleDrawing:
		a.apply(command{kind: cmdToggleDrawing})
	case display.ActionQuit:
		a.apply(command{kind: cmdQuit})
	case display.ActionColor:
		a.apply(command{kind: cmdPalette, index: act.Color})
	case display.ActionThicker:
		a.apply(command{kind: cmdThickness, delta: ThicknessStep})
	case display.ActionThinner:
		a.apply(command{kind: cmdThickness, delta: -ThicknessStep})
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
