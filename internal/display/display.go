// Package display shows composed frames and turns key presses into actions.
package display

import (
	"sync"

	"gocv.io/x/gocv"
)

// ActionKind identifies a keyboard command.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionClear
	ActionToggleDrawing
	ActionQuit
	ActionColor
	ActionThicker
	ActionThinner
)

// Action is a decoded key press. Color is the palette index for ActionColor.
type Action struct {
	Kind  ActionKind
	Color int
}

const keyEsc = 27

// ActionForKey maps a key code from WaitKey to an action.
func ActionForKey(key int) Action {
	if key < 0 {
		return Action{}
	}
	switch key & 0xff {
	case 'c', 'C':
		return Action{Kind: ActionClear}
	case 'd', 'D':
		return Action{Kind: ActionToggleDrawing}
	case 'q', 'Q', keyEsc:
		return Action{Kind: ActionQuit}
	case '1', '2', '3', '4':
		return Action{Kind: ActionColor, Color: key&0xff - '1'}
	case '+', '=':
		return Action{Kind: ActionThicker}
	case '-', '_':
		return Action{Kind: ActionThinner}
	}
	return Action{}
}

// Display presents frames to the user.
type Display interface {
	Show(img *gocv.Mat)
	// PollKey waits briefly for input and returns the decoded action.
	PollKey() Action
	// SetStatus shows a short status line, e.g. in the window title.
	SetStatus(status string)
	IsOpen() bool
	Close() error
}

// Window is a Display backed by an OpenCV highgui window. The native window
// is created by the first Show, so nothing appears on screen until a frame
// is ready. All methods must be called from the main goroutine.
type Window struct {
	name   string
	status string
	window *gocv.Window
	closed bool
}

// NewWindow returns a window titled name. It is not opened yet.
func NewWindow(name string) *Window {
	return &Window{name: name}
}

// Show draws img into the window, opening it if needed.
func (w *Window) Show(img *gocv.Mat) {
	if img == nil || img.Empty() || w.closed {
		return
	}
	if w.window == nil {
		w.window = gocv.NewWindow(w.name)
		if w.status != "" {
			w.window.SetWindowTitle(w.title())
		}
	}
	w.window.IMShow(*img)
}

// PollKey pumps the window's event loop for 1ms.
func (w *Window) PollKey() Action {
	if w.window == nil {
		return Action{}
	}
	return ActionForKey(w.window.WaitKey(1))
}

// SetStatus appends status to the window title.
func (w *Window) SetStatus(status string) {
	w.status = status
	if w.window != nil {
		w.window.SetWindowTitle(w.title())
	}
}

// IsOpen reports false once the user closed the window or Close was called.
func (w *Window) IsOpen() bool {
	if w.closed {
		return false
	}
	if w.window == nil {
		return true
	}
	return w.window.IsOpen()
}

// Opened reports whether the native window has been created.
func (w *Window) Opened() bool {
	return w.window != nil
}

// Close destroys the window.
func (w *Window) Close() error {
	w.closed = true
	if w.window == nil {
		return nil
	}
	err := w.window.Close()
	w.window = nil
	return err
}

func (w *Window) title() string {
	return w.name + " | " + w.status
}

// Headless is a Display that shows nothing. Actions queued with Press are
// returned by PollKey one at a time.
type Headless struct {
	mu     sync.Mutex
	shown  int
	status string
	keys   []Action
	closed bool
}

// NewHeadless creates a headless display.
func NewHeadless() *Headless {
	return &Headless{}
}

// Show counts the frame.
func (h *Headless) Show(img *gocv.Mat) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown++
}

// Press queues actions for PollKey.
func (h *Headless) Press(actions ...Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys = append(h.keys, actions...)
}

// PollKey returns the next queued action.
func (h *Headless) PollKey() Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.keys) == 0 {
		return Action{}
	}
	a := h.keys[0]
	h.keys = h.keys[1:]
	return a
}

// SetStatus records status.
func (h *Headless) SetStatus(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

// Status returns the last status set.
func (h *Headless) Status() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Shown returns how many frames were shown.
func (h *Headless) Shown() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shown
}

// IsOpen reports true until Close.
func (h *Headless) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// Close marks the display closed.
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
