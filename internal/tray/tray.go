// Package tray provides the system tray menu for the drawing board.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/airboard/internal/canvas"
)

// Thicknesses offered in the Thickness submenu.
var Thicknesses = []int{2, 5, 10, 20, 40}

var colorNames = []string{"Red", "Green", "Blue", "Black"}

// Tray represents the system tray menu.
type Tray struct {
	onToggle    func(enabled bool)
	onClear     func()
	onColor     func(index int)
	onThickness func(px int)
	onPreview   func()
	onQuit      func()
	quit        func()
	drawing     bool
	previewURL  string
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
}

// New creates a Tray. previewURL is empty when no preview server runs.
func New(drawing bool, previewURL string) *Tray {
	return &Tray{
		drawing:    drawing,
		previewURL: previewURL,
		quit:       systray.Quit,
	}
}

// OnToggle sets the callback for the drawing toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnClear sets the callback for Clear.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnColor sets the callback for a palette pick.
func (t *Tray) OnColor(fn func(index int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onColor = fn
}

// OnThickness sets the callback for a thickness pick.
func (t *Tray) OnThickness(fn func(px int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onThickness = fn
}

// OnPreview sets the callback for Open Preview.
func (t *Tray) OnPreview(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPreview = fn
}

// OnQuit sets the callback for Quit.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Register installs the tray without taking over the main thread; the
// display's event loop keeps running there.
func (t *Tray) Register() {
	systray.Register(t.onReady, t.onExit)
}

// Close removes the tray icon.
func (t *Tray) Close() {
	t.quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Airboard")
	systray.SetTooltip("Airboard air drawing")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.drawing), "Toggle drawing")
	t.mu.Unlock()
	menuClear := systray.AddMenuItem("Clear", "Clear the board")
	systray.AddSeparator()

	menuColor := systray.AddMenuItem("Color", "Pen color")
	for i, name := range colorNames {
		i := i
		item := menuColor.AddSubMenuItem(fmt.Sprintf("%s  %s", name, canvas.FormatColor(canvas.Palette[i])), "")
		go t.forward(item.ClickedCh, func() { t.handleColor(i) })
	}

	menuThickness := systray.AddMenuItem("Thickness", "Pen thickness")
	for _, px := range Thicknesses {
		px := px
		item := menuThickness.AddSubMenuItem(fmt.Sprintf("%d px", px), "")
		go t.forward(item.ClickedCh, func() { t.handleThickness(px) })
	}
	systray.AddSeparator()

	menuPreview := systray.AddMenuItem("Open Preview...", "Open the live preview in a browser")
	if t.previewURL == "" {
		menuPreview.Disable()
	}
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Airboard")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuClear.ClickedCh:
				t.handleClear()
			case <-menuPreview.ClickedCh:
				t.handlePreview()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) forward(ch <-chan struct{}, fn func()) {
	for range ch {
		fn()
	}
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.drawing = !t.drawing
	enabled := t.drawing
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleClear() {
	t.mu.RLock()
	callback := t.onClear
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleColor(i int) {
	t.mu.RLock()
	callback := t.onColor
	t.mu.RUnlock()

	if callback != nil {
		callback(i)
	}
}

func (t *Tray) handleThickness(px int) {
	t.mu.RLock()
	callback := t.onThickness
	t.mu.RUnlock()

	if callback != nil {
		callback(px)
	}
}

func (t *Tray) handlePreview() {
	t.mu.RLock()
	callback := t.onPreview
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	t.quit()
}

// SetDrawing reflects a drawing state change made elsewhere, e.g. by key.
func (t *Tray) SetDrawing(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.drawing = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// Drawing returns the state shown in the menu.
func (t *Tray) Drawing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.drawing
}

// PreviewURL returns the preview address shown by Open Preview.
func (t *Tray) PreviewURL() string {
	return t.previewURL
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Drawing: ON"
	}
	return "○ Drawing: OFF"
}
