// Package metrics exposes the board's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tick outcomes.
const (
	TickProcessed   = "processed"
	TickNoFrame     = "no_frame"
	TickDetectError = "detect_error"
	TickComposeFail = "compose_error"
)

var modes = []string{"none", "hover", "draw"}

// Metrics groups the counters updated by the tick loop and the preview server.
type Metrics struct {
	registry *prometheus.Registry

	ticks          *prometheus.CounterVec
	detectDuration prometheus.Histogram
	segments       prometheus.Counter
	strokes        prometheus.Counter
	clears         prometheus.Counter
	captureErrors  prometheus.Counter
	mode           *prometheus.GaugeVec
	drawing        prometheus.Gauge
	streamClients  prometheus.Gauge
	cursorClients  prometheus.Gauge
}

// New creates the instruments on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airboard_ticks_total",
				Help: "Tick loop iterations by outcome",
			},
			[]string{"result"},
		),
		detectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "airboard_detect_duration_seconds",
			Help:    "Duration of hand landmark detection",
			Buckets: []float64{.005, .01, .02, .035, .05, .075, .1, .2, .5},
		}),
		segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airboard_segments_total",
			Help: "Line segments appended to the stroke layer",
		}),
		strokes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airboard_strokes_total",
			Help: "Strokes started",
		}),
		clears: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airboard_clears_total",
			Help: "Board clears",
		}),
		captureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airboard_capture_errors_total",
			Help: "Camera reads that returned no frame",
		}),
		mode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "airboard_cursor_mode",
				Help: "1 for the current cursor mode, 0 otherwise",
			},
			[]string{"mode"},
		),
		drawing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airboard_drawing_enabled",
			Help: "1 while drawing is enabled",
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airboard_stream_clients",
			Help: "Connected MJPEG preview clients",
		}),
		cursorClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airboard_cursor_clients",
			Help: "Connected cursor WebSocket clients",
		}),
	}

	m.registry.MustRegister(
		m.ticks, m.detectDuration, m.segments, m.strokes, m.clears, m.captureErrors,
		m.mode, m.drawing, m.streamClients, m.cursorClients,
	)
	m.SetMode("none")
	return m
}

// Registry returns the registry to serve.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterSlot exports frame handoff totals read from stats on every scrape.
func (m *Metrics) RegisterSlot(stats func() (published, dropped uint64)) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "airboard_frames_published_total",
			Help: "Frames handed from capture to the tick loop",
		}, func() float64 {
			p, _ := stats()
			return float64(p)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "airboard_frames_dropped_total",
			Help: "Frames replaced before the tick loop took them",
		}, func() float64 {
			_, d := stats()
			return float64(d)
		}),
	)
}

// Tick counts one loop iteration with the given outcome.
func (m *Metrics) Tick(result string) {
	m.ticks.WithLabelValues(result).Inc()
}

// ObserveDetect records one detection duration.
func (m *Metrics) ObserveDetect(d time.Duration) {
	m.detectDuration.Observe(d.Seconds())
}

// Segment counts an appended segment.
func (m *Metrics) Segment() { m.segments.Inc() }

// CaptureError counts a failed camera read.
func (m *Metrics) CaptureError() { m.captureErrors.Inc() }

// Stroke counts a started stroke.
func (m *Metrics) Stroke() { m.strokes.Inc() }

// Clear counts a board clear.
func (m *Metrics) Clear() { m.clears.Inc() }

// SetMode marks mode as the current cursor mode.
func (m *Metrics) SetMode(mode string) {
	for _, name := range modes {
		v := 0.0
		if name == mode {
			v = 1
		}
		m.mode.WithLabelValues(name).Set(v)
	}
}

// SetDrawing records whether drawing is enabled.
func (m *Metrics) SetDrawing(enabled bool) {
	if enabled {
		m.drawing.Set(1)
	} else {
		m.drawing.Set(0)
	}
}

// StreamClients adjusts the MJPEG client gauge by delta.
func (m *Metrics) StreamClients(delta int) { m.streamClients.Add(float64(delta)) }

// CursorClients adjusts the cursor WebSocket client gauge by delta.
func (m *Metrics) CursorClients(delta int) { m.cursorClients.Add(float64(delta)) }
