package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/airboard/internal/metrics"
)

// DefaultStreamFPS is the MJPEG rate when none is configured.
const DefaultStreamFPS = 15

// StreamHandler serves the composed board as MJPEG.
type StreamHandler struct {
	frames  Frames
	period  time.Duration
	metrics *metrics.Metrics
}

// NewStreamHandler creates a StreamHandler. m may be nil.
func NewStreamHandler(frames Frames, fps int, m *metrics.Metrics) *StreamHandler {
	if fps <= 0 {
		fps = DefaultStreamFPS
	}
	return &StreamHandler{
		frames:  frames,
		period:  time.Second / time.Duration(fps),
		metrics: m,
	}
}

// ServeHTTP streams MJPEG frames until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if h.metrics != nil {
		h.metrics.StreamClients(1)
		defer h.metrics.StreamClients(-1)
	}

	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	for {
		buf, err := h.frames.SnapshotJPEG()
		if err == nil {
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
			if _, err := w.Write(buf); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
