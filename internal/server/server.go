// Package server provides the local preview and control HTTP server for the drawing board.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/airboard/internal/app"
	"github.com/ayusman/airboard/internal/canvas"
	"github.com/ayusman/airboard/internal/metrics"
)

// Controls is the part of the board the HTTP API drives. Mutations are
// queued for the tick loop.
type Controls interface {
	Clear() error
	SetDrawing(enabled bool) error
	SetPen(p canvas.Pen) error
	State() app.State
}

// Frames supplies the latest composed frame.
type Frames interface {
	SnapshotJPEG() ([]byte, error)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Board     Controls
	Frames    Frames
	Cursor    *CursorHub
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// StreamFPS caps the MJPEG rate; 0 uses DefaultStreamFPS.
	StreamFPS int
}

// Server serves the preview page, the MJPEG stream, the cursor feed, the
// control API and metrics.
type Server struct {
	config Config
	router chi.Router
	logger *slog.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/api/health", s.handleHealth)

	if s.config.Board != nil {
		r.Get("/api/state", s.handleState)
		r.Get("/api/pen", s.handleGetPen)
		r.Group(func(r chi.Router) {
			r.Use(requireSameOrigin)
			r.Post("/api/clear", s.handleClear)
			r.Post("/api/drawing", s.handleDrawing)
			r.Put("/api/pen", s.handlePutPen)
		})
	}

	if s.config.Frames != nil {
		r.Handle("/api/stream", NewStreamHandler(s.config.Frames, s.config.StreamFPS, s.config.Metrics))
		r.Get("/api/snapshot.jpg", s.handleSnapshot)
	}

	if s.config.Cursor != nil {
		r.Handle("/api/cursor", s.config.Cursor)
	}

	if s.config.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// sameOrigin reports whether a browser request came from a page served by
// this server. Requests without an Origin header are not from a browser page.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func requireSameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sameOrigin(r) {
			http.Error(w, "cross-origin request refused", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Board != nil {
		response["session"] = s.config.Board.State().SessionID
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := s.config.Board.State()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session":  state.SessionID,
		"drawing":  state.Drawing,
		"pen":      penFromCanvas(state.Pen),
		"cursor":   cursorFromBoard(state.Cursor),
		"segments": state.Segments,
		"strokes":  state.Strokes,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.accepted(w, s.config.Board.Clear())
}

type drawingRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleDrawing(w http.ResponseWriter, r *http.Request) {
	var req drawingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, `Invalid request body: want {"enabled": bool}`, http.StatusBadRequest)
		return
	}
	s.accepted(w, s.config.Board.SetDrawing(*req.Enabled))
}

type penJSON struct {
	Color     string `json:"color"`
	Thickness int    `json:"thickness"`
}

func penFromCanvas(p canvas.Pen) penJSON {
	return penJSON{Color: canvas.FormatColor(p.Color), Thickness: p.Thickness}
}

func (s *Server) handleGetPen(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, penFromCanvas(s.config.Board.State().Pen))
}

func (s *Server) handlePutPen(w http.ResponseWriter, r *http.Request) {
	var req penJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	col, err := canvas.ParseColor(req.Color)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pen := canvas.Pen{Color: col, Thickness: req.Thickness}
	if !pen.Valid() {
		http.Error(w, "thickness out of range", http.StatusBadRequest)
		return
	}

	s.accepted(w, s.config.Board.SetPen(pen))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.config.Frames.SnapshotJPEG()
	if err != nil {
		if errors.Is(err, canvas.ErrNoSnapshot) {
			http.Error(w, "no frame yet", http.StatusServiceUnavailable)
			return
		}
		s.logger.Warn("snapshot failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// accepted reports the outcome of queueing a command.
func (s *Server) accepted(w http.ResponseWriter, err error) {
	if err != nil {
		if errors.Is(err, app.ErrQueueFull) {
			http.Error(w, "board busy, retry", http.StatusServiceUnavailable)
			return
		}
		s.logger.Warn("command failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}
