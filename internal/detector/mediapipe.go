package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// The service prints {"ready":true} once its model is loaded. Frames are then
// written as a 4 byte big-endian length followed by JPEG bytes; the service
// answers with one JSON line per frame.
type MediaPipeDetector struct {
	config Config
	script string
	python string
	logger *slog.Logger

	mu       sync.Mutex
	svc      *service
	failures int
	retryAt  time.Time
}

// service is one running interpreter and the goroutine reading its replies.
type service struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan reply
	stop   chan struct{}
	exited chan struct{}
}

type reply struct {
	line string
	err  error
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// It fails with ErrServiceNotFound when the service script cannot be found.
// The subprocess is not launched until Start or the first Detect.
func NewMediaPipeDetector(config Config, logger *slog.Logger) (*MediaPipeDetector, error) {
	script := config.ScriptPath
	if script == "" {
		script = findMediaPipeScript()
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceNotFound, err)
	}

	python := config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	if config.MaxHands <= 0 {
		config.MaxHands = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = DefaultStartTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
		python: python,
		logger: logger,
	}, nil
}

// Start launches the MediaPipe service and waits for it to report that the
// model is loaded. It fails if the service exits, answers with an error or
// stays silent for longer than StartTimeout.
func (d *MediaPipeDetector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launch()
}

// Detect analyzes a frame and returns detected hand landmarks.
//
// After the service dies it is relaunched at most once per backoff period;
// calls in between fail with ErrServiceUnavailable.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.svc == nil {
		if time.Now().Before(d.retryAt) {
			return nil, ErrServiceUnavailable
		}
		if err := d.launch(); err != nil {
			d.fail()
			return nil, err
		}
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.svc.stdin.Write(length); err != nil {
		d.markBroken()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.svc.stdin.Write(data); err != nil {
		d.markBroken()
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.svc.read(d.config.Timeout)
	if err != nil {
		d.markBroken()
		return nil, fmt.Errorf("read response: %w", err)
	}

	d.failures = 0
	return parseResponse([]byte(line))
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.svc == nil {
		return nil
	}
	svc := d.svc
	d.svc = nil
	return svc.shutdown(closeGrace)
}

func (d *MediaPipeDetector) launch() error {
	if d.svc != nil {
		return nil
	}

	cmd := exec.Command(d.python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Model loading errors from the service end up here.
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	svc := &service{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan reply),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go svc.readLoop(bufio.NewReader(stdout))

	line, err := svc.read(d.config.StartTimeout)
	if err == nil {
		err = parseReady([]byte(line))
	}
	if err != nil {
		svc.shutdown(0)
		return fmt.Errorf("mediapipe service not ready: %w", err)
	}

	d.svc = svc
	d.logger.Info("mediapipe service started", "python", d.python, "script", d.script, "pid", cmd.Process.Pid)
	return nil
}

// markBroken kills the process after an I/O failure or timeout and schedules
// the next launch.
func (d *MediaPipeDetector) markBroken() {
	svc := d.svc
	d.svc = nil
	if err := svc.shutdown(0); err != nil {
		d.logger.Warn("mediapipe service exited", "err", err)
	}
	d.fail()
}

func (d *MediaPipeDetector) fail() {
	d.failures++
	delay := restartBackoff << min(d.failures-1, 5)
	if delay > maxRestartBackoff {
		delay = maxRestartBackoff
	}
	d.retryAt = time.Now().Add(delay)
}

func (s *service) readLoop(r *bufio.Reader) {
	defer close(s.exited)
	for {
		line, err := r.ReadString('\n')
		select {
		case s.lines <- reply{line: line, err: err}:
		case <-s.stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *service) read(timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-s.lines:
		return r.line, r.err
	case <-s.exited:
		return "", io.EOF
	case <-timer.C:
		return "", fmt.Errorf("no reply within %s", timeout)
	}
}

// shutdown closes stdin and gives the process grace to exit before killing it.
func (s *service) shutdown(grace time.Duration) error {
	s.stdin.Close()
	close(s.stop)

	if grace > 0 {
		select {
		case <-s.exited:
		case <-time.After(grace):
			s.cmd.Process.Kill()
		}
	} else {
		s.cmd.Process.Kill()
	}
	<-s.exited

	return s.cmd.Wait()
}

func parseReady(line []byte) error {
	var msg struct {
		Ready bool   `json:"ready"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(line, &msg); err != nil {
		return fmt.Errorf("parse handshake: %w", err)
	}
	if msg.Error != "" {
		return fmt.Errorf("mediapipe service: %s", msg.Error)
	}
	if !msg.Ready {
		return fmt.Errorf("unexpected handshake %q", line)
	}
	return nil
}

func parseResponse(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error,omitempty"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe service: %s", response.Error)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		if len(h.Points) != NumLandmarks {
			return nil, fmt.Errorf("parse response: hand %d has %d landmarks, want %d", i, len(h.Points), NumLandmarks)
		}
		result[i] = h.toHandLandmarks()
	}
	return result, nil
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".airboard/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".airboard/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	copy(lm.Points[:], h.Points)

	return lm
}
