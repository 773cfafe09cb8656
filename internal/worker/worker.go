package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/emojicam/internal/overlay"
	"github.com/andresmejia3/emojicam/internal/types"
	"github.com/andresmejia3/emojicam/internal/utils" // Using the SafeCommand wrapper
	"github.com/disintegration/imaging"
	"go.uber.org/multierr"
)

// ErrTimeout is returned when the worker does not answer within ReadTimeout.
var ErrTimeout = errors.New("worker timed out")

// Detector turns one frame into per-face category scores.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]types.Detection, error)
	Close() error
}

// Backends lists the detector backends python/worker.py understands, plus the built-in random one.
var Backends = []string{"fer", "deepface", "yolo", "random"}

// ScoreScaleFor maps a backend to the convention its scores use.
func ScoreScaleFor(backend string) overlay.ScoreScale {
	switch backend {
	case "deepface":
		return overlay.ScalePercent
	case "fer", "yolo", "random":
		return overlay.ScaleUnit
	}
	return overlay.ScaleAuto
}

// Config controls how a worker process is started.
type Config struct {
	Backend     string
	Script      string
	ReadTimeout time.Duration
	JPEGQuality int
}

// New starts the detector for cfg.Backend.
func New(ctx context.Context, id int, cfg Config) (Detector, error) {
	if cfg.Backend == "random" {
		return NewRandomDetector(time.Now().UnixNano() + int64(id)), nil
	}
	return NewPythonWorker(ctx, id, cfg)
}

type PythonWorker struct {
	ID          int
	Cmd         *utils.SafeCommand
	Stdin       io.WriteCloser
	DataPipe    io.ReadCloser
	ReadTimeout time.Duration
	JPEGQuality int

	readerOnce sync.Once
	replies    chan reply
	done       chan struct{}
	stale      int // replies still owed to requests that timed out
	readErr    error
}

func NewPythonWorker(ctx context.Context, id int, cfg Config) (*PythonWorker, error) {
	script := cfg.Script
	if script == "" {
		script = "python/worker.py"
	}
	py := utils.NewSafeCommand(ctx, "python3", "-u", script, "--backend", cfg.Backend)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &PythonWorker{
		ID:          id,
		Cmd:         py,
		Stdin:       stdin,
		DataPipe:    r,
		ReadTimeout: cfg.ReadTimeout,
		JPEGQuality: quality,
	}, nil
}

// Detect JPEG-encodes img and sends it through the worker protocol.
func (w *PythonWorker) Detect(ctx context.Context, img image.Image) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(w.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return w.ProcessFrame(buf.Bytes())
}

// ProcessFrame sends one encoded image and decodes the reply.
//
// Request:  [uint32 len][image bytes] on stdin.
// Response: [uint32 len][status][body] on FD 3. Status 0 carries a JSON array
// of detections, status 1 an error message.
func (w *PythonWorker) ProcessFrame(data []byte) ([]types.Detection, error) {
	if w.readErr != nil {
		return nil, w.readErr
	}
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	body, err := w.readWithTimeout()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("worker %d sent an empty response", w.ID)
	}

	status, payload := body[0], body[1:]
	if status != 0 {
		return nil, fmt.Errorf("python worker error: %s", payload)
	}

	var dets []types.Detection
	if err := json.Unmarshal(payload, &dets); err != nil {
		// Check if it's a Python error object (e.g. {"error": "..."})
		var errorResult types.ErrorResult
		if json.Unmarshal(payload, &errorResult) == nil && errorResult.Error != "" {
			return nil, fmt.Errorf("python worker error: %s", errorResult.Error)
		}
		return nil, fmt.Errorf("worker %d JSON malformed: %w", w.ID, err)
	}
	return dets, nil
}

// reply is one framed response read from FD 3.
type reply struct {
	body []byte
	err  error
}

// startReader launches the single goroutine that owns DataPipe. Responses
// arrive in request order, so a reply to a timed-out request is recognised by
// position and discarded by readWithTimeout.
func (w *PythonWorker) startReader() {
	replies := make(chan reply, 1)
	done := make(chan struct{})
	w.replies, w.done = replies, done
	go func() {
		for {
			body, err := w.readResponse()
			select {
			case replies <- reply{body, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

func (w *PythonWorker) readWithTimeout() ([]byte, error) {
	w.readerOnce.Do(w.startReader)

	var timeout <-chan time.Time
	if w.ReadTimeout > 0 {
		timer := time.NewTimer(w.ReadTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		select {
		case r := <-w.replies:
			if r.err != nil {
				// The reader has exited; keep failing with the same error.
				w.readErr = r.err
				return nil, r.err
			}
			if w.stale > 0 {
				w.stale--
				continue
			}
			return r.body, nil
		case <-timeout:
			// The answer to this request will still arrive; skip it next time.
			w.stale++
			return nil, fmt.Errorf("worker %d: %w after %s", w.ID, ErrTimeout, w.ReadTimeout)
		}
	}
}

func (w *PythonWorker) readResponse() ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// Close shuts stdin so the worker exits, then reaps the process.
func (w *PythonWorker) Close() error {
	if w.done != nil {
		close(w.done)
		w.done = nil
	}
	err := multierr.Combine(w.Stdin.Close(), w.DataPipe.Close())
	if w.Cmd != nil {
		err = multierr.Append(err, w.Cmd.Wait())
	}
	return err
}
