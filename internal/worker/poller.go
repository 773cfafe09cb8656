package worker

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/andresmejia3/emojicam/internal/types"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Result is the most recent detector output. Seq increases with every
// completed inference, so callers can tell fresh results from reused ones.
type Result struct {
	Seq        uint64
	Detections []types.Detection
}

// Poller runs a Detector off the render loop. Frames are offered at most once
// per interval; while an inference is running, further offers are dropped and
// the render loop keeps drawing the last result.
type Poller struct {
	det      Detector
	interval time.Duration
	frames   chan *image.RGBA
	spare    chan *image.RGBA // a processed frame whose buffer Offer may reuse
	latest   atomic.Pointer[Result]
	err      atomic.Error
	last     time.Time
	logger   *zap.SugaredLogger
}

func NewPoller(det Detector, interval time.Duration, logger *zap.SugaredLogger) *Poller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &Poller{
		det:      det,
		interval: interval,
		frames:   make(chan *image.RGBA, 1),
		spare:    make(chan *image.RGBA, 1),
		logger:   logger,
	}
	p.latest.Store(&Result{})
	return p
}

// SetInterval changes the polling interval for subsequent offers.
func (p *Poller) SetInterval(d time.Duration) { p.interval = d }

// Offer hands frame to the detector if the interval has elapsed and the
// detector is idle. frame is copied, so the caller may keep drawing on it.
// Offer must be called from a single goroutine.
func (p *Poller) Offer(now time.Time, frame *image.RGBA) bool {
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return false
	}
	// Offer is the only sender, so a full channel stays full until Run drains it.
	if len(p.frames) == cap(p.frames) {
		return false
	}
	cp := p.scratch(len(frame.Pix))
	copy(cp.Pix, frame.Pix)
	cp.Stride, cp.Rect = frame.Stride, frame.Rect
	select {
	case p.frames <- cp:
		p.last = now
		return true
	default:
		return false
	}
}

// scratch returns a frame with an n-byte buffer, reusing the last processed one when it fits.
func (p *Poller) scratch(n int) *image.RGBA {
	select {
	case img := <-p.spare:
		if cap(img.Pix) >= n {
			img.Pix = img.Pix[:n]
			return img
		}
	default:
	}
	return &image.RGBA{Pix: make([]byte, n)}
}

// recycle hands a frame the detector is done with back to Offer.
func (p *Poller) recycle(img *image.RGBA) {
	select {
	case p.spare <- img:
	default:
	}
}

// Latest returns the newest completed result.
func (p *Poller) Latest() Result {
	return *p.latest.Load()
}

// Err returns the error that stopped Run, if any.
func (p *Poller) Err() error {
	return p.err.Load()
}

// Run processes offered frames until ctx is done or the detector fails.
// Timeouts are logged and skipped; any other error stops the poller.
func (p *Poller) Run(ctx context.Context) {
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-p.frames:
			dets, err := p.det.Detect(ctx, frame)
			p.recycle(frame)
			if errors.Is(err, ErrTimeout) {
				p.logger.Warnw("inference timed out, reusing previous result", "error", err)
				continue
			}
			if err != nil {
				if ctx.Err() == nil {
					p.err.Store(err)
				}
				return
			}
			seq++
			p.latest.Store(&Result{Seq: seq, Detections: dets})
		}
	}
}
