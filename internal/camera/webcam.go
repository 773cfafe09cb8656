// Package camera wraps OpenCV capture and preview windows.
package camera

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

// ErrReadFailed means the device returned no frame; the capture loop should stop.
var ErrReadFailed = errors.New("failed to read frame from camera")

// Webcam reads frames from a local capture device.
// It is not safe for concurrent use.
type Webcam struct {
	capture *gocv.VideoCapture
	raw     gocv.Mat
	flipped gocv.Mat
	mirror  bool
}

// OpenWebcam opens device and requests the given frame size and rate.
// The driver may pick a different size; use Size for the real one.
func OpenWebcam(device, width, height int, fps float64, mirror bool) (*Webcam, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %d is not available", device)
	}
	if width > 0 && height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	if fps > 0 {
		capture.Set(gocv.VideoCaptureFPS, fps)
	}
	return &Webcam{
		capture: capture,
		raw:     gocv.NewMat(),
		flipped: gocv.NewMat(),
		mirror:  mirror,
	}, nil
}

// SetMirror toggles the horizontal flip for subsequent reads.
func (w *Webcam) SetMirror(mirror bool) { w.mirror = mirror }

// Size reports the negotiated frame size.
func (w *Webcam) Size() (int, int) {
	return int(w.capture.Get(gocv.VideoCaptureFrameWidth)), int(w.capture.Get(gocv.VideoCaptureFrameHeight))
}

// Read grabs the next frame as RGBA.
func (w *Webcam) Read() (*image.RGBA, error) {
	if ok := w.capture.Read(&w.raw); !ok || w.raw.Empty() {
		return nil, ErrReadFailed
	}
	src := w.raw
	if w.mirror {
		gocv.Flip(w.raw, &w.flipped, 1)
		src = w.flipped
	}
	img, err := src.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return toRGBA(img), nil
}

// Close releases the device and scratch buffers.
func (w *Webcam) Close() error {
	return multierr.Combine(w.capture.Close(), w.raw.Close(), w.flipped.Close())
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
