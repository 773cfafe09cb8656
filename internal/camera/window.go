package camera

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Window is an OpenCV preview window. It satisfies sink.Sink.
type Window struct {
	win     *gocv.Window
	shown   bool
	stopped bool
}

func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Write shows frame and polls the keyboard once.
func (w *Window) Write(frame *image.RGBA) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("failed to convert frame for display: %w", err)
	}
	defer mat.Close()

	w.win.IMShow(mat)
	w.shown = true
	if IsQuitKey(w.win.WaitKey(1)) {
		w.stopped = true
	}
	return nil
}

// StopRequested reports whether ESC or q was pressed, or the window was closed.
func (w *Window) StopRequested() bool {
	if w.stopped {
		return true
	}
	return w.shown && w.win.GetWindowProperty(gocv.WindowPropertyVisible) < 1
}

func (w *Window) Close() error {
	return w.win.Close()
}

// IsQuitKey reports whether key is ESC or q.
func IsQuitKey(key int) bool {
	return key == 27 || key == 'q' || key == 'Q'
}
