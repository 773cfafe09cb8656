// Package sink delivers annotated frames to their consumers: preview windows,
// virtual cameras and encoders.
package sink

import (
	"errors"
	"fmt"
	"image"
	"io"

	"go.uber.org/multierr"
)

// ErrFrameSize is returned when a frame does not match the size the sink was opened with.
var ErrFrameSize = errors.New("frame size does not match sink")

// Sink consumes annotated frames.
type Sink interface {
	Write(frame *image.RGBA) error
	Close() error
}

// Multi fans frames out to several sinks. A failing sink does not stop the others.
type Multi []Sink

func (m Multi) Write(frame *image.RGBA) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Write(frame))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// Raw writes packed RGBA bytes to w, one frame after another.
type Raw struct {
	w             io.WriteCloser
	width, height int
	buf           []byte
}

// NewRaw wraps w for frames of exactly width x height.
func NewRaw(w io.WriteCloser, width, height int) *Raw {
	return &Raw{w: w, width: width, height: height}
}

func (r *Raw) Write(frame *image.RGBA) error {
	b := frame.Bounds()
	if b.Dx() != r.width || b.Dy() != r.height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSize, b.Dx(), b.Dy(), r.width, r.height)
	}
	var err error
	r.buf, err = Pack(r.buf, frame)
	if err != nil {
		return err
	}
	_, err = r.w.Write(r.buf)
	return err
}

func (r *Raw) Close() error {
	return r.w.Close()
}

// Pack returns frame's pixels without row padding, reusing dst when it is large enough.
func Pack(dst []byte, frame *image.RGBA) ([]byte, error) {
	b := frame.Bounds()
	rowLen := b.Dx() * 4
	size := rowLen * b.Dy()
	if size == 0 {
		return dst[:0], fmt.Errorf("%w: empty frame", ErrFrameSize)
	}
	start := frame.PixOffset(b.Min.X, b.Min.Y)
	if frame.Stride == rowLen {
		return frame.Pix[start : start+size], nil
	}
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]
	for y := 0; y < b.Dy(); y++ {
		off := start + y*frame.Stride
		copy(dst[y*rowLen:(y+1)*rowLen], frame.Pix[off:off+rowLen])
	}
	return dst, nil
}
