package overlay

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"
)

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}

func TestCompositeBlendFormula(t *testing.T) {
	canvasColor := color.RGBA{R: 100, G: 50, B: 200, A: 255}
	for _, alpha := range []uint8{0, 1, 64, 128, 200, 255} {
		canvas := solidRGBA(8, 8, canvasColor)
		fg := solidNRGBA(4, 4, color.NRGBA{R: 200, G: 100, B: 0, A: alpha})

		Composite(canvas, fg, image.Pt(2, 2), 1)

		a := float64(alpha) / 255
		got := canvas.RGBAAt(3, 3)
		want := []struct {
			got  uint8
			f, c uint8
		}{
			{got.R, 200, 100},
			{got.G, 100, 50},
			{got.B, 0, 200},
		}
		for ch, w := range want {
			exact := a*float64(w.f) + (1-a)*float64(w.c)
			if math.Abs(float64(w.got)-exact) > 0.5 {
				t.Errorf("alpha=%d channel %d: got %d, want %.2f", alpha, ch, w.got, exact)
			}
			if w.got != BlendChannel(a, w.f, w.c) {
				t.Errorf("alpha=%d channel %d: not reproducible, got %d want %d", alpha, ch, w.got, BlendChannel(a, w.f, w.c))
			}
		}
		if outside := canvas.RGBAAt(0, 0); outside != canvasColor {
			t.Errorf("alpha=%d: pixel outside the stamp changed to %v", alpha, outside)
		}
	}
}

func TestCompositeMask(t *testing.T) {
	canvas := solidRGBA(4, 4, color.RGBA{A: 255})
	fg := solidRGBA(2, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	mask := image.NewAlpha(image.Rect(0, 0, 2, 2))
	mask.SetAlpha(0, 0, color.Alpha{A: 255})
	mask.SetAlpha(1, 0, color.Alpha{A: 0})
	mask.SetAlpha(0, 1, color.Alpha{A: 51}) // 0.2

	CompositeMask(canvas, fg, mask, image.Pt(0, 0), 1)

	if got := canvas.RGBAAt(0, 0).R; got != 255 {
		t.Errorf("full alpha pixel = %d, want 255", got)
	}
	if got := canvas.RGBAAt(1, 0).R; got != 0 {
		t.Errorf("zero alpha pixel = %d, want 0", got)
	}
	if got := canvas.RGBAAt(0, 1).R; got != 51 {
		t.Errorf("0.2 alpha pixel = %d, want 51", got)
	}
}

func TestCompositeMaskNilIsOpaque(t *testing.T) {
	canvas := solidRGBA(4, 4, color.RGBA{A: 255})
	// Fully transparent colour data must still be stamped when no mask is given.
	fg := solidNRGBA(2, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 0})

	CompositeMask(canvas, fg, nil, image.Pt(1, 1), 1)

	got := canvas.RGBAAt(1, 1)
	if got.R != 10 || got.G != 20 || got.B != 30 {
		t.Errorf("pixel = %v, want opaque stamp (10,20,30)", got)
	}
}

func TestCompositeMaskSizeMismatch(t *testing.T) {
	canvas := solidRGBA(4, 4, color.RGBA{A: 255})
	before := cloneRGBA(canvas)
	fg := solidRGBA(2, 2, color.RGBA{R: 255, A: 255})
	mask := image.NewAlpha(image.Rect(0, 0, 3, 3))

	CompositeMask(canvas, fg, mask, image.Pt(0, 0), 1)

	if !bytes.Equal(canvas.Pix, before.Pix) {
		t.Error("mismatched mask should leave the canvas untouched")
	}
}

func TestCompositeOpaqueSource(t *testing.T) {
	canvas := solidRGBA(4, 4, color.RGBA{A: 255})
	fg := solidRGBA(2, 2, color.RGBA{R: 9, G: 8, B: 7, A: 255})

	Composite(canvas, fg, image.Pt(0, 0), 1)

	if got := canvas.RGBAAt(1, 1); got.R != 9 || got.G != 8 || got.B != 7 {
		t.Errorf("opaque source should replace the pixel, got %v", got)
	}
}

func TestCompositeClipping(t *testing.T) {
	tests := []struct {
		name   string
		origin image.Point
	}{
		{"Far top-left", image.Pt(-20, -20)},
		{"Right of canvas", image.Pt(50, 5)},
		{"Below canvas", image.Pt(5, 50)},
		{"Touching right edge", image.Pt(50, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canvas := solidRGBA(50, 50, color.RGBA{R: 1, G: 2, B: 3, A: 255})
			before := cloneRGBA(canvas)
			fg := solidNRGBA(10, 10, color.NRGBA{R: 255, A: 255})

			Composite(canvas, fg, tt.origin, 1)

			if !bytes.Equal(canvas.Pix, before.Pix) {
				t.Error("fully off-canvas composite changed pixels")
			}
		})
	}
}

func TestCompositePartialOverlap(t *testing.T) {
	bg := color.RGBA{A: 255}
	canvas := solidRGBA(20, 20, bg)
	fg := solidNRGBA(10, 10, color.NRGBA{R: 255, A: 255})

	Composite(canvas, fg, image.Pt(-5, -5), 1)

	if got := canvas.RGBAAt(4, 4).R; got != 255 {
		t.Errorf("overlapping pixel = %d, want 255", got)
	}
	if got := canvas.RGBAAt(5, 5); got != bg {
		t.Errorf("pixel past the clipped stamp changed to %v", got)
	}
}

func TestCompositeScale(t *testing.T) {
	bg := color.RGBA{A: 255}
	canvas := solidRGBA(20, 20, bg)
	fg := solidNRGBA(10, 10, color.NRGBA{G: 255, A: 255})

	Composite(canvas, fg, image.Pt(0, 0), 0.5)

	if got := canvas.RGBAAt(4, 4).G; got != 255 {
		t.Errorf("pixel inside the 5x5 stamp = %d, want 255", got)
	}
	if got := canvas.RGBAAt(5, 5); got != bg {
		t.Errorf("pixel outside the 5x5 stamp changed to %v", got)
	}
}

func TestCompositeNoOps(t *testing.T) {
	canvas := solidRGBA(10, 10, color.RGBA{R: 7, A: 255})
	before := cloneRGBA(canvas)
	fg := solidNRGBA(4, 4, color.NRGBA{B: 255, A: 255})

	Composite(canvas, nil, image.Pt(0, 0), 1)
	Composite(canvas, fg, image.Pt(0, 0), 0)
	Composite(canvas, fg, image.Pt(0, 0), -1)
	Composite(canvas, fg, image.Pt(0, 0), 0.01) // rounds to zero pixels

	if !bytes.Equal(canvas.Pix, before.Pix) {
		t.Error("no-op composites changed the canvas")
	}
}

func TestResize(t *testing.T) {
	src := solidNRGBA(10, 4, color.NRGBA{R: 1, A: 255})
	tests := []struct {
		scale float64
		w, h  int
		isNil bool
	}{
		{1, 10, 4, false},
		{0.5, 5, 2, false},
		{2, 20, 8, false},
		{0.1, 1, 0, true},
		{0, 0, 0, true},
	}
	for _, tt := range tests {
		got := Resize(src, tt.scale)
		if tt.isNil {
			if got != nil {
				t.Errorf("Resize(%v) = %v, want nil", tt.scale, got.Bounds())
			}
			continue
		}
		if got == nil || got.Bounds().Dx() != tt.w || got.Bounds().Dy() != tt.h {
			t.Errorf("Resize(%v) bounds wrong, want %dx%d", tt.scale, tt.w, tt.h)
		}
	}
}
