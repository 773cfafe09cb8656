package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// pointsPerScale converts an OpenCV-style font scale to a point size at 72 DPI.
// Scale 1.0 produces glyphs roughly 22px tall, like Hershey Simplex.
const pointsPerScale = 30

var (
	statusColor  = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	statusOrigin = image.Pt(10, 30)
)

// TextRenderer draws labels onto frames. Faces are cached per size.
type TextRenderer struct {
	font  *truetype.Font
	faces map[float64]font.Face
}

// NewTextRenderer parses the bundled Go Regular font.
func NewTextRenderer() (*TextRenderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &TextRenderer{font: f, faces: make(map[float64]font.Face)}, nil
}

func (t *TextRenderer) face(scale float64) font.Face {
	if f, ok := t.faces[scale]; ok {
		return f
	}
	f := truetype.NewFace(t.font, &truetype.Options{Size: scale * pointsPerScale})
	t.faces[scale] = f
	return f
}

// Draw writes s with its baseline starting at p, in canvas coordinates.
func (t *TextRenderer) Draw(canvas *image.RGBA, s string, p image.Point, c color.Color, scale float64) {
	if s == "" || scale <= 0 {
		return
	}
	dc := gg.NewContextForRGBA(originView(canvas))
	p = p.Sub(canvas.Rect.Min)
	dc.SetFontFace(t.face(scale))
	dc.SetColor(c)
	dc.DrawString(s, float64(p.X), float64(p.Y))
}

// DrawStatus writes the FPS counter in the top-left corner.
func (t *TextRenderer) DrawStatus(canvas *image.RGBA, fps float64) {
	t.Draw(canvas, fmt.Sprintf("FPS: %.1f", fps), canvas.Rect.Min.Add(statusOrigin), statusColor, 0.7)
}

// DrawBox outlines r, given in canvas coordinates and clipped to the canvas.
func DrawBox(canvas *image.RGBA, r image.Rectangle, c color.Color, width float64) {
	r = r.Sub(canvas.Rect.Min)
	dc := gg.NewContextForRGBA(originView(canvas))
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

// originView aliases canvas with its origin moved to (0,0). gg rasterizes
// within (0,0)-Size but paints at absolute coordinates, so sub-images with a
// non-zero Min must be drawn through a view.
func originView(canvas *image.RGBA) *image.RGBA {
	b := canvas.Rect
	if b.Min == (image.Point{}) || b.Empty() {
		return canvas
	}
	return &image.RGBA{
		Pix:    canvas.Pix[canvas.PixOffset(b.Min.X, b.Min.Y):],
		Stride: canvas.Stride,
		Rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
	}
}
