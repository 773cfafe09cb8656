package overlay

import (
	"image"
	"image/color"
	"math"

	"github.com/samber/lo"
	"golang.org/x/image/draw"
)

// MaxBars caps how many rows a chart draws.
const MaxBars = 7

var (
	barBackground = color.RGBA{R: 50, G: 50, B: 50, A: 255}
	barText       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// BarStyle sizes one chart row.
type BarStyle struct {
	Width     int
	Height    int
	Spacing   int
	FontScale float64
}

// Extent is the vertical distance covered by rows bars, including spacing.
func (s BarStyle) Extent(rows int) int {
	return rows * (s.Height + s.Spacing)
}

// BarChart draws ranked horizontal bars.
type BarChart struct {
	Style   BarStyle
	Palette Palette
	Text    *TextRenderer
	// Label formats the text drawn over a row. Nil draws no text.
	Label func(RankedItem) string
}

// Render draws up to MaxBars rows stepping from origin in dir and returns canvas.
// Rows outside the canvas are clipped.
func (b *BarChart) Render(canvas *image.RGBA, origin image.Point, dir Direction, items []RankedItem) *image.RGBA {
	if len(items) > MaxBars {
		items = items[:MaxBars]
	}
	step := int(dir) * (b.Style.Height + b.Style.Spacing)
	for j, item := range items {
		y := origin.Y + j*step
		// image.Rect canonicalizes, so upward rows span y-Height..y.
		row := image.Rect(origin.X, y, origin.X+b.Style.Width, y+b.Style.Height*int(dir))
		fillRect(canvas, row, barBackground)

		length := BarLength(item.Score, b.Style.Width)
		if length > 0 {
			fill := image.Rect(row.Min.X, row.Min.Y, row.Min.X+length, row.Max.Y)
			fillRect(canvas, fill, b.Palette.Color(item.Category))
		}

		if b.Label != nil && b.Text != nil {
			baseline := image.Pt(row.Min.X+5, row.Min.Y+int(float64(b.Style.Height)*0.75))
			b.Text.Draw(canvas, b.Label(item), baseline, barText, b.Style.FontScale)
		}
	}
	return canvas
}

// BarLength is the filled length for score on a bar of width pixels.
func BarLength(score float64, width int) int {
	if math.IsNaN(score) {
		return 0
	}
	return int(math.Round(lo.Clamp(score, 0, 1) * float64(width)))
}

func fillRect(canvas *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(canvas.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(canvas, r, image.NewUniform(c), image.Point{}, draw.Src)
}
