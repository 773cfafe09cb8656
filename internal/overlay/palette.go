package overlay

import (
	"hash/fnv"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette maps categories to display colours. It is never mutated after construction.
type Palette struct {
	colors map[string]color.RGBA
}

var emotionHex = map[string]string{
	"angry":    "#ff0000",
	"disgust":  "#808000",
	"fear":     "#800080",
	"happy":    "#00ff00",
	"sad":      "#0000ff",
	"surprise": "#ffff00",
	"neutral":  "#505050",
}

// EmotionPalette is the shared colour table for the seven emotion categories.
var EmotionPalette = mustPalette(emotionHex)

// NewPalette builds a palette from hex colours such as "#ff8800".
func NewPalette(hex map[string]string) (Palette, error) {
	p := Palette{colors: make(map[string]color.RGBA, len(hex))}
	for name, h := range hex {
		c, err := colorful.Hex(h)
		if err != nil {
			return Palette{}, err
		}
		p.colors[name] = toRGBA(c)
	}
	return p, nil
}

func mustPalette(hex map[string]string) Palette {
	p, err := NewPalette(hex)
	if err != nil {
		panic(err)
	}
	return p
}

// Color returns the colour for category. Categories outside the table, such as
// object-detector class names, get a stable hue derived from the name.
func (p Palette) Color(category string) color.RGBA {
	if c, ok := p.colors[category]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(category))
	hue := float64(h.Sum32()%360) + 0.5
	return toRGBA(colorful.Hsv(hue, 0.65, 0.95))
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
