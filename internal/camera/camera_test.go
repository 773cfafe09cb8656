package camera

import (
	"image"
	"image/color"
	"testing"
)

func TestIsQuitKey(t *testing.T) {
	tests := map[int]bool{
		27:  true,
		'q': true,
		'Q': true,
		-1:  false,
		'a': false,
		32:  false,
	}
	for key, want := range tests {
		if got := IsQuitKey(key); got != want {
			t.Errorf("IsQuitKey(%d) = %v, want %v", key, got, want)
		}
	}
}

func TestToRGBA(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if toRGBA(rgba) != rgba {
		t.Error("RGBA input should be returned as-is")
	}

	gray := image.NewGray(image.Rect(5, 5, 7, 7))
	gray.SetGray(5, 5, color.Gray{Y: 200})
	got := toRGBA(gray)
	if got.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Errorf("Expected bounds rebased to origin, got %v", got.Bounds())
	}
	if c := got.RGBAAt(0, 0); c.R != 200 || c.A != 255 {
		t.Errorf("Converted pixel = %v, want gray 200", c)
	}
}
