package overlay

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Composite alpha-blends fg onto canvas with its top-left corner at origin,
// using fg's own alpha channel. Images without alpha are treated as opaque.
// scale resizes fg first. Only the part of fg that overlaps canvas is touched;
// a nil fg, a non-positive scale or a fully off-canvas origin leave canvas unchanged.
func Composite(canvas *image.RGBA, fg image.Image, origin image.Point, scale float64) *image.RGBA {
	if fg == nil {
		return canvas
	}
	src := Resize(fg, scale)
	if src == nil {
		return canvas
	}
	return blend(canvas, src, src, origin)
}

// CompositeMask is Composite with transparency taken from mask instead of fg.
// mask must match fg's size; a nil mask means fully opaque.
func CompositeMask(canvas *image.RGBA, fg image.Image, mask *image.Alpha, origin image.Point, scale float64) *image.RGBA {
	if fg == nil {
		return canvas
	}
	if mask == nil {
		src := Resize(opaque(fg), scale)
		if src == nil {
			return canvas
		}
		return blend(canvas, src, src, origin)
	}
	if mask.Bounds().Size() != fg.Bounds().Size() {
		return canvas
	}
	src := Resize(fg, scale)
	alpha := Resize(mask, scale)
	if src == nil || alpha == nil {
		return canvas
	}
	return blend(canvas, src, alpha, origin)
}

// Resize scales img uniformly. Downscaling averages source areas (box filter),
// upscaling interpolates linearly. It returns nil when the result has no pixels.
func Resize(img image.Image, scale float64) *image.NRGBA {
	if img == nil || scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil
	}
	b := img.Bounds()
	if scale == 1 {
		if b.Empty() {
			return nil
		}
		return imaging.Clone(img)
	}
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 || h < 1 {
		return nil
	}
	filter := imaging.Linear
	if scale < 1 {
		filter = imaging.Box
	}
	return imaging.Resize(img, w, h, filter)
}

// opaque copies img with every alpha value forced to 255.
func opaque(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}

// blend writes a*src + (1-a)*canvas over the intersection, reading a from alpha's A channel.
func blend(canvas *image.RGBA, src, alpha *image.NRGBA, origin image.Point) *image.RGBA {
	size := src.Bounds().Size()
	dst := image.Rectangle{Min: origin, Max: origin.Add(size)}.Intersect(canvas.Bounds())
	if dst.Empty() {
		return canvas
	}

	cMinX, cMinY := canvas.Rect.Min.X, canvas.Rect.Min.Y
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		sy := y - origin.Y
		cRow := (y-cMinY)*canvas.Stride + (dst.Min.X-cMinX)*4
		sRow := sy * src.Stride
		aRow := sy * alpha.Stride
		for x := dst.Min.X; x < dst.Max.X; x++ {
			sx := x - origin.X
			a := float64(alpha.Pix[aRow+sx*4+3]) / 255
			cOff := cRow + (x-dst.Min.X)*4
			sOff := sRow + sx*4
			for ch := 0; ch < 3; ch++ {
				canvas.Pix[cOff+ch] = BlendChannel(a, src.Pix[sOff+ch], canvas.Pix[cOff+ch])
			}
		}
	}
	return canvas
}

// BlendChannel returns a*f + (1-a)*c rounded to the nearest byte.
func BlendChannel(a float64, f, c uint8) uint8 {
	v := a*float64(f) + (1-a)*float64(c)
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}
