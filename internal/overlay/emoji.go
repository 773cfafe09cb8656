package overlay

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

type emojiKey struct {
	category string
	size     int
}

// EmojiSet loads and caches emoji images per category and output size.
// A missing or unreadable file means "no emoji" for that category; it is
// reported once and never retried.
type EmojiSet struct {
	paths   map[string]string
	sources map[string]image.Image
	scaled  map[emojiKey]*image.NRGBA
	missing map[string]bool
	logger  *zap.SugaredLogger
}

// NewEmojiSet wraps a category to path mapping. logger may be nil.
func NewEmojiSet(paths map[string]string, logger *zap.SugaredLogger) *EmojiSet {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cp := make(map[string]string, len(paths))
	for k, v := range paths {
		cp[k] = v
	}
	return &EmojiSet{
		paths:   cp,
		sources: make(map[string]image.Image),
		scaled:  make(map[emojiKey]*image.NRGBA),
		missing: make(map[string]bool),
		logger:  logger,
	}
}

// Get returns the emoji for category as a square of resolution*scale pixels,
// whatever the size of the file on disk. A size below one pixel yields no emoji.
func (e *EmojiSet) Get(category string, resolution int, scale float64) (*image.NRGBA, bool) {
	if e == nil || e.missing[category] {
		return nil, false
	}
	if resolution <= 0 || scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, false
	}
	key := emojiKey{category: category, size: int(float64(resolution) * scale)}
	if key.size < 1 {
		return nil, false
	}
	if img, ok := e.scaled[key]; ok {
		return img, true
	}

	src, ok := e.source(category)
	if !ok {
		return nil, false
	}
	img := fitSquare(src, key.size)
	e.scaled[key] = img
	return img, true
}

func (e *EmojiSet) source(category string) (image.Image, bool) {
	if src, ok := e.sources[category]; ok {
		return src, true
	}
	path, ok := e.paths[category]
	if !ok || path == "" {
		e.missing[category] = true
		return nil, false
	}
	src, err := imaging.Open(path)
	if err != nil || src.Bounds().Empty() {
		e.logger.Debugw("emoji unavailable", "category", category, "path", path, "error", err)
		e.missing[category] = true
		return nil, false
	}
	e.sources[category] = src
	return src, true
}

// fitSquare resizes img to size x size, averaging when it shrinks.
func fitSquare(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return imaging.Clone(img)
	}
	filter := imaging.Linear
	if size < b.Dx() || size < b.Dy() {
		filter = imaging.Box
	}
	return imaging.Resize(img, size, size, filter)
}
