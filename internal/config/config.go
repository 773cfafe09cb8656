// Package config loads the emojicam settings file.
//
// The file is optional. Every key has a default, unknown keys are ignored, and
// a missing file yields Defaults(). Parsing accepts JSON5 so hand-edited files
// may carry comments and trailing commas.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// DefaultPath is the settings file read when no --config flag is given.
const DefaultPath = "config.json"

// Overlay is a snapshot of the settings file. Treat values as read-only;
// Watcher swaps whole snapshots rather than mutating fields.
type Overlay struct {
	// Overlay element toggles
	EmojiToggle             bool `json:"emoji_toggle"`
	EmotionLikelihoodToggle bool `json:"emotion_likelihood_toggle"`
	EmotionLabelToggle      bool `json:"emotion_label_toggle"`
	LocalHistoryToggle      bool `json:"local_history_toggle"`
	BoundingBoxToggle       bool `json:"bounding_box_toggle"`
	OverlayLocation         int  `json:"overlay_location"`

	// Layout
	BarWidth        int     `json:"bar_width"`
	BarHeight       int     `json:"bar_height"`
	BarSpacing      int     `json:"bar_spacing"`
	FontScale       float64 `json:"font_scale"`
	LabelFontScale  float64 `json:"label_font_scale"`
	EmojiScale      float64 `json:"emoji_scale"`
	EmojiResolution int     `json:"emoji_resolution"`

	// Runtime
	EmotionPollingRate float64           `json:"emotion_polling_rate"` // seconds between inference calls
	FrameWidth         int               `json:"frame_width"`
	FrameHeight        int               `json:"frame_height"`
	FPS                int               `json:"fps"`
	MirrorToggle       bool              `json:"mirror_toggle"`
	FPSToggle          bool              `json:"fps_toggle"`
	LoggingToggle      bool              `json:"logging_toggle"`
	EmojiPaths         map[string]string `json:"emoji_paths"`
}

// Defaults returns the settings used for any key the file does not set.
func Defaults() Overlay {
	return Overlay{
		EmojiToggle:             true,
		EmotionLikelihoodToggle: true,
		EmotionLabelToggle:      true,
		LocalHistoryToggle:      true,
		BoundingBoxToggle:       false,
		OverlayLocation:         1, // top-left

		BarWidth:        125,
		BarHeight:       25,
		BarSpacing:      5,
		FontScale:       0.5,
		LabelFontScale:  0.7,
		EmojiScale:      0.4,
		EmojiResolution: 160,

		EmotionPollingRate: 0.2,
		FrameWidth:         1920,
		FrameHeight:        1080,
		FPS:                30,
		MirrorToggle:       false,
		FPSToggle:          false,
		LoggingToggle:      true,
		EmojiPaths:         DefaultEmojiPaths(),
	}
}

// DefaultEmojiPaths maps each emotion to its bundled asset.
func DefaultEmojiPaths() map[string]string {
	return map[string]string{
		"angry":    "emojis/angry.png",
		"disgust":  "emojis/disgust.png",
		"fear":     "emojis/fear.png",
		"happy":    "emojis/happy.png",
		"sad":      "emojis/sad.png",
		"surprise": "emojis/surprised.png",
		"neutral":  "emojis/neutral.png",
	}
}

// Load reads path and merges it onto Defaults(). A missing file is not an error.
func Load(path string) (Overlay, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes data onto Defaults().
func Parse(data []byte) (Overlay, error) {
	cfg := Defaults()
	// Decoding into a fresh map keeps a partial emoji_paths from wiping the defaults.
	cfg.EmojiPaths = nil
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("failed to parse config: %w", err)
	}
	paths := DefaultEmojiPaths()
	for k, v := range cfg.EmojiPaths {
		paths[k] = v
	}
	cfg.EmojiPaths = paths
	cfg.sanitize()
	return cfg, nil
}

// sanitize replaces values that would break layout math with their defaults.
func (c *Overlay) sanitize() {
	d := Defaults()
	if c.BarWidth <= 0 {
		c.BarWidth = d.BarWidth
	}
	if c.BarHeight <= 0 {
		c.BarHeight = d.BarHeight
	}
	if c.BarSpacing < 0 {
		c.BarSpacing = d.BarSpacing
	}
	if c.FontScale <= 0 {
		c.FontScale = d.FontScale
	}
	if c.LabelFontScale <= 0 {
		c.LabelFontScale = d.LabelFontScale
	}
	if c.EmojiScale <= 0 {
		c.EmojiScale = d.EmojiScale
	}
	if c.EmojiResolution <= 0 {
		c.EmojiResolution = d.EmojiResolution
	}
	if c.EmotionPollingRate < 0 {
		c.EmotionPollingRate = d.EmotionPollingRate
	}
	if c.FPS <= 0 {
		c.FPS = d.FPS
	}
	if c.FrameWidth <= 0 {
		c.FrameWidth = d.FrameWidth
	}
	if c.FrameHeight <= 0 {
		c.FrameHeight = d.FrameHeight
	}
}

// EmojiSize is the edge length reserved for the emoji in the overlay stack.
func (c Overlay) EmojiSize() int {
	return int(float64(c.EmojiResolution) * c.EmojiScale)
}
