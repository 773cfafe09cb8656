// Package overlay turns per-frame detector output into a stable annotated frame:
// smoothed scores, an emoji for the dominant category, ranked likelihood bars,
// a dominant-category label and a session tally chart.
//
// Everything here runs on the render goroutine. Nothing is locked; callers must
// finish Render for frame N before starting frame N+1.
package overlay

import (
	"fmt"
	"image"
	"maps"
	"math"

	"github.com/andresmejia3/emojicam/internal/config"
	"github.com/andresmejia3/emojicam/internal/types"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is the pipeline state for the most recent frame.
type State int

const (
	// Empty means the frame had no detections and was returned untouched.
	Empty State = iota
	// Rendering means at least one detection was drawn.
	Rendering
)

func (s State) String() string {
	if s == Rendering {
		return "RENDERING"
	}
	return "EMPTY"
}

// SlotResult summarizes what was drawn for one detection.
type SlotResult struct {
	Slot     int
	Dominant string
	Score    float64
	Scores   Scores
}

// Pipeline composes overlays frame by frame. Smoother and tally state carry
// across frames; everything else is derived from the per-frame config snapshot.
type Pipeline struct {
	smoother *Smoother
	tally    *Tally
	slots    SlotIdentity
	palette  Palette
	insets   Insets
	scale    ScoreScale
	text     *TextRenderer
	logger   *zap.SugaredLogger

	emoji      *EmojiSet
	emojiPaths map[string]string
	state      State
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSmoother replaces the default alpha 0.6 smoother.
func WithSmoother(s *Smoother) Option { return func(p *Pipeline) { p.smoother = s } }

// WithSlotIdentity replaces positional slot assignment.
func WithSlotIdentity(s SlotIdentity) Option { return func(p *Pipeline) { p.slots = s } }

// WithScoreScale fixes the detector's score convention instead of guessing.
func WithScoreScale(s ScoreScale) Option { return func(p *Pipeline) { p.scale = s } }

// WithPalette replaces EmotionPalette.
func WithPalette(pal Palette) Option { return func(p *Pipeline) { p.palette = pal } }

// WithInsets replaces DefaultInsets.
func WithInsets(in Insets) Option { return func(p *Pipeline) { p.insets = in } }

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.SugaredLogger) Option { return func(p *Pipeline) { p.logger = l } }

// NewPipeline builds a pipeline that records into tally.
func NewPipeline(tally *Tally, opts ...Option) (*Pipeline, error) {
	text, err := NewTextRenderer()
	if err != nil {
		return nil, err
	}
	if tally == nil {
		tally = NewTally(Emotions...)
	}
	p := &Pipeline{
		smoother: NewSmoother(DefaultAlpha),
		tally:    tally,
		slots:    PositionalSlots{},
		palette:  EmotionPalette,
		insets:   DefaultInsets,
		scale:    ScaleAuto,
		text:     text,
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Tally returns the session tally the pipeline records into.
func (p *Pipeline) Tally() *Tally { return p.tally }

// Smoother returns the per-slot smoothing state.
func (p *Pipeline) Smoother() *Smoother { return p.smoother }

// State reports whether the last call to Render drew anything.
func (p *Pipeline) State() State { return p.state }

// Render annotates frame in place and returns it along with the smoothed result
// for each drawn slot. With no detections the frame and all state are left alone.
func (p *Pipeline) Render(frame *image.RGBA, dets []types.Detection, cfg config.Overlay) (*image.RGBA, []SlotResult) {
	if len(dets) == 0 {
		p.state = Empty
		return frame, nil
	}
	p.state = Rendering
	p.syncEmoji(cfg.EmojiPaths)

	b := frame.Bounds()
	anchor := AnchorFor(Location(cfg.OverlayLocation), b.Dx(), b.Dy(), p.insets)
	anchor.X += b.Min.X
	anchor.Y += b.Min.Y
	style := BarStyle{Width: cfg.BarWidth, Height: cfg.BarHeight, Spacing: cfg.BarSpacing, FontScale: cfg.FontScale}

	slots := p.slots.Assign(dets)
	results := make([]SlotResult, 0, len(dets))
	for i, det := range dets {
		raw := Normalize(det.Scores, p.scale)
		if len(raw) == 0 {
			p.logger.Debugw("skipping detection without usable scores", "index", i)
			continue
		}
		slot := i
		if i < len(slots) {
			slot = slots[i]
		}

		smoothed := p.smoother.Smooth(slot, raw)
		top, score, _ := Dominant(smoothed)
		if i == 0 {
			p.tally.Record(top)
		}
		p.renderSlot(frame, det, smoothed, top, score, anchor, style, cfg)
		results = append(results, SlotResult{Slot: slot, Dominant: top, Score: score, Scores: smoothed})
	}
	return frame, results
}

// DrawStatus overlays the FPS counter.
func (p *Pipeline) DrawStatus(frame *image.RGBA, fps float64) {
	p.text.DrawStatus(frame, fps)
}

func (p *Pipeline) renderSlot(frame *image.RGBA, det types.Detection, smoothed Scores, top string, score float64, anchor Anchor, style BarStyle, cfg config.Overlay) {
	topColor := p.palette.Color(top)
	dir := anchor.Direction()

	if cfg.BoundingBoxToggle {
		if r, ok := det.Rect(); ok {
			DrawBox(frame, r.Add(frame.Rect.Min), topColor, 2)
		}
	}

	ranked := Rank(smoothed)
	if len(ranked) > MaxBars {
		ranked = ranked[:MaxBars]
	}
	stack := PlanStack(anchor, frame.Bounds().Dy(), cfg.EmojiSize(), style, len(ranked))

	if cfg.EmojiToggle {
		if img, ok := p.emoji.Get(top, cfg.EmojiResolution, cfg.EmojiScale); ok {
			Composite(frame, img, stack.Emoji, 1)
		}
	}

	if cfg.EmotionLikelihoodToggle {
		chart := BarChart{Style: style, Palette: p.palette, Text: p.text, Label: likelihoodLabel}
		chart.Render(frame, stack.Bars, dir, ranked)
	}

	if cfg.EmotionLabelToggle {
		label := fmt.Sprintf("%s: %.2f", title(top), score)
		p.text.Draw(frame, label, stack.Label, topColor, cfg.LabelFontScale)
	}

	if cfg.LocalHistoryToggle {
		chart := BarChart{Style: style, Palette: p.palette, Text: p.text, Label: p.tallyLabel}
		chart.Render(frame, stack.Tally, dir, p.tally.Normalized())
	}
}

// syncEmoji rebuilds the emoji cache when the configured paths change.
func (p *Pipeline) syncEmoji(paths map[string]string) {
	if p.emoji != nil && maps.Equal(paths, p.emojiPaths) {
		return
	}
	p.emojiPaths = maps.Clone(paths)
	p.emoji = NewEmojiSet(paths, p.logger)
}

func likelihoodLabel(item RankedItem) string {
	return fmt.Sprintf("%s %d%%", title(item.Category), int(math.Round(item.Score*100)))
}

func (p *Pipeline) tallyLabel(item RankedItem) string {
	return fmt.Sprintf("%s (%d)", title(item.Category), p.tally.Count(item.Category))
}

var titleCaser = cases.Title(language.English)

func title(s string) string {
	return titleCaser.String(s)
}
