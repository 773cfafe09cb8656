package overlay

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Emotions is the closed category set reported by the FER and DeepFace backends,
// in the order the tally chart lists them before any counts arrive.
var Emotions = []string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}

// Scores maps a category to a confidence in [0,1].
type Scores map[string]float64

// Clone returns an independent copy.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// RankedItem is one row of a bar chart.
type RankedItem struct {
	Category string
	Score    float64
}

// Rank sorts scores descending. Equal scores order by category name so the
// output is deterministic regardless of map iteration.
func Rank(s Scores) []RankedItem {
	items := make([]RankedItem, 0, len(s))
	for k, v := range s {
		items = append(items, RankedItem{Category: k, Score: v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Category < items[j].Category
	})
	return items
}

// Dominant returns the argmax of s. ok is false when s is empty.
func Dominant(s Scores) (category string, score float64, ok bool) {
	ranked := Rank(s)
	if len(ranked) == 0 {
		return "", 0, false
	}
	return ranked[0].Category, ranked[0].Score, true
}

// ScoreScale says how a backend expresses confidences.
type ScoreScale int

const (
	// ScaleAuto treats a mapping as percentages when any value exceeds 1.
	ScaleAuto ScoreScale = iota
	// ScaleUnit is the FER convention: independent probabilities in [0,1].
	ScaleUnit
	// ScalePercent is the DeepFace convention: values summing to 100.
	ScalePercent
)

func (s ScoreScale) String() string {
	switch s {
	case ScaleUnit:
		return "unit"
	case ScalePercent:
		return "percent"
	default:
		return "auto"
	}
}

// ParseScoreScale accepts "auto", "unit" or "percent".
func ParseScoreScale(v string) (ScoreScale, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "auto":
		return ScaleAuto, nil
	case "unit":
		return ScaleUnit, nil
	case "percent":
		return ScalePercent, nil
	}
	return ScaleAuto, fmt.Errorf("invalid score scale '%s'. Must be one of: auto, unit, percent", v)
}

// Normalize converts a raw detector mapping to canonical [0,1] scores.
// NaN and infinite values are dropped; everything else is clamped.
func Normalize(raw map[string]float64, scale ScoreScale) Scores {
	out := make(Scores, len(raw))
	divisor := 1.0
	switch scale {
	case ScalePercent:
		divisor = 100
	case ScaleAuto:
		for _, v := range raw {
			if !math.IsNaN(v) && !math.IsInf(v, 0) && v > 1 {
				divisor = 100
				break
			}
		}
	}
	for k, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = lo.Clamp(v/divisor, 0, 1)
	}
	return out
}
