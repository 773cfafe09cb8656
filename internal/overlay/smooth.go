package overlay

import "github.com/andresmejia3/emojicam/internal/types"

// DefaultAlpha weights the newest observation in the moving average.
const DefaultAlpha = 0.6

// SlotIdentity decides which smoothing history each detection continues.
type SlotIdentity interface {
	Assign(dets []types.Detection) []int
}

// PositionalSlots keys history by list index: detection i continues slot i.
// Detector output order is not stable, so two subjects that swap places also
// swap histories. A tracker that matches boxes across frames can replace it.
type PositionalSlots struct{}

// Assign returns 0..len(dets)-1.
func (PositionalSlots) Assign(dets []types.Detection) []int {
	slots := make([]int, len(dets))
	for i := range dets {
		slots[i] = i
	}
	return slots
}

// Smoother damps frame-to-frame jitter with an exponential moving average per slot.
// It is not safe for concurrent use; one render loop owns it.
type Smoother struct {
	alpha float64
	prev  map[int]Scores
}

// NewSmoother returns a Smoother. alpha outside (0,1] falls back to DefaultAlpha.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Smoother{alpha: alpha, prev: make(map[int]Scores)}
}

// Smooth blends raw with the slot's previous smoothed scores and stores the result.
//
// Only categories present in both mappings are blended. Categories new this
// frame pass through, and categories missing this frame are dropped. The first
// observation of a slot is stored as-is.
func (s *Smoother) Smooth(slot int, raw Scores) Scores {
	out := raw.Clone()
	if prev, ok := s.prev[slot]; ok {
		for k, cur := range out {
			if p, seen := prev[k]; seen {
				out[k] = s.alpha*cur + (1-s.alpha)*p
			}
		}
	}
	s.prev[slot] = out
	return out.Clone()
}

// Previous returns the stored smoothed scores for slot.
func (s *Smoother) Previous(slot int) (Scores, bool) {
	p, ok := s.prev[slot]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Len reports how many slots hold history.
func (s *Smoother) Len() int {
	return len(s.prev)
}
