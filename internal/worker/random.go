package worker

import (
	"context"
	"image"
	"math/rand"
	"sync"

	"github.com/andresmejia3/emojicam/internal/overlay"
	"github.com/andresmejia3/emojicam/internal/types"
)

// RandomDetector reports one fixed face with uniformly random scores.
// It stands in for a real backend when Python is not installed.
type RandomDetector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomDetector(seed int64) *RandomDetector {
	return &RandomDetector{rng: rand.New(rand.NewSource(seed))}
}

func (d *RandomDetector) Detect(ctx context.Context, img image.Image) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	scores := make(map[string]float64, len(overlay.Emotions))
	for _, e := range overlay.Emotions {
		scores[e] = d.rng.Float64()
	}
	return []types.Detection{{Box: []int{50, 50, 150, 150}, Scores: scores}}, nil
}

func (d *RandomDetector) Close() error { return nil }
