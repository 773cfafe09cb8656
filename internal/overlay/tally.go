package overlay

import "sort"

// Tally counts how often each category was dominant over the session.
// Counts only grow; a fresh Tally is the only reset.
type Tally struct {
	counts map[string]int
	order  []string // first-seen order, used to break ties
}

// NewTally returns a Tally with seed categories present at zero.
func NewTally(seed ...string) *Tally {
	t := &Tally{counts: make(map[string]int)}
	for _, c := range seed {
		t.ensure(c)
	}
	return t
}

func (t *Tally) ensure(category string) {
	if _, ok := t.counts[category]; !ok {
		t.counts[category] = 0
		t.order = append(t.order, category)
	}
}

// Record increments category by one.
func (t *Tally) Record(category string) {
	t.Add(category, 1)
}

// Add increments category by n. Non-positive n and empty categories are ignored.
func (t *Tally) Add(category string, n int) {
	if category == "" || n <= 0 {
		return
	}
	t.ensure(category)
	t.counts[category] += n
}

// Count returns the count for category.
func (t *Tally) Count(category string) int {
	return t.counts[category]
}

// Total is the sum over all categories.
func (t *Tally) Total() int {
	n := 0
	for _, c := range t.counts {
		n += c
	}
	return n
}

// Counts returns a copy of the raw counters.
func (t *Tally) Counts() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Normalized ranks every category by count, scaled so the leader is 1.
func (t *Tally) Normalized() []RankedItem {
	maxCount := 1
	for _, c := range t.counts {
		if c > maxCount {
			maxCount = c
		}
	}
	items := make([]RankedItem, 0, len(t.order))
	for _, name := range t.order {
		items = append(items, RankedItem{Category: name, Score: float64(t.counts[name]) / float64(maxCount)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	return items
}
