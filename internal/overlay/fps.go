package overlay

import "time"

// FPSMeter reports the display rate from the time between consecutive frames.
type FPSMeter struct {
	prev time.Time
	last float64
}

// Tick records a frame shown at now and returns the instantaneous rate.
// The first tick, and ticks that do not advance the clock, return the previous value.
func (m *FPSMeter) Tick(now time.Time) float64 {
	if !m.prev.IsZero() {
		if dt := now.Sub(m.prev).Seconds(); dt > 0 {
			m.last = 1 / dt
		}
	}
	m.prev = now
	return m.last
}
