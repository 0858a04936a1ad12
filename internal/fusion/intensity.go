package fusion

import (
	"math"
	"time"
)

const (
	// referenceDecay is the per-tick decay factor at the reference
	// cadence of one tick per display frame (~60Hz). A spike decays to
	// ~8% of its value after roughly 35-40 reference ticks.
	referenceDecay = 0.92
	referenceTick  = time.Second / 60

	// SpikeKeystroke is the typical magnitude for a generic edit.
	SpikeKeystroke = 0.1
	// SpikeBackspace is the typical magnitude for a shrinking edit.
	SpikeBackspace = 0.3
)

// Meter maintains a smoothly decaying [0,1] scalar representing recent
// edit intensity. It drives animated feedback only and is independent of
// the discrete cognitive state.
//
// The meter itself is passive: the owning session calls Tick from its
// own cancellable timer so teardown never leaks a recurring ticker.
type Meter struct {
	intensity float64
	decay     float64
}

// NewMeter returns a meter calibrated for the given tick interval. The
// decay exponent is scaled so that wall-clock decay matches the
// reference behavior (0.92 per tick at 60Hz) regardless of cadence.
func NewMeter(tick time.Duration) *Meter {
	if tick <= 0 {
		tick = referenceTick
	}
	exponent := float64(tick) / float64(referenceTick)
	return &Meter{decay: math.Pow(referenceDecay, exponent)}
}

// Tick applies one decay step.
func (m *Meter) Tick() {
	m.intensity *= m.decay
}

// Spike adds an impulse and clamps the result into [0,1]. A negative
// starting value (never produced internally, but tolerated) is clamped
// to zero before the impulse is applied.
func (m *Meter) Spike(amount float64) {
	if m.intensity < 0 || math.IsNaN(m.intensity) {
		m.intensity = 0
	}
	m.intensity += amount
	if m.intensity < 0 {
		m.intensity = 0
	}
	if m.intensity > 1 {
		m.intensity = 1
	}
}

// Value returns the current intensity in [0,1].
func (m *Meter) Value() float64 {
	return m.intensity
}
