package fusion

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestMeter_SpikeClampsToOne(t *testing.T) {
	m := NewMeter(0)

	m.Spike(0.7)
	m.Spike(0.7)

	if got := m.Value(); got != 1.0 {
		t.Errorf("Expected intensity clamped to 1.0, got %f", got)
	}
}

func TestMeter_StaysInBoundsUnderAnySequence(t *testing.T) {
	m := NewMeter(0)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 10000; i++ {
		if rng.Intn(2) == 0 {
			m.Tick()
		} else {
			m.Spike(rng.Float64()*1.5 - 0.25) // includes out-of-range impulses
		}
		if v := m.Value(); v < 0 || v > 1 {
			t.Fatalf("Intensity left [0,1] at step %d: %f", i, v)
		}
	}
}

func TestMeter_DecayConvergesToZero(t *testing.T) {
	m := NewMeter(0)
	m.Spike(1.0)

	// 0.92^85 ~= 0.0008, so 85 reference ticks must cross 1e-3.
	for i := 0; i < 85; i++ {
		m.Tick()
	}

	if v := m.Value(); v >= 1e-3 {
		t.Errorf("Expected intensity < 1e-3 after 85 ticks, got %f", v)
	}
}

func TestMeter_ReferenceDecayFactor(t *testing.T) {
	m := NewMeter(time.Second / 60)
	m.Spike(1.0)
	m.Tick()

	if v := m.Value(); math.Abs(v-0.92) > 1e-9 {
		t.Errorf("Expected one reference tick to leave 0.92, got %f", v)
	}
}

func TestMeter_SlowCadenceMatchesWallClock(t *testing.T) {
	// A 100ms cadence takes 6x fewer ticks per second than the 60Hz
	// reference; after one second of ticking both meters must agree.
	ref := NewMeter(time.Second / 60)
	slow := NewMeter(100 * time.Millisecond)
	ref.Spike(1.0)
	slow.Spike(1.0)

	for i := 0; i < 60; i++ {
		ref.Tick()
	}
	for i := 0; i < 10; i++ {
		slow.Tick()
	}

	if diff := math.Abs(ref.Value() - slow.Value()); diff > 1e-6 {
		t.Errorf("Cadence scaling diverged: ref=%f slow=%f", ref.Value(), slow.Value())
	}
}
