package fusion

import (
	"sync"
	"time"

	"github.com/braincell-ai/braincell/internal/domain"
)

// Channel identifies one of the three independent signal sources.
type Channel string

const (
	ChannelText   Channel = "TEXT"
	ChannelFacial Channel = "FACIAL"
	ChannelVocal  Channel = "VOCAL"
)

// Fusion score weights and thresholds. Friction thresholds apply to the
// cumulative session counters, which the API layer resets on every
// message submit.
const (
	scoreRephrase        = 3 // rephraseCount > 1
	scoreBackspaceHigh   = 2 // backspaceCount > 10
	scoreBackspaceSevere = 3 // backspaceCount > 20, cumulative with the previous
	scoreVocalStressed   = 4
	scoreVocalHesitant   = 3
	scoreFacialNegative  = 3 // fear or angry
	scoreFacialSurprise  = 1

	frustratedThreshold = 8
	confusedThreshold   = 4
)

// Fuse combines the latest channel readings into one cognitive state.
// It is a pure combinational classifier: no memory of the previous
// state, total over its inputs, and unknown labels contribute nothing.
//
// Priority short-circuits run first, in fixed order: vocal frustration
// is unambiguous and overrides everything; facial sadness is an
// unambiguous confusion signal checked only when the first did not fire.
func Fuse(facial domain.FacialExpression, vocal domain.VocalState, friction domain.FrictionCounters) domain.CognitiveState {
	if vocal == domain.VocalFrustrated {
		return domain.StateFrustrated
	}
	if facial == domain.FacialSad {
		return domain.StateConfused
	}

	score := 0
	if friction.RephraseCount > 1 {
		score += scoreRephrase
	}
	if friction.BackspaceCount > 10 {
		score += scoreBackspaceHigh
	}
	if friction.BackspaceCount > 20 {
		score += scoreBackspaceSevere
	}
	switch vocal {
	case domain.VocalStressed:
		score += scoreVocalStressed
	case domain.VocalHesitant:
		score += scoreVocalHesitant
	}
	// Only one facial contribution per cycle. The classifier's label set
	// never emits "frustrated", so no facial value short-cuts scoring here.
	switch facial {
	case domain.FacialFear, domain.FacialAngry:
		score += scoreFacialNegative
	case domain.FacialSurprise:
		score += scoreFacialSurprise
	}

	switch {
	case score >= frustratedThreshold:
		return domain.StateFrustrated
	case score >= confusedThreshold:
		return domain.StateConfused
	default:
		return domain.StateFocused
	}
}

// Engine owns the mutable signal state for one live session and
// re-evaluates the fused cognitive state on every channel update.
// Write-then-notify ordering holds: a channel write is fully applied
// under the lock before re-evaluation, and the change callback fires
// after the lock is released.
//
// Facial and vocal readings have no explicit TTL by default: the engine
// only ever sees the latest value per channel, and a stale value
// persists until overwritten. A positive channelTTL opts into expiry at
// evaluation time.
type Engine struct {
	mu sync.RWMutex

	tracker *Tracker
	meter   *Meter

	facial           domain.FacialExpression
	facialAt         time.Time
	facialCandidates []domain.Candidate
	vocal            domain.VocalState
	vocalAt          time.Time
	vocalCandidates  []domain.Candidate

	state      domain.CognitiveState
	channelTTL time.Duration
	now        func() time.Time

	onChange func(domain.CognitiveState)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithChannelTTL makes facial/vocal readings expire after ttl. Zero
// preserves the default never-expire behavior.
func WithChannelTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.channelTTL = ttl }
}

// WithClock overrides the wall clock; used by tests and by callers that
// already own a clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithDecayTick calibrates the intensity meter for a non-reference tick
// cadence.
func WithDecayTick(tick time.Duration) EngineOption {
	return func(e *Engine) { e.meter = NewMeter(tick) }
}

// NewEngine creates an engine in the initial FOCUSED state.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		tracker: NewTracker(),
		meter:   NewMeter(referenceTick),
		state:   domain.StateFocused,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetOnChange registers the callback fired whenever the fused state
// transitions. Only one subscriber is supported; the UI layer fans out.
func (e *Engine) SetOnChange(fn func(domain.CognitiveState)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// OnTextChanged feeds one text observation into the friction tracker
// and re-evaluates.
func (e *Engine) OnTextChanged(text string, nowMs int64) {
	e.mu.Lock()
	e.tracker.OnTextChanged(text, nowMs)
	notify, state := e.evaluateLocked()
	e.mu.Unlock()
	if notify != nil {
		notify(state)
	}
}

// OnFacialResult records the latest facial classification. An empty
// label marks the channel silent ("no recent observation").
func (e *Engine) OnFacialResult(label domain.FacialExpression, candidates []domain.Candidate) {
	e.mu.Lock()
	e.facial = label
	e.facialAt = e.now()
	e.facialCandidates = RankCandidates(candidates)
	notify, state := e.evaluateLocked()
	e.mu.Unlock()
	if notify != nil {
		notify(state)
	}
}

// OnVocalResult records the latest vocal classification. An empty label
// marks the channel silent.
func (e *Engine) OnVocalResult(label domain.VocalState, candidates []domain.Candidate) {
	e.mu.Lock()
	e.vocal = label
	e.vocalAt = e.now()
	e.vocalCandidates = RankCandidates(candidates)
	notify, state := e.evaluateLocked()
	e.mu.Unlock()
	if notify != nil {
		notify(state)
	}
}

// ResetFriction zeroes the friction counters (message submit) and
// re-evaluates.
func (e *Engine) ResetFriction() {
	e.mu.Lock()
	e.tracker.Reset()
	notify, state := e.evaluateLocked()
	e.mu.Unlock()
	if notify != nil {
		notify(state)
	}
}

// TickDecay applies one intensity decay step.
func (e *Engine) TickDecay() {
	e.mu.Lock()
	e.meter.Tick()
	e.mu.Unlock()
}

// SpikeIntensity adds an impulse to the intensity meter.
func (e *Engine) SpikeIntensity(amount float64) {
	e.mu.Lock()
	e.meter.Spike(amount)
	e.mu.Unlock()
}

// State returns the current fused cognitive state.
func (e *Engine) State() domain.CognitiveState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Counters returns the current friction counters.
func (e *Engine) Counters() domain.FrictionCounters {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tracker.Counters()
}

// Intensity returns the current intensity value.
func (e *Engine) Intensity() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meter.Value()
}

// Channels returns the latest facial and vocal labels as the fusion
// evaluation would see them (stale values cleared when a TTL is set).
func (e *Engine) Channels() (domain.FacialExpression, domain.VocalState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked()
	return e.facial, e.vocal
}

// Candidates returns the latest ranked candidate list for a channel, or
// nil when the channel has produced no data. The distinction between
// nil (no data) and an empty list (zero candidates) is preserved for
// the UI.
func (e *Engine) Candidates(ch Channel) []domain.Candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch ch {
	case ChannelFacial:
		return e.facialCandidates
	case ChannelVocal:
		return e.vocalCandidates
	default:
		return nil
	}
}

// evaluateLocked re-runs fusion over the current snapshot. It returns
// the callback to invoke (nil when the state did not change) so the
// caller can notify after releasing the lock.
func (e *Engine) evaluateLocked() (func(domain.CognitiveState), domain.CognitiveState) {
	e.expireLocked()
	next := Fuse(e.facial, e.vocal, e.tracker.Counters())
	if next == e.state {
		return nil, next
	}
	e.state = next
	return e.onChange, next
}

// expireLocked clears channel readings older than the configured TTL.
// With the default TTL of zero this is a no-op and the original
// behavior — last reading persists indefinitely — is preserved.
func (e *Engine) expireLocked() {
	if e.channelTTL <= 0 {
		return
	}
	now := e.now()
	if e.facial != "" && now.Sub(e.facialAt) > e.channelTTL {
		e.facial = ""
		e.facialCandidates = nil
	}
	if e.vocal != "" && now.Sub(e.vocalAt) > e.channelTTL {
		e.vocal = ""
		e.vocalCandidates = nil
	}
}
