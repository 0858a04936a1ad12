// Package fusion implements the cognitive-state fusion core: the typing
// friction tracker, the intensity decay meter, and the engine that
// combines the three signal channels into one discrete state.
package fusion

import (
	"github.com/braincell-ai/braincell/internal/domain"
)

const (
	// rephraseWindowMs: an edit only counts as a rephrase when it lands
	// within this many milliseconds of the previous edit.
	rephraseWindowMs = 500
	// rephraseMaxLenDelta: length must stay similar — a substitution,
	// not a wholesale add or remove.
	rephraseMaxLenDelta = 5
	// rephraseMinLen: very short inputs never count.
	rephraseMinLen = 10
	// rephraseMinCharDiff: at least this many positions must differ.
	rephraseMinCharDiff = 3
)

// Tracker classifies a stream of text-box mutations into friction
// counters. It is a pure accumulator: OnTextChanged never fails, and a
// non-monotonic clock only degrades the timing heuristic (extra false
// rephrases), it does not break the tracker.
//
// A Tracker is not safe for concurrent use; the owning session
// serializes calls.
type Tracker struct {
	counters             domain.FrictionCounters
	previousText         []rune
	lastChangeMs         int64
	consecutiveBackspaces int
}

// NewTracker returns a fresh tracker with zeroed counters.
func NewTracker() *Tracker {
	return &Tracker{}
}

// OnTextChanged records one observation of the input box contents.
func (t *Tracker) OnTextChanged(text string, nowMs int64) {
	next := []rune(text)

	if len(next) < len(t.previousText) {
		t.counters.BackspaceCount++
		t.consecutiveBackspaces++
	} else {
		t.consecutiveBackspaces = 0
	}

	if t.isRephrase(next, nowMs) {
		t.counters.RephraseCount++
	}

	t.previousText = next
	t.lastChangeMs = nowMs
}

// isRephrase requires all five conditions: quick change, similar final
// length, different content, non-trivial length, and a multi-character
// positional difference. The conjunction makes a single forward
// keystroke incapable of triggering a false positive; the target is the
// "select text, retype something similar" pattern.
func (t *Tracker) isRephrase(next []rune, nowMs int64) bool {
	if nowMs-t.lastChangeMs >= rephraseWindowMs {
		return false
	}
	if abs(len(next)-len(t.previousText)) >= rephraseMaxLenDelta {
		return false
	}
	if len(next) <= rephraseMinLen {
		return false
	}
	if runesEqual(next, t.previousText) {
		return false
	}
	return positionalDiff(t.previousText, next) >= rephraseMinCharDiff
}

// Counters returns the current friction counters.
func (t *Tracker) Counters() domain.FrictionCounters {
	return t.counters
}

// ConsecutiveBackspaces returns the current run of shrinking edits.
func (t *Tracker) ConsecutiveBackspaces() int {
	return t.consecutiveBackspaces
}

// Reset zeroes the counters on message submit. The previous-text and
// timing state survive; they are only discarded when the owning session
// is torn down.
func (t *Tracker) Reset() {
	t.counters = domain.FrictionCounters{}
	t.consecutiveBackspaces = 0
}

// positionalDiff counts mismatching rune positions, comparing up to the
// longer string's length; positions missing from the shorter string
// count as mismatches.
func positionalDiff(a, b []rune) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	diff := 0
	for i := 0; i < n; i++ {
		switch {
		case i >= len(a) || i >= len(b):
			diff++
		case a[i] != b[i]:
			diff++
		}
	}
	return diff
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
