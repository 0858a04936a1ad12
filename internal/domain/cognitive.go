// Package domain contains core domain types for the BrainCell application.
package domain

// CognitiveState is the fused discrete learner state. There is no
// "unknown" state; a fresh session starts FOCUSED.
type CognitiveState string

const (
	// StateFocused indicates the learner is progressing normally.
	StateFocused CognitiveState = "FOCUSED"
	// StateConfused indicates the learner shows moderate struggle signals.
	StateConfused CognitiveState = "CONFUSED"
	// StateFrustrated indicates strong struggle signals across channels.
	StateFrustrated CognitiveState = "FRUSTRATED"
)

// FacialExpression is a classified facial emotion label.
type FacialExpression string

const (
	FacialFear     FacialExpression = "fear"
	FacialSad      FacialExpression = "sad"
	FacialAngry    FacialExpression = "angry"
	FacialSurprise FacialExpression = "surprise"
	FacialNeutral  FacialExpression = "neutral"
	FacialHappy    FacialExpression = "happy"
)

// VocalState is a classified vocal emotion label.
type VocalState string

const (
	VocalCalm       VocalState = "calm"
	VocalHesitant   VocalState = "hesitant"
	VocalStressed   VocalState = "stressed"
	VocalFrustrated VocalState = "frustrated"
)

// ParseFacialExpression maps a raw classifier label to a known facial
// expression. Unknown labels return the empty value: the fusion engine
// treats unrecognized input as "no evidence", never as an error.
func ParseFacialExpression(s string) FacialExpression {
	switch FacialExpression(s) {
	case FacialFear, FacialSad, FacialAngry, FacialSurprise, FacialNeutral, FacialHappy:
		return FacialExpression(s)
	}
	return ""
}

// ParseVocalState maps a raw classifier label to a known vocal state.
// Unknown labels return the empty value ("no evidence").
func ParseVocalState(s string) VocalState {
	switch VocalState(s) {
	case VocalCalm, VocalHesitant, VocalStressed, VocalFrustrated:
		return VocalState(s)
	}
	return ""
}

// FrictionCounters holds the per-session typing friction counters.
// Both fields are non-negative and monotonically non-decreasing within a
// session, except for the reset on message submit.
type FrictionCounters struct {
	RephraseCount  int `json:"rephraseCount"`
	BackspaceCount int `json:"backspaceCount"`
}

// Candidate is one entry of a classifier's ranked label list. Candidates
// are display data only; fusion only ever uses the chosen top label.
type Candidate struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
