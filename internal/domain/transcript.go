package domain

import (
	"time"
)

// Transcript records one analyzed exchange: the learner query, the
// signal snapshot that drove fusion, and the tutor response.
type Transcript struct {
	ID               string
	SessionID        string
	StudentID        string
	Timestamp        time.Time
	QueryText        string
	Friction         FrictionCounters
	VocalState       VocalState       // empty if the channel was silent
	FacialExpression FacialExpression // empty if the channel was silent
	CognitiveState   CognitiveState
	ResponseType     ResponseType
	ResponseContent  string
	GraphDelta       KnowledgeGraphDelta
	LatencyMs        float64
	Success          bool // false when the template fallback was served
}

// UsageMetric records one API call for the usage dashboard.
type UsageMetric struct {
	ID        string
	SessionID string
	Timestamp time.Time
	Endpoint  string
	LatencyMs float64
	Success   bool
}

// ConceptMastery tracks a student's estimated mastery of one concept,
// adjusted on every interaction by the cognitive state observed at the
// time.
type ConceptMastery struct {
	ID              string
	StudentID       string
	ConceptID       string
	ConceptName     string
	Topic           string
	MasteryLevel    float64 // [0,1]
	Attempts        int
	ConfusedCount   int
	FrustratedCount int
	LastAssessed    time.Time
	CreatedAt       time.Time
}
