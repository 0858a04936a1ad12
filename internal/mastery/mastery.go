// Package mastery tracks per-concept mastery estimates and detects
// knowledge gaps from the cognitive states observed while a student
// works through a concept.
package mastery

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/braincell-ai/braincell/internal/domain"
	"github.com/braincell-ai/braincell/internal/store"
)

// Mastery adjustment per observed cognitive state. FOCUSED interactions
// build mastery; struggle signals erode it, frustration faster than
// confusion.
const (
	focusedGain    = 0.1
	confusedLoss   = 0.05
	frustratedLoss = 0.1
)

// Initial mastery for a concept first seen in each state.
const (
	initialNeutral    = 0.3
	initialFocused    = 0.5
	initialConfused   = 0.2
	initialFrustrated = 0.1
)

// Categorization thresholds for gap reports.
const (
	weakThreshold       = 0.4
	strongThreshold     = 0.7
	strugglingConfused  = 2 // struggling when confused_count exceeds this
	strugglingFrustated = 1 // or frustrated_count exceeds this
)

// Tracker updates and reports concept mastery.
type Tracker struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewTracker creates a mastery tracker.
func NewTracker(repo store.Repository, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{repo: repo, logger: logger}
}

// TrackInteraction records one student/concept interaction, adjusting
// the mastery estimate by the cognitive state observed at the time.
func (t *Tracker) TrackInteraction(ctx context.Context, studentID, conceptID, conceptName, topic string, state domain.CognitiveState) error {
	existing, err := t.repo.GetConceptMastery(ctx, studentID, conceptID)
	if err != nil {
		return fmt.Errorf("load concept mastery: %w", err)
	}

	now := time.Now()
	if existing == nil {
		m := &domain.ConceptMastery{
			StudentID:    studentID,
			ConceptID:    conceptID,
			ConceptName:  conceptName,
			Topic:        topic,
			MasteryLevel: initialLevel(state),
			Attempts:     1,
			LastAssessed: now,
			CreatedAt:    now,
		}
		switch state {
		case domain.StateConfused:
			m.ConfusedCount = 1
		case domain.StateFrustrated:
			m.FrustratedCount = 1
		}
		if err := t.repo.UpsertConceptMastery(ctx, m); err != nil {
			return fmt.Errorf("create concept mastery: %w", err)
		}
		t.logger.Info("tracked new concept", "student_id", studentID, "concept", conceptName, "state", state)
		return nil
	}

	existing.Attempts++
	existing.LastAssessed = now
	switch state {
	case domain.StateFocused:
		existing.MasteryLevel = math.Min(1.0, existing.MasteryLevel+focusedGain)
	case domain.StateConfused:
		existing.MasteryLevel = math.Max(0.0, existing.MasteryLevel-confusedLoss)
		existing.ConfusedCount++
	case domain.StateFrustrated:
		existing.MasteryLevel = math.Max(0.0, existing.MasteryLevel-frustratedLoss)
		existing.FrustratedCount++
	}

	if err := t.repo.UpsertConceptMastery(ctx, existing); err != nil {
		return fmt.Errorf("update concept mastery: %w", err)
	}
	return nil
}

func initialLevel(state domain.CognitiveState) float64 {
	switch state {
	case domain.StateFocused:
		return initialFocused
	case domain.StateConfused:
		return initialConfused
	case domain.StateFrustrated:
		return initialFrustrated
	}
	return initialNeutral
}

// ConceptSummary is one concept entry in a gap report.
type ConceptSummary struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Mastery         float64 `json:"mastery"`
	Attempts        int     `json:"attempts"`
	ConfusedCount   int     `json:"confused_count"`
	FrustratedCount int     `json:"frustrated_count"`
}

// GapReport categorizes a student's concepts into weak, struggling, and
// strong groups with actionable recommendations.
type GapReport struct {
	StudentID       string           `json:"student_id"`
	Topic           string           `json:"topic,omitempty"`
	TotalConcepts   int              `json:"total_concepts"`
	Gaps            []ConceptSummary `json:"gaps"`
	Struggling      []ConceptSummary `json:"struggling"`
	Strong          []ConceptSummary `json:"strong"`
	Moderate        int              `json:"moderate"`
	Recommendations []string         `json:"recommendations"`
	OverallProgress float64          `json:"overall_progress"` // percentage
	LastUpdated     time.Time        `json:"last_updated"`
}

// Report builds the gap report for a student, optionally scoped to one
// topic. Concepts come back weakest first from the store, so the capped
// slices below keep the most urgent entries.
func (t *Tracker) Report(ctx context.Context, studentID, topic string) (*GapReport, error) {
	concepts, err := t.repo.ListConceptMastery(ctx, studentID, topic)
	if err != nil {
		return nil, fmt.Errorf("list concept mastery: %w", err)
	}

	report := &GapReport{
		StudentID:   studentID,
		Topic:       topic,
		LastUpdated: time.Now(),
	}

	if len(concepts) == 0 {
		report.Recommendations = []string{"Start learning! No data yet."}
		return report, nil
	}

	var weak, struggling, strong []ConceptSummary
	moderate := 0
	var sum float64

	for _, c := range concepts {
		sum += c.MasteryLevel
		summary := ConceptSummary{
			ID:              c.ConceptID,
			Name:            c.ConceptName,
			Mastery:         round2(c.MasteryLevel),
			Attempts:        c.Attempts,
			ConfusedCount:   c.ConfusedCount,
			FrustratedCount: c.FrustratedCount,
		}

		switch {
		case c.MasteryLevel < weakThreshold:
			weak = append(weak, summary)
		case c.MasteryLevel >= strongThreshold:
			strong = append(strong, summary)
		default:
			moderate++
		}

		if c.ConfusedCount > strugglingConfused || c.FrustratedCount > strugglingFrustated {
			struggling = append(struggling, summary)
		}
	}

	avg := sum / float64(len(concepts))

	report.TotalConcepts = len(concepts)
	report.Gaps = capSummaries(weak, 5)
	report.Struggling = capSummaries(struggling, 5)
	report.Strong = capSummaries(strong, 3)
	report.Moderate = moderate
	report.Recommendations = recommendations(weak, struggling, strong, avg)
	report.OverallProgress = math.Round(avg*1000) / 10

	return report, nil
}

func recommendations(weak, struggling, strong []ConceptSummary, avg float64) []string {
	var recs []string

	switch {
	case avg < 0.3:
		recs = append(recs, "You're in early stages. Focus on building fundamentals before moving forward.")
	case avg < 0.5:
		recs = append(recs, "You're making progress! Review weak areas before tackling new concepts.")
	case avg < 0.7:
		recs = append(recs, "Good momentum! A few more practice sessions will solidify your knowledge.")
	default:
		recs = append(recs, "Excellent progress! You're ready for advanced topics.")
	}

	if len(weak) > 0 {
		recs = append(recs, "Priority review needed: "+joinNames(weak, 3))
	}
	if len(struggling) > 0 {
		recs = append(recs, "You've been struggling with: "+joinNames(struggling, 2)+". Try a different approach or ask for examples.")
	}
	if len(strong) > 0 {
		recs = append(recs, "You've mastered: "+joinNames(strong, 2)+". Build on these strengths.")
	}

	return recs
}

func joinNames(concepts []ConceptSummary, max int) string {
	if len(concepts) > max {
		concepts = concepts[:max]
	}
	names := make([]string, len(concepts))
	for i, c := range concepts {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func capSummaries(s []ConceptSummary, max int) []ConceptSummary {
	if s == nil {
		return []ConceptSummary{}
	}
	if len(s) > max {
		return s[:max]
	}
	return s
}

// TopicProgress summarizes one topic's average mastery.
type TopicProgress struct {
	Topic         string  `json:"topic"`
	AvgMastery    float64 `json:"avg_mastery"`
	ConceptsCount int     `json:"concepts_count"`
}

// ProgressReport is the cross-topic progress overview.
type ProgressReport struct {
	StudentID     string          `json:"student_id"`
	TotalConcepts int             `json:"total_concepts"`
	AvgMastery    float64         `json:"avg_mastery"`
	Topics        []TopicProgress `json:"topics"`
}

// Progress returns the student's overall progress grouped by topic,
// strongest topics first.
func (t *Tracker) Progress(ctx context.Context, studentID string) (*ProgressReport, error) {
	concepts, err := t.repo.ListConceptMastery(ctx, studentID, "")
	if err != nil {
		return nil, fmt.Errorf("list concept mastery: %w", err)
	}

	report := &ProgressReport{StudentID: studentID, Topics: []TopicProgress{}}
	if len(concepts) == 0 {
		return report, nil
	}

	byTopic := make(map[string][]float64)
	var sum float64
	for _, c := range concepts {
		byTopic[c.Topic] = append(byTopic[c.Topic], c.MasteryLevel)
		sum += c.MasteryLevel
	}

	for topic, levels := range byTopic {
		var topicSum float64
		for _, l := range levels {
			topicSum += l
		}
		report.Topics = append(report.Topics, TopicProgress{
			Topic:         topic,
			AvgMastery:    round2(topicSum / float64(len(levels))),
			ConceptsCount: len(levels),
		})
	}
	sort.Slice(report.Topics, func(i, j int) bool {
		return report.Topics[i].AvgMastery > report.Topics[j].AvgMastery
	})

	report.TotalConcepts = len(concepts)
	report.AvgMastery = round2(sum / float64(len(concepts)))

	return report, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
