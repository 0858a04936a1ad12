// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/braincell-ai/braincell/internal/domain"
)

// Repository defines the interface for persisting learner data.
type Repository interface {
	// GetStudent retrieves a student by ID. Returns nil when unknown.
	GetStudent(ctx context.Context, studentID string) (*domain.Student, error)

	// UpsertStudent creates or updates a student record.
	UpsertStudent(ctx context.Context, student *domain.Student) error

	// UpdateLastSeen updates the last_seen_at timestamp for a student.
	UpdateLastSeen(ctx context.Context, studentID string, lastSeen time.Time) error

	// InsertTranscript stores one analyzed exchange.
	InsertTranscript(ctx context.Context, t *domain.Transcript) error

	// RecentTranscripts returns the most recent transcripts for a
	// session, newest first.
	RecentTranscripts(ctx context.Context, sessionID string, limit int) ([]*domain.Transcript, error)

	// RecordUsage stores one usage metric row.
	RecordUsage(ctx context.Context, m *domain.UsageMetric) error

	// GetConceptMastery retrieves one student/concept mastery record.
	// Returns nil when the concept has never been tracked.
	GetConceptMastery(ctx context.Context, studentID, conceptID string) (*domain.ConceptMastery, error)

	// UpsertConceptMastery creates or updates a mastery record.
	UpsertConceptMastery(ctx context.Context, m *domain.ConceptMastery) error

	// ListConceptMastery returns all mastery records for a student,
	// weakest first, optionally filtered by topic.
	ListConceptMastery(ctx context.Context, studentID, topic string) ([]*domain.ConceptMastery, error)

	// PurgeTranscriptsBefore deletes transcripts and usage metrics older
	// than the cutoff, returning the number of transcripts removed.
	PurgeTranscriptsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteIdleStudents removes students not seen since the cutoff.
	DeleteIdleStudents(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
