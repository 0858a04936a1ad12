package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/braincell-ai/braincell/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
	// Mastery upserts from concurrent analyze calls hit the same row;
	// serialize them to keep SQLITE_BUSY off the hot path.
	masteryMu sync.Mutex
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS students (
		student_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_last_seen ON students(last_seen_at);

	CREATE TABLE IF NOT EXISTS session_transcripts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		query_text TEXT NOT NULL,
		rephrase_count INTEGER NOT NULL DEFAULT 0,
		backspace_count INTEGER NOT NULL DEFAULT 0,
		vocal_state TEXT,
		facial_expression TEXT,
		cognitive_state TEXT NOT NULL,
		response_type TEXT NOT NULL,
		response_content TEXT NOT NULL,
		graph_delta_json TEXT,
		latency_ms REAL,
		success INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_session ON session_transcripts(session_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_transcripts_time ON session_transcripts(timestamp);

	CREATE TABLE IF NOT EXISTS usage_metrics (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		endpoint TEXT NOT NULL,
		latency_ms REAL,
		success INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_usage_session ON usage_metrics(session_id);
	CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_metrics(timestamp);

	CREATE TABLE IF NOT EXISTS concept_mastery (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		concept_id TEXT NOT NULL,
		concept_name TEXT NOT NULL,
		topic TEXT NOT NULL,
		mastery_level REAL NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		confused_count INTEGER NOT NULL DEFAULT 0,
		frustrated_count INTEGER NOT NULL DEFAULT 0,
		last_assessed INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(student_id, concept_id)
	);
	CREATE INDEX IF NOT EXISTS idx_mastery_student ON concept_mastery(student_id, mastery_level);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetStudent retrieves a student by ID.
func (s *SQLiteStore) GetStudent(ctx context.Context, studentID string) (*domain.Student, error) {
	query := `
		SELECT student_id, username, last_seen_at, created_at, updated_at
		FROM students WHERE student_id = ?`

	row := s.db.QueryRowContext(ctx, query, studentID)

	var student domain.Student
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&student.StudentID, &student.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan student row: %w", err)
	}

	student.LastSeenAt = time.Unix(lastSeen, 0)
	student.CreatedAt = time.Unix(createdAt, 0)
	student.UpdatedAt = time.Unix(updatedAt, 0)

	return &student, nil
}

// UpsertStudent creates or updates a student record.
func (s *SQLiteStore) UpsertStudent(ctx context.Context, student *domain.Student) error {
	query := `
	INSERT INTO students (student_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(student_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		student.StudentID, student.Username,
		student.LastSeenAt.Unix(), student.CreatedAt.Unix(), student.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a student.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, studentID string, lastSeen time.Time) error {
	query := `UPDATE students SET last_seen_at = ?, updated_at = ? WHERE student_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), studentID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "student_id", studentID)
	}

	return nil
}

// InsertTranscript stores one analyzed exchange.
func (s *SQLiteStore) InsertTranscript(ctx context.Context, t *domain.Transcript) error {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}

	deltaJSON, err := json.Marshal(t.GraphDelta)
	if err != nil {
		return fmt.Errorf("marshal graph delta: %w", err)
	}

	query := `
	INSERT INTO session_transcripts (
		id, session_id, student_id, timestamp, query_text,
		rephrase_count, backspace_count, vocal_state, facial_expression,
		cognitive_state, response_type, response_content, graph_delta_json,
		latency_ms, success
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		id, t.SessionID, t.StudentID, t.Timestamp.Unix(), t.QueryText,
		t.Friction.RephraseCount, t.Friction.BackspaceCount,
		nullableString(string(t.VocalState)), nullableString(string(t.FacialExpression)),
		string(t.CognitiveState), string(t.ResponseType), t.ResponseContent, string(deltaJSON),
		t.LatencyMs, boolToInt(t.Success),
	)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// RecentTranscripts returns the most recent transcripts for a session.
func (s *SQLiteStore) RecentTranscripts(ctx context.Context, sessionID string, limit int) ([]*domain.Transcript, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, session_id, student_id, timestamp, query_text,
		       rephrase_count, backspace_count, vocal_state, facial_expression,
		       cognitive_state, response_type, response_content, graph_delta_json,
		       latency_ms, success
		FROM session_transcripts
		WHERE session_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close transcript rows", "error", closeErr)
		}
	}()

	var out []*domain.Transcript
	for rows.Next() {
		var t domain.Transcript
		var ts int64
		var vocal, facial, deltaJSON sql.NullString
		var latency sql.NullFloat64
		var success int

		if err := rows.Scan(
			&t.ID, &t.SessionID, &t.StudentID, &ts, &t.QueryText,
			&t.Friction.RephraseCount, &t.Friction.BackspaceCount, &vocal, &facial,
			&t.CognitiveState, &t.ResponseType, &t.ResponseContent, &deltaJSON,
			&latency, &success,
		); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}

		t.Timestamp = time.Unix(ts, 0)
		t.VocalState = domain.VocalState(vocal.String)
		t.FacialExpression = domain.FacialExpression(facial.String)
		t.LatencyMs = latency.Float64
		t.Success = success == 1
		if deltaJSON.Valid && deltaJSON.String != "" {
			if err := json.Unmarshal([]byte(deltaJSON.String), &t.GraphDelta); err != nil {
				return nil, fmt.Errorf("unmarshal graph delta: %w", err)
			}
		}
		out = append(out, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcripts: %w", err)
	}
	return out, nil
}

// RecordUsage stores one usage metric row.
func (s *SQLiteStore) RecordUsage(ctx context.Context, m *domain.UsageMetric) error {
	id := m.ID
	if id == "" {
		id = uuid.NewString()
	}
	query := `
	INSERT INTO usage_metrics (id, session_id, timestamp, endpoint, latency_ms, success)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		id, m.SessionID, m.Timestamp.Unix(), m.Endpoint, m.LatencyMs, boolToInt(m.Success),
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// GetConceptMastery retrieves one student/concept mastery record.
func (s *SQLiteStore) GetConceptMastery(ctx context.Context, studentID, conceptID string) (*domain.ConceptMastery, error) {
	s.masteryMu.Lock()
	defer s.masteryMu.Unlock()
	return s.getConceptMasteryLocked(ctx, studentID, conceptID)
}

func (s *SQLiteStore) getConceptMasteryLocked(ctx context.Context, studentID, conceptID string) (*domain.ConceptMastery, error) {
	query := `
		SELECT id, student_id, concept_id, concept_name, topic, mastery_level,
		       attempts, confused_count, frustrated_count, last_assessed, created_at
		FROM concept_mastery WHERE student_id = ? AND concept_id = ?`

	row := s.db.QueryRowContext(ctx, query, studentID, conceptID)

	var m domain.ConceptMastery
	var lastAssessed, createdAt int64

	err := row.Scan(
		&m.ID, &m.StudentID, &m.ConceptID, &m.ConceptName, &m.Topic, &m.MasteryLevel,
		&m.Attempts, &m.ConfusedCount, &m.FrustratedCount, &lastAssessed, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan mastery row: %w", err)
	}

	m.LastAssessed = time.Unix(lastAssessed, 0)
	m.CreatedAt = time.Unix(createdAt, 0)
	return &m, nil
}

// UpsertConceptMastery creates or updates a mastery record.
func (s *SQLiteStore) UpsertConceptMastery(ctx context.Context, m *domain.ConceptMastery) error {
	s.masteryMu.Lock()
	defer s.masteryMu.Unlock()

	id := m.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
	INSERT INTO concept_mastery (
		id, student_id, concept_id, concept_name, topic, mastery_level,
		attempts, confused_count, frustrated_count, last_assessed, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(student_id, concept_id) DO UPDATE SET
		concept_name = excluded.concept_name,
		topic = excluded.topic,
		mastery_level = excluded.mastery_level,
		attempts = excluded.attempts,
		confused_count = excluded.confused_count,
		frustrated_count = excluded.frustrated_count,
		last_assessed = excluded.last_assessed`

	_, err := s.db.ExecContext(ctx, query,
		id, m.StudentID, m.ConceptID, m.ConceptName, m.Topic, m.MasteryLevel,
		m.Attempts, m.ConfusedCount, m.FrustratedCount,
		m.LastAssessed.Unix(), m.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert concept mastery: %w", err)
	}
	return nil
}

// ListConceptMastery returns mastery records for a student, weakest first.
func (s *SQLiteStore) ListConceptMastery(ctx context.Context, studentID, topic string) ([]*domain.ConceptMastery, error) {
	query := `
		SELECT id, student_id, concept_id, concept_name, topic, mastery_level,
		       attempts, confused_count, frustrated_count, last_assessed, created_at
		FROM concept_mastery WHERE student_id = ?`
	args := []interface{}{studentID}
	if topic != "" {
		query += ` AND topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY mastery_level ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query concept mastery: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close mastery rows", "error", closeErr)
		}
	}()

	var out []*domain.ConceptMastery
	for rows.Next() {
		var m domain.ConceptMastery
		var lastAssessed, createdAt int64

		if err := rows.Scan(
			&m.ID, &m.StudentID, &m.ConceptID, &m.ConceptName, &m.Topic, &m.MasteryLevel,
			&m.Attempts, &m.ConfusedCount, &m.FrustratedCount, &lastAssessed, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan mastery row: %w", err)
		}

		m.LastAssessed = time.Unix(lastAssessed, 0)
		m.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate concept mastery: %w", err)
	}
	return out, nil
}

// PurgeTranscriptsBefore deletes transcripts and usage metrics older
// than the cutoff.
func (s *SQLiteStore) PurgeTranscriptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	threshold := cutoff.Unix()

	result, err := s.db.ExecContext(ctx, `DELETE FROM session_transcripts WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("purge transcripts: %w", err)
	}
	transcripts, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purged transcripts rows affected: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM usage_metrics WHERE timestamp < ?`, threshold); err != nil {
		return transcripts, fmt.Errorf("purge usage metrics: %w", err)
	}

	return transcripts, nil
}

// DeleteIdleStudents removes students not seen since the cutoff.
func (s *SQLiteStore) DeleteIdleStudents(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE last_seen_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete idle students: %w", err)
	}
	return result.RowsAffected()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
