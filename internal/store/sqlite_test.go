package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/braincell-ai/braincell/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStudentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	student := &domain.Student{
		StudentID:  "stu-1",
		Username:   "curious-otter",
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.UpsertStudent(ctx, student); err != nil {
		t.Fatalf("UpsertStudent failed: %v", err)
	}

	got, err := s.GetStudent(ctx, "stu-1")
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected student, got nil")
	}
	if got.Username != "curious-otter" {
		t.Errorf("Expected username curious-otter, got %s", got.Username)
	}
	if !got.LastSeenAt.Equal(now) {
		t.Errorf("Expected last_seen %v, got %v", now, got.LastSeenAt)
	}
}

func TestGetStudent_UnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetStudent(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for unknown student, got %+v", got)
	}
}

func TestUpsertStudent_UpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	student := &domain.Student{StudentID: "stu-1", Username: "first", LastSeenAt: now, CreatedAt: now, UpdatedAt: now}
	if err := s.UpsertStudent(ctx, student); err != nil {
		t.Fatalf("UpsertStudent failed: %v", err)
	}

	student.Username = "renamed"
	if err := s.UpsertStudent(ctx, student); err != nil {
		t.Fatalf("Second UpsertStudent failed: %v", err)
	}

	got, _ := s.GetStudent(ctx, "stu-1")
	if got.Username != "renamed" {
		t.Errorf("Expected renamed, got %s", got.Username)
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	tr := &domain.Transcript{
		SessionID:        "sess-1",
		StudentID:        "stu-1",
		Timestamp:        now,
		QueryText:        "why is my loop infinite",
		Friction:         domain.FrictionCounters{RephraseCount: 2, BackspaceCount: 14},
		VocalState:       domain.VocalStressed,
		FacialExpression: domain.FacialSad,
		CognitiveState:   domain.StateFrustrated,
		ResponseType:     domain.ResponseCode,
		ResponseContent:  "function explore() {}",
		GraphDelta: domain.KnowledgeGraphDelta{
			Nodes: []domain.KnowledgeGraphNode{{ID: "node_loops", Type: "concept", Label: "Loops"}},
			Edges: []domain.KnowledgeGraphEdge{},
		},
		LatencyMs: 412.5,
		Success:   true,
	}

	if err := s.InsertTranscript(ctx, tr); err != nil {
		t.Fatalf("InsertTranscript failed: %v", err)
	}

	got, err := s.RecentTranscripts(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("RecentTranscripts failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 transcript, got %d", len(got))
	}
	if got[0].ID == "" {
		t.Error("Expected generated ID")
	}
	if got[0].CognitiveState != domain.StateFrustrated {
		t.Errorf("Expected FRUSTRATED, got %s", got[0].CognitiveState)
	}
	if got[0].Friction.BackspaceCount != 14 {
		t.Errorf("Expected 14 backspaces, got %d", got[0].Friction.BackspaceCount)
	}
	if len(got[0].GraphDelta.Nodes) != 1 || got[0].GraphDelta.Nodes[0].ID != "node_loops" {
		t.Errorf("Expected graph delta node, got %+v", got[0].GraphDelta.Nodes)
	}
}

func TestRecentTranscripts_NewestFirstAndLimited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 5; i++ {
		tr := &domain.Transcript{
			SessionID:      "sess-1",
			StudentID:      "stu-1",
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
			QueryText:      "q",
			CognitiveState: domain.StateFocused,
			ResponseType:   domain.ResponseText,
			Success:        true,
		}
		if err := s.InsertTranscript(ctx, tr); err != nil {
			t.Fatalf("InsertTranscript %d failed: %v", i, err)
		}
	}

	got, err := s.RecentTranscripts(ctx, "sess-1", 3)
	if err != nil {
		t.Fatalf("RecentTranscripts failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 transcripts, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Errorf("Expected newest first, index %d is newer than %d", i, i-1)
		}
	}
}

func TestConceptMasteryUpsertAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	concepts := []struct {
		id    string
		level float64
	}{
		{"recursion", 0.7},
		{"loops", 0.3},
		{"variables", 0.5},
	}
	for _, c := range concepts {
		m := &domain.ConceptMastery{
			StudentID:    "stu-1",
			ConceptID:    c.id,
			ConceptName:  c.id,
			Topic:        "programming",
			MasteryLevel: c.level,
			Attempts:     1,
			LastAssessed: now,
			CreatedAt:    now,
		}
		if err := s.UpsertConceptMastery(ctx, m); err != nil {
			t.Fatalf("UpsertConceptMastery(%s) failed: %v", c.id, err)
		}
	}

	got, err := s.ListConceptMastery(ctx, "stu-1", "")
	if err != nil {
		t.Fatalf("ListConceptMastery failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	if got[0].ConceptID != "loops" {
		t.Errorf("Expected weakest concept first, got %s", got[0].ConceptID)
	}

	// Upsert same concept again should update, not duplicate.
	if err := s.UpsertConceptMastery(ctx, &domain.ConceptMastery{
		StudentID:    "stu-1",
		ConceptID:    "loops",
		ConceptName:  "loops",
		Topic:        "programming",
		MasteryLevel: 0.35,
		Attempts:     2,
		LastAssessed: now,
		CreatedAt:    now,
	}); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	single, err := s.GetConceptMastery(ctx, "stu-1", "loops")
	if err != nil {
		t.Fatalf("GetConceptMastery failed: %v", err)
	}
	if single.Attempts != 2 || single.MasteryLevel != 0.35 {
		t.Errorf("Expected updated record, got %+v", single)
	}

	got, _ = s.ListConceptMastery(ctx, "stu-1", "")
	if len(got) != 3 {
		t.Errorf("Expected still 3 records after upsert, got %d", len(got))
	}
}

func TestListConceptMastery_TopicFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for _, c := range []struct{ id, topic string }{
		{"bfs", "graphs"},
		{"loops", "programming"},
	} {
		if err := s.UpsertConceptMastery(ctx, &domain.ConceptMastery{
			StudentID: "stu-1", ConceptID: c.id, ConceptName: c.id, Topic: c.topic,
			MasteryLevel: 0.5, LastAssessed: now, CreatedAt: now,
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := s.ListConceptMastery(ctx, "stu-1", "graphs")
	if err != nil {
		t.Fatalf("ListConceptMastery failed: %v", err)
	}
	if len(got) != 1 || got[0].ConceptID != "bfs" {
		t.Errorf("Expected only bfs for topic graphs, got %+v", got)
	}
}

func TestPurgeTranscriptsBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now()

	for _, ts := range []time.Time{old, old.Add(time.Minute), fresh} {
		if err := s.InsertTranscript(ctx, &domain.Transcript{
			SessionID: "sess-1", StudentID: "stu-1", Timestamp: ts,
			QueryText: "q", CognitiveState: domain.StateFocused,
			ResponseType: domain.ResponseText, Success: true,
		}); err != nil {
			t.Fatalf("InsertTranscript failed: %v", err)
		}
	}
	if err := s.RecordUsage(ctx, &domain.UsageMetric{
		SessionID: "sess-1", Timestamp: old, Endpoint: "/api/session/analyze", Success: true,
	}); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	purged, err := s.PurgeTranscriptsBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeTranscriptsBefore failed: %v", err)
	}
	if purged != 2 {
		t.Errorf("Expected 2 purged transcripts, got %d", purged)
	}

	remaining, _ := s.RecentTranscripts(ctx, "sess-1", 10)
	if len(remaining) != 1 {
		t.Errorf("Expected 1 remaining transcript, got %d", len(remaining))
	}
}

func TestDeleteIdleStudents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for _, st := range []struct {
		id   string
		seen time.Time
	}{
		{"idle", now.Add(-72 * time.Hour)},
		{"active", now},
	} {
		if err := s.UpsertStudent(ctx, &domain.Student{
			StudentID: st.id, Username: st.id,
			LastSeenAt: st.seen, CreatedAt: st.seen, UpdatedAt: st.seen,
		}); err != nil {
			t.Fatalf("UpsertStudent failed: %v", err)
		}
	}

	deleted, err := s.DeleteIdleStudents(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteIdleStudents failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted student, got %d", deleted)
	}

	got, _ := s.GetStudent(ctx, "active")
	if got == nil {
		t.Error("Active student should survive")
	}
	gone, _ := s.GetStudent(ctx, "idle")
	if gone != nil {
		t.Error("Idle student should be deleted")
	}
}
