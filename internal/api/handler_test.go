package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/braincell-ai/braincell/internal/classify"
	"github.com/braincell-ai/braincell/internal/domain"
	"github.com/braincell-ai/braincell/internal/identity"
	"github.com/braincell-ai/braincell/internal/mastery"
	"github.com/braincell-ai/braincell/internal/session"
	"github.com/braincell-ai/braincell/internal/store"
	"github.com/braincell-ai/braincell/internal/tutor"
	"github.com/go-chi/chi/v5"
)

func newTestAPI(t *testing.T) (*httptest.Server, *Handler, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	h := NewHandler(
		repo,
		classify.New("", ""),
		tutor.NewService(nil, nil),
		mastery.NewTracker(repo, nil),
		session.NewManager(),
		"",
	)
	t.Cleanup(h.Stop)

	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	NewSessionHandler(h).RegisterRoutes(r)
	NewMetricsHandler(h).RegisterRoutes(r)
	NewReportHandler(h).RegisterRoutes(r)
	NewHealthHandler(h).RegisterHealth(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h, repo
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAnalyze_VocalFrustrationGetsCodeResponse(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/api/session/analyze", UserInput{
		SessionID:  "sess-1",
		QueryText:  "why does my recursion never stop",
		Topic:      "Recursion",
		VocalState: "frustrated",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var out domain.AIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.CognitiveState != domain.StateFrustrated {
		t.Errorf("Expected FRUSTRATED, got %s", out.CognitiveState)
	}
	if out.ResponseType != domain.ResponseCode {
		t.Errorf("Expected code modality, got %s", out.ResponseType)
	}
	if out.Content == "" {
		t.Error("Expected non-empty content")
	}
	if out.Metrics["fellBack"] != false {
		t.Errorf("Expected fellBack=false with template composer, got %v", out.Metrics["fellBack"])
	}
}

func TestAnalyze_PersistsTranscriptAsync(t *testing.T) {
	srv, h, repo := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/api/session/analyze", UserInput{
		SessionID:    "sess-persist",
		QueryText:    "what is a pointer",
		Topic:        "Memory",
		ConceptID:    "pointers",
		ConceptName:  "Pointers",
		TextFriction: domain.FrictionCounters{RephraseCount: 2, BackspaceCount: 11},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	// Stop drains the persist pool.
	h.Stop()

	transcripts, err := repo.RecentTranscripts(context.Background(), "sess-persist", 10)
	if err != nil {
		t.Fatalf("RecentTranscripts failed: %v", err)
	}
	if len(transcripts) != 1 {
		t.Fatalf("Expected 1 transcript, got %d", len(transcripts))
	}
	// rephrase 2 (+3) and backspace 11 (+2) score 5 -> CONFUSED.
	if transcripts[0].CognitiveState != domain.StateConfused {
		t.Errorf("Expected CONFUSED transcript, got %s", transcripts[0].CognitiveState)
	}
	if transcripts[0].QueryText != "what is a pointer" {
		t.Errorf("Unexpected query text %q", transcripts[0].QueryText)
	}
}

func TestAnalyze_MissingQueryText(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/api/session/analyze", UserInput{SessionID: "sess-1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestMetrics_FacialSadReadsConfused(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/api/session/metrics", UserInput{
		SessionID:        "sess-1",
		FacialExpression: "sad",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		CognitiveState string `json:"cognitiveState"`
		LiveSession    bool   `json:"liveSession"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.CognitiveState != "CONFUSED" {
		t.Errorf("Expected CONFUSED, got %s", out.CognitiveState)
	}
	if out.LiveSession {
		t.Error("Expected no live session")
	}
}

func TestFacialProxy_DisabledChannel(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/api/metrics/facial", map[string]string{"image": "aGVsbG8="})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for disabled channel, got %d", resp.StatusCode)
	}
}

func TestChannelHealth_BothDisabled(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/api/metrics/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var out classify.Status
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.Facial != "disabled" || out.Vocal != "disabled" {
		t.Errorf("Expected disabled channels, got %+v", out)
	}
}

func TestLearningReport_EmptyStudent(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/api/learning-report/ghost")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var report mastery.GapReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if report.TotalConcepts != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
	if len(report.Recommendations) != 1 || !strings.Contains(report.Recommendations[0], "Start learning") {
		t.Errorf("Expected starter recommendation, got %v", report.Recommendations)
	}
}

func TestProgress_GroupsByTopic(t *testing.T) {
	srv, _, repo := newTestAPI(t)

	ctx := context.Background()
	for _, c := range []struct {
		id, topic string
		level     float64
	}{
		{"bfs", "graphs", 0.8},
		{"loops", "programming", 0.2},
	} {
		if err := repo.UpsertConceptMastery(ctx, &domain.ConceptMastery{
			StudentID: "stu-1", ConceptID: c.id, ConceptName: c.id,
			Topic: c.topic, MasteryLevel: c.level,
		}); err != nil {
			t.Fatalf("Seed failed: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/api/progress/stu-1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var progress mastery.ProgressReport
	if err := json.NewDecoder(resp.Body).Decode(&progress); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if progress.TotalConcepts != 2 || len(progress.Topics) != 2 {
		t.Fatalf("Expected 2 concepts in 2 topics, got %+v", progress)
	}
	if progress.Topics[0].Topic != "graphs" {
		t.Errorf("Expected strongest topic first, got %+v", progress.Topics)
	}
}

func TestHealth_ReportsChecks(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.Status != "healthy" {
		t.Errorf("Expected healthy, got %s", out.Status)
	}
	if out.Checks["database"] != "ok" {
		t.Errorf("Expected database ok, got %+v", out.Checks)
	}
	if out.Checks["facial_classifier"] != "disabled" {
		t.Errorf("Expected facial disabled, got %+v", out.Checks)
	}
}
