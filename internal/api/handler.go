// Package api provides HTTP handlers for the BrainCell API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/braincell-ai/braincell/internal/classify"
	"github.com/braincell-ai/braincell/internal/domain"
	"github.com/braincell-ai/braincell/internal/mastery"
	"github.com/braincell-ai/braincell/internal/session"
	"github.com/braincell-ai/braincell/internal/store"
	"github.com/braincell-ai/braincell/internal/tutor"
)

const (
	persistQueueSize  = 100
	persistWorkers    = 4
	persistJobTimeout = 10 * time.Second
)

// persistJob carries the after-response bookkeeping for one analyzed
// exchange. Jobs run on a worker pool so a slow disk never delays the
// learner-facing reply.
type persistJob struct {
	transcript *domain.Transcript
	usage      *domain.UsageMetric

	// Concept tracking; empty conceptID skips it.
	studentID   string
	conceptID   string
	conceptName string
	topic       string
	state       domain.CognitiveState
}

// Handler provides common handler state and the async persist pool.
type Handler struct {
	repo                store.Repository
	classifier          *classify.Client
	tutorSvc            *tutor.Service
	tracker             *mastery.Tracker
	sessions            *session.Manager
	frontendRedirectURL string

	persistChan chan persistJob
	persistWg   sync.WaitGroup
	stopOnce    sync.Once
}

// NewHandler creates a new Handler and starts the persist worker pool.
func NewHandler(repo store.Repository, classifier *classify.Client, tutorSvc *tutor.Service, tracker *mastery.Tracker, sessions *session.Manager, frontendURL string) *Handler {
	h := &Handler{
		repo:                repo,
		classifier:          classifier,
		tutorSvc:            tutorSvc,
		tracker:             tracker,
		sessions:            sessions,
		frontendRedirectURL: frontendURL,
		persistChan:         make(chan persistJob, persistQueueSize),
	}

	for i := 0; i < persistWorkers; i++ {
		h.persistWg.Add(1)
		go h.persistWorker()
	}

	return h
}

// Stop drains and shuts down the persist worker pool. Safe to call
// more than once.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		close(h.persistChan)
		h.persistWg.Wait()
	})
}

func (h *Handler) persistWorker() {
	defer h.persistWg.Done()

	for job := range h.persistChan {
		h.processPersistJob(job)
	}
}

func (h *Handler) processPersistJob(job persistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), persistJobTimeout)
	defer cancel()

	if job.transcript != nil {
		if err := h.repo.InsertTranscript(ctx, job.transcript); err != nil {
			slog.Warn("Failed to persist transcript", "error", err, "session_id", job.transcript.SessionID)
		}
	}
	if job.usage != nil {
		if err := h.repo.RecordUsage(ctx, job.usage); err != nil {
			slog.Warn("Failed to record usage", "error", err, "session_id", job.usage.SessionID)
		}
	}
	if job.conceptID != "" && h.tracker != nil {
		if err := h.tracker.TrackInteraction(ctx, job.studentID, job.conceptID, job.conceptName, job.topic, job.state); err != nil {
			slog.Warn("Failed to track concept interaction", "error", err, "student_id", job.studentID)
		}
	}
}

// enqueuePersist hands the job to the pool, dropping it if the queue is
// full. Persistence failure never fails the learner-facing request.
func (h *Handler) enqueuePersist(job persistJob) {
	select {
	case h.persistChan <- job:
	default:
		slog.Warn("Persist queue full, dropping job", "student_id", job.studentID)
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// isDevelopment returns true if running in development mode.
func (h *Handler) isDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return h.frontendRedirectURL == "" ||
		strings.Contains(h.frontendRedirectURL, "localhost") ||
		strings.Contains(h.frontendRedirectURL, "127.0.0.1")
}
