package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ReportHandler serves learning-gap reports and progress overviews.
type ReportHandler struct {
	*Handler
}

// NewReportHandler creates a new report handler.
func NewReportHandler(base *Handler) *ReportHandler {
	return &ReportHandler{Handler: base}
}

// RegisterRoutes registers report routes.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/learning-report/{studentID}", h.LearningReport)
	r.Get("/api/progress/{studentID}", h.Progress)
}

// LearningReport returns the knowledge-gap report for a student,
// optionally scoped by the topic query parameter.
func (h *ReportHandler) LearningReport(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		Error(w, http.StatusBadRequest, "studentID is required")
		return
	}

	report, err := h.tracker.Report(r.Context(), studentID, r.URL.Query().Get("topic"))
	if err != nil {
		slog.Error("Failed to build learning report", "error", err, "student_id", studentID)
		Error(w, http.StatusInternalServerError, "failed to build learning report")
		return
	}
	JSON(w, http.StatusOK, report)
}

// Progress returns the cross-topic progress overview for a student.
func (h *ReportHandler) Progress(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		Error(w, http.StatusBadRequest, "studentID is required")
		return
	}

	progress, err := h.tracker.Progress(r.Context(), studentID)
	if err != nil {
		slog.Error("Failed to build progress report", "error", err, "student_id", studentID)
		Error(w, http.StatusInternalServerError, "failed to build progress report")
		return
	}
	JSON(w, http.StatusOK, progress)
}

// HealthHandler handles the service health endpoint.
type HealthHandler struct {
	*Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(base *Handler) *HealthHandler {
	return &HealthHandler{Handler: base}
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health reports the API, database, and classifier status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		checks["database"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	channels := h.classifier.Health(ctx)
	checks["facial_classifier"] = channels.Facial
	checks["vocal_classifier"] = channels.Vocal

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
