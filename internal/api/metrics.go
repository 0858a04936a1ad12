package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/braincell-ai/braincell/internal/classify"
	"github.com/go-chi/chi/v5"
)

// maxMediaBodySize bounds snapshot/clip payloads (8MB of base64).
const maxMediaBodySize = 8 << 20

// MetricsHandler proxies classifier calls and reports channel health.
type MetricsHandler struct {
	*Handler
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(base *Handler) *MetricsHandler {
	return &MetricsHandler{Handler: base}
}

// RegisterRoutes registers classifier metric routes.
func (h *MetricsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/metrics", func(r chi.Router) {
		r.Post("/facial", h.Facial)
		r.Post("/voice", h.Voice)
		r.Get("/health", h.ChannelHealth)
	})
}

type facialInput struct {
	Image string `json:"image"`
}

type vocalInput struct {
	Audio string `json:"audio"`
}

// Facial classifies one base64 webcam frame.
func (h *MetricsHandler) Facial(w http.ResponseWriter, r *http.Request) {
	var input facialInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMediaBodySize)).Decode(&input); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Image == "" {
		Error(w, http.StatusBadRequest, "image is required")
		return
	}

	res, err := h.classifier.Facial(r.Context(), input.Image)
	if err != nil {
		h.classifierError(w, "facial", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Voice classifies one base64 audio clip.
func (h *MetricsHandler) Voice(w http.ResponseWriter, r *http.Request) {
	var input vocalInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMediaBodySize)).Decode(&input); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Audio == "" {
		Error(w, http.StatusBadRequest, "audio is required")
		return
	}

	res, err := h.classifier.Vocal(r.Context(), input.Audio)
	if err != nil {
		h.classifierError(w, "vocal", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

func (h *MetricsHandler) classifierError(w http.ResponseWriter, channel string, err error) {
	if errors.Is(err, classify.ErrChannelDisabled) {
		Error(w, http.StatusServiceUnavailable, channel+" channel not configured")
		return
	}
	slog.Warn("Classifier call failed", "channel", channel, "error", err)
	Error(w, http.StatusBadGateway, channel+" classification failed")
}

// ChannelHealth reports the availability of each classifier channel.
func (h *MetricsHandler) ChannelHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	JSON(w, http.StatusOK, h.classifier.Health(ctx))
}
