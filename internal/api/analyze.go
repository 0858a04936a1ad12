package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/braincell-ai/braincell/internal/domain"
	"github.com/braincell-ai/braincell/internal/fusion"
	"github.com/braincell-ai/braincell/internal/identity"
	"github.com/braincell-ai/braincell/internal/tutor"
	"github.com/go-chi/chi/v5"
)

// maxAnalyzeBodySize bounds analyze request bodies (1MB).
const maxAnalyzeBodySize = 1 << 20

// UserInput is the analyze request: the learner query plus the signal
// snapshot captured client-side at submit time.
type UserInput struct {
	SessionID        string                  `json:"sessionId"`
	QueryText        string                  `json:"queryText"`
	TextFriction     domain.FrictionCounters `json:"textFriction"`
	FacialExpression string                  `json:"facialExpression,omitempty"`
	VocalState       string                  `json:"vocalState,omitempty"`
	Topic            string                  `json:"topic,omitempty"`
	ConceptID        string                  `json:"conceptId,omitempty"`
	ConceptName      string                  `json:"conceptName,omitempty"`
	Objectives       []string                `json:"objectives,omitempty"`
	KnowledgeNodes   []string                `json:"knowledgeNodes,omitempty"`
	History          []tutor.HistoryEntry    `json:"history,omitempty"`
	LastResponseType string                  `json:"lastResponseType,omitempty"`
}

// SessionHandler handles the analyze and metrics endpoints.
type SessionHandler struct {
	*Handler
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{Handler: base}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Post("/analyze", h.Analyze)
		r.Post("/metrics", h.Metrics)
	})
}

// fusionSnapshot resolves the evidence used for one fusion pass:
// request-supplied labels win, a live stream session fills the gaps.
type fusionSnapshot struct {
	facial   domain.FacialExpression
	vocal    domain.VocalState
	friction domain.FrictionCounters
	live     bool
}

func (h *SessionHandler) snapshot(studentID, sessionID string, input *UserInput) fusionSnapshot {
	snap := fusionSnapshot{
		facial:   domain.ParseFacialExpression(input.FacialExpression),
		vocal:    domain.ParseVocalState(input.VocalState),
		friction: input.TextFriction,
	}

	live := h.sessions.Get(studentID, sessionID)
	if live == nil {
		return snap
	}
	snap.live = true

	facial, vocal := live.Engine.Channels()
	if snap.facial == "" {
		snap.facial = facial
	}
	if snap.vocal == "" {
		snap.vocal = vocal
	}
	// The live tracker saw every keystroke; its counters are more
	// trustworthy than whatever the client echoes back.
	if counters := live.Engine.Counters(); counters.RephraseCount > 0 || counters.BackspaceCount > 0 {
		snap.friction = counters
	}
	return snap
}

// Analyze fuses the signal snapshot into a cognitive state and composes
// an adaptive tutor response.
func (h *SessionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	studentID := identity.StudentIDFromContext(r.Context())

	var input UserInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBodySize)).Decode(&input); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.QueryText == "" {
		Error(w, http.StatusBadRequest, "queryText is required")
		return
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = identity.SessionIDFromContext(r.Context())
	}

	snap := h.snapshot(studentID, sessionID, &input)
	state := fusion.Fuse(snap.facial, snap.vocal, snap.friction)

	resp, fellBack := h.tutorSvc.Respond(r.Context(), tutor.Context{
		SessionID:        sessionID,
		Topic:            input.Topic,
		QueryText:        input.QueryText,
		CognitiveState:   state,
		History:          input.History,
		Objectives:       input.Objectives,
		KnowledgeNodes:   input.KnowledgeNodes,
		LastResponseType: domain.ParseResponseType(input.LastResponseType),
		Friction:         snap.friction,
		VocalState:       snap.vocal,
		FacialExpression: snap.facial,
	})

	// Submit ends the typing burst: the live tracker starts fresh for
	// the next message.
	if live := h.sessions.Get(studentID, sessionID); live != nil {
		live.Engine.ResetFriction()
	}

	latency := float64(time.Since(start).Milliseconds())
	resp.Metrics = map[string]any{
		"latencyMs":      latency,
		"fellBack":       fellBack,
		"liveSession":    snap.live,
		"rephraseCount":  snap.friction.RephraseCount,
		"backspaceCount": snap.friction.BackspaceCount,
	}

	h.enqueuePersist(persistJob{
		transcript: &domain.Transcript{
			SessionID:        sessionID,
			StudentID:        studentID,
			Timestamp:        start,
			QueryText:        input.QueryText,
			Friction:         snap.friction,
			VocalState:       snap.vocal,
			FacialExpression: snap.facial,
			CognitiveState:   state,
			ResponseType:     resp.ResponseType,
			ResponseContent:  resp.Content,
			GraphDelta:       resp.KnowledgeGraphDelta,
			LatencyMs:        latency,
			Success:          !fellBack,
		},
		usage: &domain.UsageMetric{
			SessionID: sessionID,
			Timestamp: start,
			Endpoint:  "/api/session/analyze",
			LatencyMs: latency,
			Success:   true,
		},
		studentID:   studentID,
		conceptID:   input.ConceptID,
		conceptName: input.ConceptName,
		topic:       input.Topic,
		state:       state,
	})

	slog.Info("Analyzed learner query",
		"student_id", studentID,
		"session_id", sessionID,
		"state", state,
		"response_type", resp.ResponseType,
		"fell_back", fellBack,
		"latency_ms", latency)

	JSON(w, http.StatusOK, resp)
}

// metricsResponse is the analytics-only fusion view.
type metricsResponse struct {
	CognitiveState   domain.CognitiveState   `json:"cognitiveState"`
	Friction         domain.FrictionCounters `json:"friction"`
	FacialExpression string                  `json:"facialExpression,omitempty"`
	VocalState       string                  `json:"vocalState,omitempty"`
	LiveSession      bool                    `json:"liveSession"`
	Intensity        *float64                `json:"intensity,omitempty"`
}

// Metrics runs the fusion pass without composing a response, for
// dashboards that only want the cognitive readout.
func (h *SessionHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	studentID := identity.StudentIDFromContext(r.Context())

	var input UserInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBodySize)).Decode(&input); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = identity.SessionIDFromContext(r.Context())
	}

	snap := h.snapshot(studentID, sessionID, &input)
	out := metricsResponse{
		CognitiveState:   fusion.Fuse(snap.facial, snap.vocal, snap.friction),
		Friction:         snap.friction,
		FacialExpression: string(snap.facial),
		VocalState:       string(snap.vocal),
		LiveSession:      snap.live,
	}
	if live := h.sessions.Get(studentID, sessionID); live != nil {
		v := live.Engine.Intensity()
		out.Intensity = &v
	}

	JSON(w, http.StatusOK, out)
}
