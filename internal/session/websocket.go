package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/braincell-ai/braincell/internal/classify"
	"github.com/braincell-ai/braincell/internal/domain"
	"github.com/braincell-ai/braincell/internal/fusion"
	"github.com/braincell-ai/braincell/internal/identity"
	"github.com/braincell-ai/braincell/internal/store"
	"github.com/coder/websocket"
)

// intensityEvery controls how many decay ticks pass between pushed
// intensity events. At the 60Hz reference tick this is ~6 events/sec.
const intensityEvery = 10

// WebSocketHandler streams learner signals into a per-session fusion
// engine and pushes state transitions back.
type WebSocketHandler struct {
	repo          store.Repository
	classifier    *classify.Client
	mgr           *Manager
	allowedOrigin string
	isDev         bool
	decayTick     time.Duration
	channelTTL    time.Duration
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(repo store.Repository, classifier *classify.Client, mgr *Manager, allowedOrigin string, isDev bool, decayTick, channelTTL time.Duration) *WebSocketHandler {
	if decayTick <= 0 {
		decayTick = time.Second / 60
	}
	return &WebSocketHandler{
		repo:          repo,
		classifier:    classifier,
		mgr:           mgr,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		decayTick:     decayTick,
		channelTTL:    channelTTL,
	}
}

// wsEvent is the JSON envelope for every client and server event on the
// signal stream, dispatched by Type.
type wsEvent struct {
	Type       string             `json:"type"`
	Content    string             `json:"content,omitempty"`
	TS         int64              `json:"ts,omitempty"`
	Label      string             `json:"label,omitempty"`
	Score      float64            `json:"score,omitempty"`
	Candidates []domain.Candidate `json:"candidates,omitempty"`
	Image      string             `json:"image,omitempty"`
	Audio      string             `json:"audio,omitempty"`
	State      string             `json:"state,omitempty"`
	Value      float64            `json:"value,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	studentID := identity.StudentIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("Signal stream connection request", "student_id", studentID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "student_id", studentID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "student_id", studentID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	opts := []fusion.EngineOption{fusion.WithDecayTick(h.decayTick)}
	if h.channelTTL > 0 {
		opts = append(opts, fusion.WithChannelTTL(h.channelTTL))
	}

	sess := &Session{
		StudentID: studentID,
		SessionID: sessionID,
		Engine:    fusion.NewEngine(opts...),
		conn:      ws,
	}
	sess.Engine.SetOnChange(func(state domain.CognitiveState) {
		h.push(ctx, sess, wsEvent{Type: "state", State: string(state)})
	})

	h.mgr.Register(sess)
	defer h.mgr.Unregister(sess)

	go h.decayLoop(ctx, sess)

	h.inputLoop(ctx, sess)
	slog.Info("Signal stream ended", "student_id", studentID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// decayLoop drives the intensity meter at the configured cadence and
// pushes periodic intensity events. Stops when the session context is
// canceled.
func (h *WebSocketHandler) decayLoop(ctx context.Context, sess *Session) {
	ticker := time.NewTicker(h.decayTick)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ticker.C:
			sess.Engine.TickDecay()
			ticks++
			if ticks%intensityEvery == 0 {
				h.push(ctx, sess, wsEvent{Type: "intensity", Value: sess.Engine.Intensity()})
			}
		case <-ctx.Done():
			return
		}
	}
}

//nolint:gocognit // Event dispatch coordinates websocket, engine, and classifier state.
func (h *WebSocketHandler) inputLoop(ctx context.Context, sess *Session) {
	for {
		_, message, err := sess.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "student_id", sess.StudentID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "student_id", sess.StudentID)
			}
			return
		}

		var ev wsEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			slog.Debug("Dropping malformed signal event", "error", err, "student_id", sess.StudentID)
			continue
		}

		switch ev.Type {
		case "text":
			h.handleText(sess, ev)
		case "facial":
			sess.Engine.OnFacialResult(domain.ParseFacialExpression(ev.Label), fusion.RankCandidates(ev.Candidates))
		case "vocal":
			sess.Engine.OnVocalResult(domain.ParseVocalState(ev.Label), fusion.RankCandidates(ev.Candidates))
		case "snapshot":
			// Fire-and-forget: a slow facial call never delays the
			// vocal channel or the stream itself.
			go h.classifyFacial(ctx, sess, ev.Image)
		case "clip":
			go h.classifyVocal(ctx, sess, ev.Audio)
		case "submit":
			sess.Engine.ResetFriction()
		case "ping":
			h.push(ctx, sess, wsEvent{Type: "pong"})
		default:
			slog.Debug("Unknown signal event type", "type", ev.Type, "student_id", sess.StudentID)
		}

		// Update last seen asynchronously with timeout.
		go func() {
			updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.repo.UpdateLastSeen(updateCtx, sess.StudentID, time.Now()); err != nil {
				slog.Warn("Failed to update last seen", "error", err)
			}
		}()
	}
}

// handleText feeds the friction tracker and spikes the intensity meter:
// a shrinking buffer reads as a deletion burst, anything else as a
// keystroke.
func (h *WebSocketHandler) handleText(sess *Session, ev wsEvent) {
	ts := ev.TS
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	before := sess.Engine.Counters()
	sess.Engine.OnTextChanged(ev.Content, ts)
	after := sess.Engine.Counters()

	if after.BackspaceCount > before.BackspaceCount {
		sess.Engine.SpikeIntensity(fusion.SpikeBackspace)
	} else {
		sess.Engine.SpikeIntensity(fusion.SpikeKeystroke)
	}
}

func (h *WebSocketHandler) classifyFacial(ctx context.Context, sess *Session, imageB64 string) {
	if h.classifier == nil || !h.classifier.FacialEnabled() {
		h.push(ctx, sess, wsEvent{Type: "facial", Error: "channel_disabled"})
		return
	}

	res, err := h.classifier.Facial(ctx, imageB64)
	if err != nil {
		slog.Warn("Facial classification failed", "error", err, "student_id", sess.StudentID)
		h.push(ctx, sess, wsEvent{Type: "facial", Error: "classification_failed"})
		return
	}

	sess.Engine.OnFacialResult(domain.ParseFacialExpression(res.Label), res.Candidates)
	h.push(ctx, sess, wsEvent{Type: "facial", Label: res.Label, Score: res.Score, Candidates: res.Candidates})
}

func (h *WebSocketHandler) classifyVocal(ctx context.Context, sess *Session, audioB64 string) {
	if h.classifier == nil || !h.classifier.VocalEnabled() {
		h.push(ctx, sess, wsEvent{Type: "vocal", Error: "channel_disabled"})
		return
	}

	res, err := h.classifier.Vocal(ctx, audioB64)
	if err != nil {
		slog.Warn("Vocal classification failed", "error", err, "student_id", sess.StudentID)
		h.push(ctx, sess, wsEvent{Type: "vocal", Error: "classification_failed"})
		return
	}

	sess.Engine.OnVocalResult(domain.ParseVocalState(res.Label), res.Candidates)
	h.push(ctx, sess, wsEvent{Type: "vocal", Label: res.Label, Score: res.Score, Candidates: res.Candidates})
}

func (h *WebSocketHandler) push(ctx context.Context, sess *Session, ev wsEvent) {
	if ctx.Err() != nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal signal event", "error", err)
		return
	}
	if err := sess.Send(ctx, data); err != nil {
		slog.Debug("WebSocket push failed", "error", err, "student_id", sess.StudentID)
	}
}
