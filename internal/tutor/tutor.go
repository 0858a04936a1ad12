// Package tutor selects the response modality for the learner's current
// cognitive state and composes the tutor reply, either from local
// templates or from a remote LLM provider with template fallback.
package tutor

import (
	"context"
	"log/slog"

	"github.com/braincell-ai/braincell/internal/domain"
)

// Context carries everything the composer needs for one reply.
type Context struct {
	SessionID        string
	Topic            string
	QueryText        string
	CognitiveState   domain.CognitiveState
	History          []HistoryEntry
	Objectives       []string
	KnowledgeNodes   []string
	LastResponseType domain.ResponseType
	Friction         domain.FrictionCounters
	VocalState       domain.VocalState
	FacialExpression domain.FacialExpression
}

// HistoryEntry is one prior exchange turn.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// directive pairs the preferred modality with guidance for the prompt.
type directive struct {
	responseType domain.ResponseType
	guidance     string
}

var modalityDirectives = map[domain.CognitiveState]directive{
	domain.StateFocused: {
		domain.ResponseText,
		"Deliver a concise textual explanation that builds intuition, then reinforce with a short checklist of key points.",
	},
	domain.StateConfused: {
		domain.ResponseDiagram,
		"Use a Mermaid diagram to visualise relationships. Start with a one-sentence anchor explanation, then provide the diagram.",
	},
	domain.StateFrustrated: {
		domain.ResponseCode,
		"Present a small, runnable code sample with inline comments. Follow with a quick experiment suggestion.",
	},
}

// Modality returns the preferred response type and prompt guidance for
// the context. Sustained focus after a textual reply switches to a
// diagram to avoid repetition.
func Modality(c Context) (domain.ResponseType, string) {
	d, ok := modalityDirectives[c.CognitiveState]
	if !ok {
		return domain.ResponseText, "Provide a clear textual explanation and highlight key takeaways."
	}
	if c.CognitiveState == domain.StateFocused && c.LastResponseType == d.responseType {
		return domain.ResponseDiagram,
			"Learner remains focused after a textual response. Offer a quick visual (Mermaid diagram) to deepen understanding."
	}
	return d.responseType, d.guidance
}

// Composer produces a tutor reply for a context.
type Composer interface {
	Compose(ctx context.Context, c Context) (*domain.AIResponse, error)
}

// Service composes replies, preferring the remote composer when one is
// configured and falling back to templates on any failure. The fused
// cognitive state computed by the caller stays authoritative: whatever
// a remote model echoes back is overwritten.
type Service struct {
	remote Composer
	logger *slog.Logger
}

// NewService creates a tutor service. remote may be nil, in which case
// every reply comes from the template composer.
func NewService(remote Composer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{remote: remote, logger: logger}
}

// Respond returns the reply and whether the template fallback was used.
func (s *Service) Respond(ctx context.Context, c Context) (*domain.AIResponse, bool) {
	if s.remote != nil {
		resp, err := s.remote.Compose(ctx, c)
		if err == nil {
			resp.CognitiveState = c.CognitiveState
			return resp, false
		}
		s.logger.Warn("remote composer failed, serving template response",
			"session_id", c.SessionID, "error", err)
	}

	resp, _ := Templates{}.Compose(ctx, c)
	return resp, s.remote != nil
}
