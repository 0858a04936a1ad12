package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/braincell-ai/braincell/internal/domain"
)

// RemoteConfig configures the chat-completions provider.
type RemoteConfig struct {
	URL     string // e.g. https://openrouter.ai/api/v1/chat/completions
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Remote composes replies through an OpenAI-compatible chat-completions
// endpoint. The provider is instructed to return a single JSON object
// matching the AIResponse shape; anything else is an error and the
// caller falls back to templates.
type Remote struct {
	cfg RemoteConfig
	c   *http.Client
}

// NewRemote creates a remote composer.
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Remote{
		cfg: cfg,
		c:   &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = "You are BrainCell, a multimodal learning assistant. " +
	"Always respond with a JSON object containing: responseType, content, and knowledgeGraphDelta."

// Compose sends the tutoring prompt and parses the JSON reply.
func (r *Remote) Compose(ctx context.Context, c Context) (*domain.AIResponse, error) {
	prompt, expected := BuildPrompt(c)

	body, err := json.Marshal(chatRequest{
		Model: r.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		const maxErr = 4096
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErr))
		return nil, fmt.Errorf("provider %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	return parsePayload(chat.Choices[0].Message.Content, expected)
}

// parsePayload extracts the JSON object from the model output, which
// may be wrapped in prose or fences, and fills missing fields with
// sensible defaults.
func parsePayload(raw string, expected domain.ResponseType) (*domain.AIResponse, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var out domain.AIResponse
	if err := json.Unmarshal(obj, &out); err != nil {
		return nil, fmt.Errorf("invalid payload structure: %w", err)
	}
	if out.Content == "" {
		return nil, fmt.Errorf("payload missing content")
	}
	if domain.ParseResponseType(string(out.ResponseType)) == "" {
		out.ResponseType = expected
	}
	if out.KnowledgeGraphDelta.Nodes == nil {
		out.KnowledgeGraphDelta.Nodes = []domain.KnowledgeGraphNode{}
	}
	if out.KnowledgeGraphDelta.Edges == nil {
		out.KnowledgeGraphDelta.Edges = []domain.KnowledgeGraphEdge{}
	}
	return &out, nil
}

func extractJSONObject(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if json.Valid([]byte(raw)) {
		return []byte(raw), nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	snippet := []byte(raw[start : end+1])
	if !json.Valid(snippet) {
		return nil, fmt.Errorf("malformed JSON object in model output")
	}
	return snippet, nil
}
