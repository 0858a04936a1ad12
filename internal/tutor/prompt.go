package tutor

import (
	"fmt"
	"strings"

	"github.com/braincell-ai/braincell/internal/domain"
)

// BuildPrompt renders the tutoring prompt for a remote provider and
// returns it with the expected response modality.
func BuildPrompt(c Context) (string, domain.ResponseType) {
	responseType, guidance := Modality(c)

	friction := fmt.Sprintf("%d rephrases, %d backspaces", c.Friction.RephraseCount, c.Friction.BackspaceCount)
	vocal := "Not detected"
	if c.VocalState != "" {
		vocal = string(c.VocalState)
	}
	facial := "Not detected"
	if c.FacialExpression != "" {
		facial = string(c.FacialExpression)
	}
	lastModality := "None yet"
	if c.LastResponseType != "" {
		lastModality = string(c.LastResponseType)
	}
	topic := c.Topic
	if topic == "" {
		topic = "General Exploration"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are BrainCell, an adaptive learning copilot. Tailor the modality and depth of your response to help the learner break through their current obstacle.

## Session Metadata
- Session ID: %s
- Topic: %s
- Cognitive State: %s
- Recommended Modality: %s
- Previous Modality: %s

## Learner Signals
- Text Friction Summary: %s
- Vocal State: %s
- Facial Expression: %s

## Learner Question
%s

## Conversation History (most recent first)
%s

## Learning Objectives
%s

## Knowledge Graph Snapshot
%s

## Modality Guidance
%s

## Output Contract
- Respond with a single JSON object (no Markdown fences) containing keys: responseType, content, cognitiveState, knowledgeGraphDelta.
- responseType should normally be %q. Switch only if the situation demands it and explain briefly inside content.
- content must align with the chosen modality (plain text, Mermaid diagram, or executable code) and include actionable next steps.
- knowledgeGraphDelta.nodes should introduce up to 2 new concepts with id, type, label, and mastered (boolean).
- knowledgeGraphDelta.edges should link new concepts to prior ones when relevant.
- Keep JSON valid and concise.

If information is missing, make a best-effort inference and note assumptions within the content field.`,
		c.SessionID, topic, c.CognitiveState, responseType, lastModality,
		friction, vocal, facial,
		strings.TrimSpace(c.QueryText),
		renderHistory(c.History),
		renderBullets(c.Objectives, "No explicit objectives logged yet."),
		renderBullets(c.KnowledgeNodes, "Graph is empty. Introduce foundational concepts."),
		guidance,
		string(responseType),
	)

	return b.String(), responseType
}

// renderHistory lists the most recent exchanges first, collapsed to
// single lines, capped at six turns.
func renderHistory(history []HistoryEntry) string {
	if len(history) == 0 {
		return "- (no previous exchanges)"
	}
	start := len(history) - 6
	if start < 0 {
		start = 0
	}
	recent := history[start:]

	var lines []string
	for i := len(recent) - 1; i >= 0; i-- {
		entry := recent[i]
		sanitized := strings.Join(strings.Fields(entry.Content), " ")
		lines = append(lines, fmt.Sprintf("- %d. %s: %s", len(recent)-i, entry.Role, sanitized))
	}
	return strings.Join(lines, "\n")
}

func renderBullets(items []string, fallback string) string {
	if len(items) == 0 {
		return "- " + fallback
	}
	var lines []string
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
