package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/braincell-ai/braincell/internal/domain"
)

// Templates composes replies locally, one template per modality. This
// is the default path when no LLM provider is configured and the
// fallback when the remote call fails.
type Templates struct{}

// Compose never fails; the error return satisfies Composer.
func (Templates) Compose(_ context.Context, c Context) (*domain.AIResponse, error) {
	topic := c.Topic
	if topic == "" {
		topic = "General Exploration"
	}

	responseType, _ := Modality(c)
	var content string
	switch responseType {
	case domain.ResponseDiagram:
		content = diagramTemplate(topic)
	case domain.ResponseCode:
		content = codeTemplate(topic)
	default:
		content = fmt.Sprintf(
			"I'm reinforcing the core idea around %s. "+
				"Here's a quick recap followed by a suggested next question to deepen your understanding.",
			topic,
		)
	}

	node := domain.KnowledgeGraphNode{
		ID:    "node_" + strings.ReplaceAll(strings.ToLower(topic), " ", "_"),
		Type:  "concept",
		Label: topic,
	}

	return &domain.AIResponse{
		ResponseType:   responseType,
		Content:        content,
		CognitiveState: c.CognitiveState,
		KnowledgeGraphDelta: domain.KnowledgeGraphDelta{
			Nodes: []domain.KnowledgeGraphNode{node},
			Edges: []domain.KnowledgeGraphEdge{},
		},
	}, nil
}

func diagramTemplate(topic string) string {
	safe := sanitizeTopic(topic, 50)
	return fmt.Sprintf(`graph TD
    A["%s"] --> B["Core Concept"]
    A --> C["Key Components"]
    A --> D["Related Ideas"]
    B --> E["Foundation"]
    C --> F["Sub-topics"]
    D --> G["Connections"]
`, safe)
}

func codeTemplate(topic string) string {
	safe := sanitizeTopic(topic, 30)
	return fmt.Sprintf(`// Let's break down %s with a simple example
// Try changing the values and see what happens!

function explore() {
  // Change this value to experiment
  const value = 42;

  console.log("Starting with:", value);
  console.log("Doubled:", value * 2);
  console.log("Squared:", value ** 2);

  return value;
}

explore();`, safe)
}

// sanitizeTopic strips characters that would break Mermaid or code
// templates and caps the length.
func sanitizeTopic(topic string, maxLen int) string {
	r := strings.NewReplacer(`"`, "", "'", "", "\n", " ")
	s := r.Replace(topic)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
