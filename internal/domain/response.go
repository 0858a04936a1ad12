package domain

// ResponseType selects the modality of a tutor response.
type ResponseType string

const (
	// ResponseText is a plain textual explanation.
	ResponseText ResponseType = "text"
	// ResponseDiagram is a Mermaid diagram.
	ResponseDiagram ResponseType = "diagram"
	// ResponseCode is a small runnable code sample.
	ResponseCode ResponseType = "code"
)

// ParseResponseType maps a raw string to a known response type.
// Unknown values return the empty value.
func ParseResponseType(s string) ResponseType {
	switch ResponseType(s) {
	case ResponseText, ResponseDiagram, ResponseCode:
		return ResponseType(s)
	}
	return ""
}

// KnowledgeGraphNode is one concept node in the learner's knowledge graph.
type KnowledgeGraphNode struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // "concept", "mastered", or "note"
	Label    string `json:"label"`
	Mastered bool   `json:"mastered"`
}

// KnowledgeGraphEdge links two concept nodes.
type KnowledgeGraphEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// KnowledgeGraphDelta is the incremental graph update attached to a
// tutor response.
type KnowledgeGraphDelta struct {
	Nodes []KnowledgeGraphNode `json:"nodes"`
	Edges []KnowledgeGraphEdge `json:"edges"`
}

// AIResponse is the tutor's reply for one learner query. CognitiveState
// echoes the server-computed fusion result; clients must treat it as
// display data, not as an override of their own engine state.
type AIResponse struct {
	ResponseType        ResponseType        `json:"responseType"`
	Content             string              `json:"content"`
	CognitiveState      CognitiveState      `json:"cognitiveState"`
	KnowledgeGraphDelta KnowledgeGraphDelta `json:"knowledgeGraphDelta"`
	Metrics             map[string]any      `json:"metrics,omitempty"`
}
