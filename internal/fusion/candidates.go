package fusion

import (
	"strings"

	"github.com/braincell-ai/braincell/internal/domain"
)

// RankCandidates formats a classifier's candidate list for display:
// labels are lowercased, upstream order and scores are kept as-is. A
// nil input yields nil (not an empty list) so the UI can distinguish
// "no data" from "zero candidates".
func RankCandidates(raw []domain.Candidate) []domain.Candidate {
	if raw == nil {
		return nil
	}
	out := make([]domain.Candidate, len(raw))
	for i, c := range raw {
		out[i] = domain.Candidate{
			Label: strings.ToLower(c.Label),
			Score: c.Score,
		}
	}
	return out
}
