package usecase

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"zappy-core/internal/domain/entity"
)

type modelRecommendation struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Explanation string `json:"explanation"`
}

// DecodeRecommendations accepts either a bare JSON array or an object with a
// single key holding the array. Items without a title are skipped; fewer than
// three usable items is malformed output, extra items are dropped.
func DecodeRecommendations(content string) ([]entity.Recommendation, error) {
	data := bytes.TrimSpace([]byte(content))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty content", entity.ErrMalformedModelOutput)
	}

	var items []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrMalformedModelOutput, err)
		}
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrMalformedModelOutput, err)
		}
		if len(wrapper) != 1 {
			return nil, fmt.Errorf("%w: wrapper object has %d keys", entity.ErrMalformedModelOutput, len(wrapper))
		}
		for key, inner := range wrapper {
			if err := json.Unmarshal(inner, &items); err != nil {
				return nil, fmt.Errorf("%w: %q is not an array", entity.ErrMalformedModelOutput, key)
			}
		}
	default:
		return nil, fmt.Errorf("%w: not a JSON array or object", entity.ErrMalformedModelOutput)
	}

	recs := make([]entity.Recommendation, 0, entity.RecommendationsPerRequest)
	for _, raw := range items {
		var m modelRecommendation
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		title := strings.TrimSpace(m.Title)
		if title == "" {
			continue
		}
		recs = append(recs, entity.Recommendation{
			Title:       title,
			Category:    entity.Category(m.Category),
			Explanation: strings.TrimSpace(m.Explanation),
		})
		if len(recs) == entity.RecommendationsPerRequest {
			return recs, nil
		}
	}
	return nil, fmt.Errorf("%w: got %d usable recommendations, want %d", entity.ErrMalformedModelOutput, len(recs), entity.RecommendationsPerRequest)
}
