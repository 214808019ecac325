package usecase

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/domain/repository"
	"zappy-core/internal/logging"
	"zappy-core/internal/metrics"
)

// SemanticCache reuses recommendations generated for equivalent preferences.
// Candidates come from a vector search scoped to the category and are
// confirmed by the evaluator before they are served.
type SemanticCache struct {
	embedder  repository.Embedder
	store     repository.VectorStore
	evaluator repository.Evaluator // optional
	threshold float32
}

func NewSemanticCache(embedder repository.Embedder, store repository.VectorStore, evaluator repository.Evaluator, threshold float32) *SemanticCache {
	return &SemanticCache{embedder: embedder, store: store, evaluator: evaluator, threshold: threshold}
}

func cacheKey(category entity.Category, preferences string) string {
	return fmt.Sprintf("%s: %s", category, preferences)
}

func (c *SemanticCache) Lookup(ctx context.Context, category entity.Category, preferences string) ([]entity.Recommendation, bool) {
	key := cacheKey(category, preferences)

	// 1. Embed the preference set
	vector, err := c.embedder.CreateEmbedding(ctx, key)
	if err != nil {
		logging.Warn().Err(err).Msg("[CACHE] Embedding failed")
		metrics.CacheLookups.WithLabelValues("recommendations", "error").Inc()
		return nil, false
	}

	// 2. Nearest neighbour within the category
	resp, score, cachedKey, err := c.store.Search(ctx, vector, c.threshold, map[string]string{"category": string(category)})
	if err != nil {
		logging.Warn().Err(err).Msg("[CACHE] Vector search failed")
		metrics.CacheLookups.WithLabelValues("recommendations", "error").Inc()
		return nil, false
	}
	if resp == nil {
		metrics.CacheLookups.WithLabelValues("recommendations", "miss").Inc()
		return nil, false
	}

	// 3. Confirm the intent really matches
	if c.evaluator != nil && !c.evaluator.IsMatch(ctx, key, cachedKey) {
		logging.Debug().Float32("score", score).Msg("[CACHE] Candidate rejected by evaluator")
		metrics.CacheLookups.WithLabelValues("recommendations", "rejected").Inc()
		return nil, false
	}

	var recs []entity.Recommendation
	if err := json.Unmarshal([]byte(resp.Content), &recs); err != nil || len(recs) != entity.RecommendationsPerRequest {
		metrics.CacheLookups.WithLabelValues("recommendations", "error").Inc()
		return nil, false
	}

	logging.Info().Float32("score", score).Str("category", string(category)).Msg("[CACHE] Serving cached recommendations")
	metrics.CacheLookups.WithLabelValues("recommendations", "hit").Inc()
	return recs, true
}

func (c *SemanticCache) Store(ctx context.Context, category entity.Category, preferences string, recs []entity.Recommendation) error {
	key := cacheKey(category, preferences)
	vector, err := c.embedder.CreateEmbedding(ctx, key)
	if err != nil {
		return fmt.Errorf("embedding preferences: %w", err)
	}

	content, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("marshaling recommendations: %w", err)
	}

	resp := &entity.AIResponse{Content: string(content)}
	return c.store.Save(ctx, key, resp, vector, map[string]any{"category": string(category)})
}
