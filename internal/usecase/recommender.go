package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/domain/repository"
	"zappy-core/internal/logging"
	"zappy-core/internal/metrics"
)

const cacheWriteTimeout = 15 * time.Second

// Sleeper waits between generation attempts. It returns early with the
// context error when ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type RecommenderConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Recommender turns preference answers into exactly three enriched recommendations.
type Recommender struct {
	provider repository.AIProvider
	resolver repository.ImageResolver
	cache    repository.RecommendationCache // optional
	hosts    ImageHosts
	cfg      RecommenderConfig
	sleep    Sleeper
}

func NewRecommender(provider repository.AIProvider, resolver repository.ImageResolver, cache repository.RecommendationCache, hosts ImageHosts, cfg RecommenderConfig) *Recommender {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Recommender{
		provider: provider,
		resolver: resolver,
		cache:    cache,
		hosts:    hosts,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// Generate returns three recommendations for the category. Exhausting every
// attempt yields entity.ErrRecommendationGenerationFailed wrapping the last cause.
func (r *Recommender) Generate(ctx context.Context, category entity.Category, answers entity.PreferenceAnswers, categoryContext string) ([]entity.Recommendation, error) {
	preferences := answers.Preferences()

	// 1. Semantic cache
	if r.cache != nil {
		if recs, ok := r.cache.Lookup(ctx, category, preferences); ok {
			return r.enrich(ctx, category, recs), nil
		}
	}

	// 2. Bounded retry around the model call
	prompt := BuildRecommendationPrompt(category, preferences, categoryContext)
	recs, err := r.generateWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	for i := range recs {
		recs[i].Title = entity.CleanTitle(recs[i].Title)
		recs[i].Category = category
	}

	// 3. Background cache write
	if r.cache != nil {
		toCache := make([]entity.Recommendation, len(recs))
		copy(toCache, recs)
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
			defer cancel()
			if err := r.cache.Store(bgCtx, category, preferences, toCache); err != nil {
				logging.Warn().Err(err).Msg("[CACHE] Failed to store recommendations")
			}
		}()
	}

	// 4. Images
	return r.enrich(ctx, category, recs), nil
}

func (r *Recommender) generateWithRetry(ctx context.Context, prompt string) ([]entity.Recommendation, error) {
	req := entity.AIRequest{
		Messages: []entity.ChatMessage{{Role: entity.RoleUser, Content: prompt}},
		JSONMode: true,
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		recs, err := r.attempt(ctx, req)
		if err == nil {
			metrics.GenerationAttempts.WithLabelValues("success").Inc()
			return recs, nil
		}
		lastErr = err
		logging.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", r.cfg.MaxAttempts).Msg("[RECOMMENDER] Generation attempt failed")

		if attempt == r.cfg.MaxAttempts {
			break
		}
		if err := r.sleep(ctx, r.cfg.BaseDelay*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	logging.Error().Err(lastErr).Msg("[RECOMMENDER] All generation attempts failed")
	return nil, fmt.Errorf("%w: %w", entity.ErrRecommendationGenerationFailed, lastErr)
}

func (r *Recommender) attempt(ctx context.Context, req entity.AIRequest) ([]entity.Recommendation, error) {
	resp, err := r.provider.Generate(ctx, req)
	if err != nil {
		metrics.GenerationAttempts.WithLabelValues("provider_error").Inc()
		return nil, err
	}
	recs, err := DecodeRecommendations(resp.Content)
	if err != nil {
		metrics.GenerationAttempts.WithLabelValues("malformed").Inc()
		return nil, err
	}
	return recs, nil
}

// enrich cleans titles, pins the category and resolves images concurrently.
// Image failures leave ImageURL empty.
func (r *Recommender) enrich(ctx context.Context, category entity.Category, recs []entity.Recommendation) []entity.Recommendation {
	out := make([]entity.Recommendation, len(recs))
	var g errgroup.Group
	for i, rec := range recs {
		g.Go(func() error {
			rec.Title = entity.CleanTitle(rec.Title)
			rec.Category = category
			raw := r.resolver.ResolveImage(ctx, rec.Title, category.MediaType(), category)
			rec.ImageURL = r.hosts.Format(raw)
			out[i] = rec
			return nil
		})
	}
	_ = g.Wait()
	return out
}
