package usecase

import (
	"context"
	"errors"
	"strings"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/domain/repository"
	"zappy-core/internal/logging"
	"zappy-core/internal/metrics"
)

const (
	animeCandidateLimit = 5
	animeHint           = " Anime"
	movieHint           = " Movie"
)

var (
	animeGenreTokens = []string{"anime", "animation", "animated"}
	liveActionTokens = []string{"live action", "live-action"}
)

// MetadataResolver finds poster images for recommended titles.
// It never returns an error: a missing image is a normal outcome.
type MetadataResolver struct {
	titles repository.TitleCatalog
	games  repository.GameCatalog
}

func NewMetadataResolver(titles repository.TitleCatalog, games repository.GameCatalog) *MetadataResolver {
	return &MetadataResolver{titles: titles, games: games}
}

// ResolveImage returns the raw catalog image URL for an already cleaned title, or "".
func (r *MetadataResolver) ResolveImage(ctx context.Context, title string, mediaType entity.MediaType, category entity.Category) string {
	if category == entity.CategoryGame {
		return r.resolveGame(ctx, title)
	}
	return r.resolveTitle(ctx, title, mediaType, category)
}

func (r *MetadataResolver) resolveGame(ctx context.Context, title string) string {
	games, err := r.games.Search(ctx, title, 1)
	if err != nil {
		logging.Warn().Err(err).Str("title", title).Msg("[IMAGES] Game catalog search failed")
		metrics.ImageResolutions.WithLabelValues("rawg", "error").Inc()
		return ""
	}
	if len(games) == 0 || games[0].BackgroundImage == "" {
		metrics.ImageResolutions.WithLabelValues("rawg", "miss").Inc()
		return ""
	}
	metrics.ImageResolutions.WithLabelValues("rawg", "smart").Inc()
	return games[0].BackgroundImage
}

func (r *MetadataResolver) resolveTitle(ctx context.Context, title string, mediaType entity.MediaType, category entity.Category) string {
	// 1. Smart search: category hint plus type filter
	query, limit := title, 1
	switch category {
	case entity.CategoryAnime:
		query, limit = title+animeHint, animeCandidateLimit
	case entity.CategoryMovie:
		query = title + movieHint
	}

	candidates, err := r.titles.Search(ctx, query, mediaType, limit)
	if errors.Is(err, entity.ErrAuthentication) {
		// No token: the fallback would fail the same way.
		logging.Warn().Err(err).Msg("[IMAGES] Titles catalog unavailable")
		metrics.ImageResolutions.WithLabelValues("tvdb", "error").Inc()
		return ""
	}
	if err != nil {
		logging.Warn().Err(err).Str("title", title).Msg("[IMAGES] Smart search failed")
	} else if img := pickCandidate(candidates, category).ImageURL; img != "" {
		metrics.ImageResolutions.WithLabelValues("tvdb", "smart").Inc()
		return img
	}

	// 2. Fallback search: bare title
	candidates, err = r.titles.Search(ctx, title, mediaType, 1)
	if err != nil {
		logging.Warn().Err(err).Str("title", title).Msg("[IMAGES] Fallback search failed")
		metrics.ImageResolutions.WithLabelValues("tvdb", "error").Inc()
		return ""
	}
	if len(candidates) > 0 && candidates[0].ImageURL != "" {
		metrics.ImageResolutions.WithLabelValues("tvdb", "fallback").Inc()
		return candidates[0].ImageURL
	}

	logging.Debug().Str("title", title).Msg("[IMAGES] No image found")
	metrics.ImageResolutions.WithLabelValues("tvdb", "miss").Inc()
	return ""
}

// pickCandidate applies the anime refinement; other categories take the first hit.
func pickCandidate(candidates []entity.CatalogItem, category entity.Category) entity.CatalogItem {
	if len(candidates) == 0 {
		return entity.CatalogItem{}
	}
	if category != entity.CategoryAnime {
		return candidates[0]
	}

	for _, c := range candidates {
		if c.Genres.Contains(animeGenreTokens...) {
			return c
		}
	}
	for _, c := range candidates {
		if !mentionsLiveAction(c) {
			return c
		}
	}
	return candidates[0]
}

func mentionsLiveAction(c entity.CatalogItem) bool {
	text := strings.ToLower(c.Name + " " + c.Overview)
	for _, t := range liveActionTokens {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
