package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/domain/repository"
	"zappy-core/internal/logging"
	"zappy-core/internal/metrics"
)

const (
	messageContextLimit = 3
	defaultContextTTL   = 6 * time.Hour
	dateLayout          = "2006-01-02"
)

// ContextSnapshot maps each category to its formatted context block.
type ContextSnapshot map[entity.Category]string

type AggregatorConfig struct {
	ListingLimit int           // entries kept per category after filtering
	GamePageSize int           // games requested before filtering
	CacheTTL     time.Duration // lifetime of blocks in memory and in the shared cache
}

type contextBlock struct {
	text      string
	fetchedAt time.Time
}

// ContextAggregator builds the text blocks injected into prompts: recent
// releases per category and details about titles mentioned in chat.
type ContextAggregator struct {
	titles    repository.TitleCatalog
	games     repository.GameCatalog
	cache     repository.ContextCache   // optional
	extractor repository.QueryExtractor // optional
	cfg       AggregatorConfig
	now       func() time.Time

	mu     sync.RWMutex
	blocks map[entity.Category]contextBlock
}

func NewContextAggregator(titles repository.TitleCatalog, games repository.GameCatalog, cache repository.ContextCache, extractor repository.QueryExtractor, cfg AggregatorConfig) *ContextAggregator {
	if cfg.ListingLimit <= 0 {
		cfg.ListingLimit = 20
	}
	if cfg.GamePageSize <= 0 {
		cfg.GamePageSize = 40
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultContextTTL
	}
	return &ContextAggregator{
		titles:    titles,
		games:     games,
		cache:     cache,
		extractor: extractor,
		cfg:       cfg,
		now:       time.Now,
		blocks:    make(map[entity.Category]contextBlock),
	}
}

// Refresh fetches every category concurrently. It only fails when all of them fail.
func (a *ContextAggregator) Refresh(ctx context.Context) (ContextSnapshot, error) {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		snapshot = make(ContextSnapshot, len(entity.Categories))
		errs     []error
	)

	for _, cat := range entity.Categories {
		g.Go(func() error {
			block, err := a.fetch(ctx, cat)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", cat, err))
				return nil
			}
			snapshot[cat] = block
			return nil
		})
	}
	_ = g.Wait()

	for cat, block := range snapshot {
		a.store(ctx, cat, block)
	}

	if len(errs) == len(entity.Categories) {
		return snapshot, fmt.Errorf("refreshing context: %w", errors.Join(errs...))
	}
	for _, err := range errs {
		logging.Warn().Err(err).Msg("[CONTEXT] Category refresh failed")
	}
	logging.Info().Int("categories", len(snapshot)).Msg("[CONTEXT] Context refreshed")
	return snapshot, nil
}

// CategoryContext returns the recent-releases block for one category, or "" when unavailable.
func (a *ContextAggregator) CategoryContext(ctx context.Context, category entity.Category) string {
	if block, ok := a.recall(category); ok {
		return block
	}

	if a.cache != nil {
		cached, found, err := a.cache.Get(ctx, category)
		switch {
		case err != nil:
			metrics.CacheLookups.WithLabelValues("context", "error").Inc()
			logging.Warn().Err(err).Msg("[CONTEXT] Cache read failed")
		case found:
			metrics.CacheLookups.WithLabelValues("context", "hit").Inc()
			a.remember(category, cached)
			return cached
		default:
			metrics.CacheLookups.WithLabelValues("context", "miss").Inc()
		}
	}

	block, err := a.fetch(ctx, category)
	if err != nil {
		logging.Warn().Err(err).Str("category", string(category)).Msg("[CONTEXT] Continuing without category context")
		return ""
	}
	a.store(ctx, category, block)
	return block
}

// MessageContext returns details for the titles a chat message is about, or "".
func (a *ContextAggregator) MessageContext(ctx context.Context, message string) string {
	query := strings.TrimSpace(message)
	if a.extractor != nil {
		if title := a.extractor.ExtractTitle(ctx, message); title != "" {
			query = title
		}
	}
	if query == "" {
		return ""
	}

	items, err := a.titles.Search(ctx, query, "", messageContextLimit)
	if err != nil {
		logging.Warn().Err(err).Str("query", query).Msg("[CONTEXT] Message context lookup failed")
		return ""
	}
	if len(items) == 0 {
		return ""
	}

	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("Title: %s\nYear: %s\nType: %s\nOverview: %s", it.Name, it.Year, it.Type, it.Overview))
	}
	return strings.Join(parts, "\n\n")
}

func (a *ContextAggregator) fetch(ctx context.Context, category entity.Category) (string, error) {
	if category == entity.CategoryGame {
		games, err := a.games.Latest(ctx, a.cfg.GamePageSize)
		if err != nil {
			return "", err
		}
		return a.formatGames(games), nil
	}

	items, err := a.titles.Latest(ctx, category)
	if err != nil {
		return "", err
	}
	return a.formatTitles(items), nil
}

// recall returns the in-memory block while it is younger than CacheTTL.
func (a *ContextAggregator) recall(category entity.Category) (string, bool) {
	a.mu.RLock()
	b, ok := a.blocks[category]
	a.mu.RUnlock()
	if !ok || a.now().Sub(b.fetchedAt) >= a.cfg.CacheTTL {
		return "", false
	}
	return b.text, true
}

func (a *ContextAggregator) remember(category entity.Category, block string) {
	a.mu.Lock()
	a.blocks[category] = contextBlock{text: block, fetchedAt: a.now()}
	a.mu.Unlock()
}

// store keeps non-empty blocks in memory and in the shared cache.
func (a *ContextAggregator) store(ctx context.Context, category entity.Category, block string) {
	if block == "" {
		return
	}
	a.remember(category, block)
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, category, block, a.cfg.CacheTTL); err != nil {
		logging.Warn().Err(err).Msg("[CONTEXT] Cache write failed")
	}
}

func (a *ContextAggregator) today() string {
	return a.now().Format(dateLayout)
}

// releasedBy reports whether date (YYYY-MM-DD or YYYY) is on or before today.
// A bare year counts only once it has ended, since the release day is unknown.
// Missing and unparsable dates are treated as unreleased.
func releasedBy(date, today string) bool {
	date = strings.TrimSpace(date)
	switch len(date) {
	case len("2006"):
		if _, err := time.Parse("2006", date); err != nil {
			return false
		}
		return date < today[:len("2006")]
	case len(dateLayout):
		if _, err := time.Parse(dateLayout, date); err != nil {
			return false
		}
	default:
		return false
	}
	return date <= today
}

func (a *ContextAggregator) formatTitles(items []entity.CatalogItem) string {
	today := a.today()
	lines := make([]string, 0, a.cfg.ListingLimit)
	for _, it := range items {
		date := it.FirstAired
		if date == "" {
			date = it.Year
		}
		if !releasedBy(date, today) {
			continue
		}
		year := it.Year
		if year == "" && len(it.FirstAired) >= 4 {
			year = it.FirstAired[:4]
		}
		lines = append(lines, fmt.Sprintf("- \"%s\" (%s): %s", it.Name, year, it.Overview))
		if len(lines) == a.cfg.ListingLimit {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func (a *ContextAggregator) formatGames(games []entity.GameItem) string {
	today := a.today()
	lines := make([]string, 0, a.cfg.ListingLimit)
	for _, g := range games {
		if !releasedBy(g.Released, today) {
			continue
		}
		rating := "N/A"
		if g.Rating != 0 {
			rating = strconv.FormatFloat(g.Rating, 'f', -1, 64)
		}
		genres := strings.Join(g.GenreNames(), ", ")
		if genres == "" {
			genres = "N/A"
		}
		lines = append(lines, fmt.Sprintf("- Title: %s (Released: %s, Rating: %s, Genres: %s)", g.Name, g.Released, rating, genres))
		if len(lines) == a.cfg.ListingLimit {
			break
		}
	}
	return strings.Join(lines, "\n")
}
