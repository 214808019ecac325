package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/logging"
)

// TVDBClient talks to the TheTVDB v4 API. Every call needs a bearer token
// obtained from /login and kept in a TokenCache.
type TVDBClient struct {
	baseURL      string
	apiKey       string
	animeGenreID int
	http         *CatalogHTTP
	tokens       *TokenCache
}

type TVDBConfig struct {
	BaseURL      string
	APIKey       string
	AnimeGenreID int
	TokenTTL     time.Duration
}

// NewTVDBClient wires the client. A nil tokens cache gets a fresh cache
// backed by this client's login.
func NewTVDBClient(cfg TVDBConfig, transport *CatalogHTTP, tokens *TokenCache) *TVDBClient {
	c := &TVDBClient{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		animeGenreID: cfg.AnimeGenreID,
		http:         transport,
		tokens:       tokens,
	}
	if c.tokens == nil {
		ttl := cfg.TokenTTL
		if ttl <= 0 {
			ttl = defaultTokenTTL
		}
		c.tokens = NewTokenCache(ttl, c.Login)
	}
	return c
}

type tvdbLoginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type tvdbSearchResponse struct {
	Data []entity.CatalogItem `json:"data"`
}

// tvdbFilterRecord is the shape returned by /movies/filter and /series/filter.
type tvdbFilterRecord struct {
	Name       string           `json:"name"`
	Year       string           `json:"year"`
	FirstAired string           `json:"firstAired"`
	Overview   string           `json:"overview"`
	Image      string           `json:"image"`
	Genres     entity.GenreList `json:"genres"`
}

type tvdbFilterResponse struct {
	Data []tvdbFilterRecord `json:"data"`
}

// Login exchanges the API key for a bearer token.
func (c *TVDBClient) Login(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: TVDB API key is missing", entity.ErrAuthentication)
	}

	body, err := json.Marshal(map[string]string{"apikey": c.apiKey})
	if err != nil {
		return "", fmt.Errorf("marshaling login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out tvdbLoginResponse
	if err := c.http.Do(ctx, req, &out); err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrAuthentication, err)
	}
	if out.Data.Token == "" {
		return "", fmt.Errorf("%w: empty token", entity.ErrAuthentication)
	}
	logging.Debug().Msg("[TVDB] Obtained new API token")
	return out.Data.Token, nil
}

// Search queries /search. An empty mediaType searches every type.
func (c *TVDBClient) Search(ctx context.Context, query string, mediaType entity.MediaType, limit int) ([]entity.CatalogItem, error) {
	params := url.Values{}
	params.Set("query", query)
	if mediaType != "" {
		params.Set("type", string(mediaType))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var out tvdbSearchResponse
	if err := c.get(ctx, "/search", params, &out); err != nil {
		return nil, err
	}
	if limit > 0 && len(out.Data) > limit {
		out.Data = out.Data[:limit]
	}
	return out.Data, nil
}

// Latest lists titles of a category ordered by first-aired date, newest first.
func (c *TVDBClient) Latest(ctx context.Context, category entity.Category) ([]entity.CatalogItem, error) {
	params := url.Values{}
	params.Set("country", "usa")
	params.Set("lang", "eng")
	params.Set("sort", "firstAired")
	params.Set("sortType", "desc")

	path := "/series/filter"
	switch category {
	case entity.CategoryMovie:
		path = "/movies/filter"
	case entity.CategoryAnime:
		params.Set("genre", strconv.Itoa(c.animeGenreID))
	case entity.CategoryTVSeries:
	default:
		return nil, fmt.Errorf("%w: %s is not a TVDB category", entity.ErrInvalidRequest, category)
	}

	var out tvdbFilterResponse
	if err := c.get(ctx, path, params, &out); err != nil {
		return nil, err
	}

	items := make([]entity.CatalogItem, 0, len(out.Data))
	for _, r := range out.Data {
		items = append(items, entity.CatalogItem{
			Name:       r.Name,
			Year:       r.Year,
			Overview:   r.Overview,
			FirstAired: r.FirstAired,
			Genres:     r.Genres,
			ImageURL:   r.Image,
		})
	}
	return items, nil
}

func (c *TVDBClient) get(ctx context.Context, path string, params url.Values, out any) error {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	err = c.http.Do(ctx, req, out)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	return err
}
