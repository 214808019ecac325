package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"zappy-core/internal/domain/entity"
)

// RAWGClient talks to the RAWG games API. Authentication is the key query parameter.
type RAWGClient struct {
	baseURL string
	apiKey  string
	http    *CatalogHTTP
}

func NewRAWGClient(baseURL, apiKey string, transport *CatalogHTTP) *RAWGClient {
	return &RAWGClient{baseURL: baseURL, apiKey: apiKey, http: transport}
}

type rawgGamesResponse struct {
	Results []entity.GameItem `json:"results"`
}

// Search returns up to limit games matching the free-text query.
func (c *RAWGClient) Search(ctx context.Context, query string, limit int) ([]entity.GameItem, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("page_size", strconv.Itoa(limit))
	return c.games(ctx, params)
}

// Latest returns one page of games ordered by release date, newest first.
func (c *RAWGClient) Latest(ctx context.Context, pageSize int) ([]entity.GameItem, error) {
	params := url.Values{}
	params.Set("ordering", "-released")
	params.Set("page_size", strconv.Itoa(pageSize))
	return c.games(ctx, params)
}

func (c *RAWGClient) games(ctx context.Context, params url.Values) ([]entity.GameItem, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: RAWG API key is missing", entity.ErrAuthentication)
	}
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/games?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var out rawgGamesResponse
	if err := c.http.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
