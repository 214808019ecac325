package client

import (
	"context"
	"sync"
	"time"
)

// defaultTokenTTL is how long a catalog login stays valid.
const defaultTokenTTL = 24 * time.Hour

// LoginFunc exchanges credentials for a bearer token.
type LoginFunc func(ctx context.Context) (string, error)

// TokenCache holds one bearer token and refreshes it lazily once it has
// expired. Two callers may refresh at the same time; the last write wins and
// both tokens are valid, so no refresh lock is held during login.
type TokenCache struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	ttl   time.Duration
	login LoginFunc
	now   func() time.Time
}

func NewTokenCache(ttl time.Duration, login LoginFunc) *TokenCache {
	return &TokenCache{ttl: ttl, login: login, now: time.Now}
}

// Get returns the cached token or logs in again.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	token, expiresAt := c.token, c.expiresAt
	c.mu.RUnlock()

	if token != "" && c.now().Before(expiresAt) {
		return token, nil
	}
	return c.Refresh(ctx)
}

// Refresh forces a new login.
func (c *TokenCache) Refresh(ctx context.Context) (string, error) {
	token, err := c.login(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()
	return token, nil
}

// Invalidate drops the cached token, e.g. after a 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}
