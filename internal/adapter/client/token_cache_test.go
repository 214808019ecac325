package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenCache_ReusesUntilExpiry(t *testing.T) {
	calls := 0
	cache := NewTokenCache(time.Hour, func(ctx context.Context) (string, error) {
		calls++
		return "tok", nil
	})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		tok, err := cache.Get(context.Background())
		if err != nil || tok != "tok" {
			t.Fatalf("Get() = %q, %v", tok, err)
		}
	}
	if calls != 1 {
		t.Fatalf("login calls = %d, want 1", calls)
	}

	now = now.Add(2 * time.Hour)
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("Get() after expiry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("login calls after expiry = %d, want 2", calls)
	}
}

func TestTokenCache_InvalidateForcesLogin(t *testing.T) {
	calls := 0
	cache := NewTokenCache(time.Hour, func(ctx context.Context) (string, error) {
		calls++
		return "tok", nil
	})

	_, _ = cache.Get(context.Background())
	cache.Invalidate()
	_, _ = cache.Get(context.Background())

	if calls != 2 {
		t.Fatalf("login calls = %d, want 2", calls)
	}
}

func TestTokenCache_LoginErrorNotCached(t *testing.T) {
	fail := true
	cache := NewTokenCache(time.Hour, func(ctx context.Context) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return "tok", nil
	})

	if _, err := cache.Get(context.Background()); err == nil {
		t.Fatal("expected login error")
	}
	fail = false
	tok, err := cache.Get(context.Background())
	if err != nil || tok != "tok" {
		t.Fatalf("Get() = %q, %v", tok, err)
	}
}
