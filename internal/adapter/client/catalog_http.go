package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/logging"
	"zappy-core/internal/metrics"
)

// CatalogHTTP is the transport shared by the catalog clients: an outbound
// rate limit, a circuit breaker and JSON decoding.
type CatalogHTTP struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewCatalogHTTP builds the transport. ratePerSecond <= 0 disables the limiter.
func NewCatalogHTTP(name string, timeout time.Duration, ratePerSecond float64) *CatalogHTTP {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1)
	}

	cbName := name + "-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Authentication and 4xx answers still count; they mean the catalog is unusable.
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &CatalogHTTP{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		cb:      cb,
	}
}

// Do sends req and decodes a 2xx JSON body into out.
// Non-2xx answers and transport failures are wrapped in entity.ErrProvider.
func (c *CatalogHTTP) Do(ctx context.Context, req *http.Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s rate limiter: %v", entity.ErrProvider, c.name, err)
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		resp, err := c.client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("%w: calling %s: %v", entity.ErrProvider, c.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Catalog: c.name, Code: resp.StatusCode}
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
			err = fmt.Errorf("%w: %s: %v", entity.ErrProvider, c.name, err)
		}
		metrics.CatalogRequests.WithLabelValues(c.name, outcome).Inc()
		return err
	}
	metrics.CatalogRequests.WithLabelValues(c.name, "success").Inc()

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", entity.ErrProvider, c.name, err)
	}
	return nil
}

// StatusError is a non-2xx catalog answer.
type StatusError struct {
	Catalog string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Catalog, e.Code)
}

func (e *StatusError) Unwrap() error { return entity.ErrProvider }

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
