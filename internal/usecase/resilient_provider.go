package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/domain/repository"
	"zappy-core/internal/logging"
	"zappy-core/internal/metrics"
)

const defaultProviderTimeout = 25 * time.Second

// ResilientProvider bounds every model call with a timeout and, on transient
// errors, tries the fallback model once. Retrying the same model is left to callers.
type ResilientProvider struct {
	primary  repository.AIProvider
	fallback repository.AIProvider // optional, e.g. a smaller model on the same endpoint
	timeout  time.Duration         // per call
}

func NewResilientProvider(primary, fallback repository.AIProvider, timeout time.Duration) *ResilientProvider {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &ResilientProvider{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
	}
}

func (r *ResilientProvider) Generate(ctx context.Context, req entity.AIRequest) (*entity.AIResponse, error) {
	// 1. Primary, bounded by the timeout
	resp, err := r.call(ctx, r.primary, req)
	if err == nil {
		return resp, nil
	}
	if r.fallback == nil || !r.isRetryable(err) || ctx.Err() != nil {
		return nil, err
	}

	logging.Warn().Err(err).Msg("[RELIABILITY] Primary failed. Switching to FALLBACK")

	// 2. Fallback model, once
	resp, err = r.call(ctx, r.fallback, req)
	if err != nil {
		return nil, fmt.Errorf("both primary and fallback failed: %w", err)
	}

	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	resp.Metadata["fallback_used"] = true
	return resp, nil
}

func (r *ResilientProvider) call(ctx context.Context, p repository.AIProvider, req entity.AIRequest) (*entity.AIResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	model := modelName(p)
	start := time.Now()
	resp, err := p.Generate(callCtx, req)
	metrics.LLMDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s timed out: %w", entity.ErrProvider, model, err)
		}
		metrics.LLMRequests.WithLabelValues(model, "error").Inc()
		return nil, err
	}
	metrics.LLMRequests.WithLabelValues(model, "success").Inc()
	return resp, nil
}

func (r *ResilientProvider) isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, entity.ErrEmptyCompletion) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// Rate limits (429) and server errors (5xx)
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline")
}

func modelName(p repository.AIProvider) string {
	if m, ok := p.(interface{ Model() string }); ok {
		return m.Model()
	}
	return "unknown"
}
