package retry

import (
	"context"
	"errors"
	"time"

	"github.com/Gurpartap/taskloop/agent"
)

// Config controls retry behavior for wrapped model calls.
type Config struct {
	MaxAttempts int
	ShouldRetry func(error) bool
	// Backoff returns the wait before the given retry attempt (2, 3, ...).
	// Nil retries immediately.
	Backoff func(attempt int) time.Duration
}

// Exponential returns a Backoff that doubles base per attempt, capped at limit.
func Exponential(base, limit time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		wait := base
		for i := 2; i < attempt && wait < limit; i++ {
			wait *= 2
		}
		if wait > limit {
			return limit
		}
		return wait
	}
}

// WrapModel wraps a model with deterministic, error-only retries. A response
// that carries no error is returned as-is, whatever its content.
func WrapModel(model agent.Model, cfg Config) agent.Model {
	if model == nil {
		return nil
	}
	return &modelWrapper{
		next: model,
		cfg:  cfg,
	}
}

type modelWrapper struct {
	next agent.Model
	cfg  Config
}

func (w *modelWrapper) Generate(ctx context.Context, request agent.ModelRequest) (agent.ModelResponse, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.ModelResponse{}, ctxErr
	}

	attempts := normalizedAttempts(w.cfg.MaxAttempts)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && !w.wait(ctx, attempt) {
			break
		}
		resp, err := w.next.Generate(ctx, request)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(ctx, w.cfg, err) {
			break
		}
	}
	return agent.ModelResponse{}, lastErr
}

func (w *modelWrapper) wait(ctx context.Context, attempt int) bool {
	if w.cfg.Backoff == nil {
		return ctx.Err() == nil
	}
	delay := w.cfg.Backoff(attempt)
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func normalizedAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func shouldRetry(ctx context.Context, cfg Config, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if cfg.ShouldRetry == nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	return cfg.ShouldRetry(err)
}
