// Package ratelimit throttles model calls with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/Gurpartap/taskloop/agent"
)

// PerMinute builds a limiter allowing n calls per minute. A non-positive n
// disables limiting; burst is raised to at least one.
func PerMinute(n, burst int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), burst)
}

// WrapModel blocks each Generate until limiter grants a token. A nil limiter
// returns model unchanged.
func WrapModel(model agent.Model, limiter *rate.Limiter) agent.Model {
	if model == nil || limiter == nil {
		return model
	}
	return &modelWrapper{next: model, limiter: limiter}
}

type modelWrapper struct {
	next    agent.Model
	limiter *rate.Limiter
}

func (w *modelWrapper) Generate(ctx context.Context, request agent.ModelRequest) (agent.ModelResponse, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return agent.ModelResponse{}, fmt.Errorf("wait for model rate limit: %w", err)
	}
	return w.next.Generate(ctx, request)
}
