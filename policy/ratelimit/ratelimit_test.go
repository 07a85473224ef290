package ratelimit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Gurpartap/taskloop/adapters/modeltest"
	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/policy/ratelimit"
)

func TestWrapModelPassesThroughWithinBudget(t *testing.T) {
	t.Parallel()

	model := modeltest.NewScriptedModel(modeltest.Stop("one"), modeltest.Stop("two"))
	wrapped := ratelimit.WrapModel(model, rate.NewLimiter(rate.Inf, 0))

	first, err := wrapped.Generate(context.Background(), agent.ModelRequest{})
	require.NoError(t, err)
	second, err := wrapped.Generate(context.Background(), agent.ModelRequest{})
	require.NoError(t, err)

	assert.Equal(t, "one", first.Content)
	assert.Equal(t, "two", second.Content)
	assert.Equal(t, 2, model.Calls())
}

func TestWrapModelCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	model := modeltest.NewScriptedModel(modeltest.Stop("never"))
	limiter := rate.NewLimiter(rate.Every(1<<40), 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ratelimit.WrapModel(model, limiter).Generate(ctx, agent.ModelRequest{})
	require.Error(t, err)
	assert.Zero(t, model.Calls())
}

func TestWrapModelNilLimiter(t *testing.T) {
	t.Parallel()

	model := modeltest.NewScriptedModel()
	assert.Same(t, model, ratelimit.WrapModel(model, nil))
}

func TestPerMinute(t *testing.T) {
	t.Parallel()

	assert.Equal(t, rate.Inf, ratelimit.PerMinute(0, 0).Limit())

	limiter := ratelimit.PerMinute(120, 0)
	assert.InDelta(t, 2.0, float64(limiter.Limit()), 1e-9)
	assert.Equal(t, 1, limiter.Burst())
}
