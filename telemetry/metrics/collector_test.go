package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurpartap/taskloop/telemetry"
	"github.com/Gurpartap/taskloop/telemetry/metrics"
)

func TestCollector_CountsLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tel := telemetry.New(
		telemetry.WithClock(func() time.Time {
			clock = clock.Add(250 * time.Millisecond)
			return clock
		}),
		telemetry.WithHandlers(collector.Handler()),
	)

	tel.Emit("task_start", map[string]any{"task_id": "t1"})
	tel.Emit("step_start", map[string]any{"task_id": "t1", "step": 0})
	tel.Emit("tool_call_start", map[string]any{"task_id": "t1", "step": 0, "tool": "echo"})
	tel.Emit("tool_call_end", map[string]any{"task_id": "t1", "step": 0, "tool": "echo", "success": true})
	tel.Emit("tool_call_end", map[string]any{"task_id": "t1", "step": 0, "tool": "bogus", "success": false})
	tel.Emit("step_end", map[string]any{"task_id": "t1", "step": 0})
	tel.Emit("step_start", map[string]any{"task_id": "t1", "step": 1})
	tel.Emit("task_end", map[string]any{"task_id": "t1", "status": "failed"})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "taskloop_tasks_started_total")
	assert.Contains(t, names, "taskloop_step_duration_seconds")

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "taskloop_tasks_started_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "taskloop_tool_calls_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "taskloop_tasks_finished_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "taskloop_step_duration_seconds"))
}

func TestCollector_Values(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	tel := telemetry.New(telemetry.WithHandlers(collector.Handler()))

	for i := 0; i < 3; i++ {
		tel.Emit("task_start", map[string]any{"task_id": "t"})
		tel.Emit("task_end", map[string]any{"task_id": "t", "status": "completed"})
	}
	tel.Emit("step_end", map[string]any{"task_id": "t", "step": 0})

	expected := `
# HELP taskloop_tasks_finished_total Tasks that reached a terminal status, by status.
# TYPE taskloop_tasks_finished_total counter
taskloop_tasks_finished_total{status="completed"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "taskloop_tasks_finished_total"))

	expectedSteps := `
# HELP taskloop_steps_total Completed loop steps.
# TYPE taskloop_steps_total counter
taskloop_steps_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expectedSteps), "taskloop_steps_total"))
}
