// Package metrics exposes task lifecycle telemetry as Prometheus metrics.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/telemetry"
)

const namespace = "taskloop"

// Collector turns telemetry events into counters and a step duration
// histogram.
type Collector struct {
	tasksStarted  prometheus.Counter
	tasksFinished *prometheus.CounterVec
	steps         prometheus.Counter
	toolCalls     *prometheus.CounterVec
	stepDuration  prometheus.Histogram

	mu         sync.Mutex
	stepStarts map[string]time.Time
}

// NewCollector registers the collector's metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		tasksStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Tasks that entered the execution loop.",
		}),
		tasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Tasks that reached a terminal status, by status.",
		}, []string{"status"}),
		steps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Completed loop steps.",
		}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Dispatched tool calls, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall-clock duration of completed loop steps.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		stepStarts: make(map[string]time.Time),
	}
}

// Handler returns the telemetry handler feeding this collector.
func (c *Collector) Handler() telemetry.Handler {
	return c.Observe
}

// Observe records one event.
func (c *Collector) Observe(event telemetry.Event) {
	switch event.Type {
	case agent.EventTaskStart:
		c.tasksStarted.Inc()
	case agent.EventStepStart:
		c.mu.Lock()
		c.stepStarts[stepKey(event.Data)] = event.Timestamp
		c.mu.Unlock()
	case agent.EventStepEnd:
		c.steps.Inc()
		key := stepKey(event.Data)
		c.mu.Lock()
		started, ok := c.stepStarts[key]
		delete(c.stepStarts, key)
		c.mu.Unlock()
		if ok {
			c.stepDuration.Observe(event.Timestamp.Sub(started).Seconds())
		}
	case agent.EventToolCallEnd:
		outcome := "success"
		if success, _ := event.Data["success"].(bool); !success {
			outcome = "failure"
		}
		tool, _ := event.Data["tool"].(string)
		c.toolCalls.WithLabelValues(tool, outcome).Inc()
	case agent.EventTaskEnd:
		status, _ := event.Data["status"].(string)
		c.tasksFinished.WithLabelValues(status).Inc()
		c.forgetTask(event.Data["task_id"])
	}
}

// forgetTask drops step starts that never saw a step_end, which happens when
// a task fails mid-step.
func (c *Collector) forgetTask(taskID any) {
	prefix := fmt.Sprintf("%v/", taskID)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.stepStarts {
		if strings.HasPrefix(key, prefix) {
			delete(c.stepStarts, key)
		}
	}
}

func stepKey(data map[string]any) string {
	return fmt.Sprintf("%v/%v", data["task_id"], data["step"])
}
