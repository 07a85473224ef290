package agent

// Lifecycle event types emitted by Agent.Run.
const (
	EventTaskStart     = "task_start"
	EventStepStart     = "step_start"
	EventToolCallStart = "tool_call_start"
	EventToolCallEnd   = "tool_call_end"
	EventStepEnd       = "step_end"
	EventTaskEnd       = "task_end"
)

type noopTelemetry struct{}

func (noopTelemetry) Emit(string, map[string]any) {}
