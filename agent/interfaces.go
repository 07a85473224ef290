package agent

import "context"

const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
)

// ModelRequest is the minimal LLM input contract required by the loop.
type ModelRequest struct {
	Messages []Message
	Tools    []ToolDefinition
}

// ModelResponse is one decision returned by the model backend. ToolCalls keep
// emission order; a call with an empty ID is assigned one by the loop.
type ModelResponse struct {
	Content      string     `json:"content,omitempty" yaml:"content,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty" yaml:"finish_reason,omitempty"`
}

// CloneModelResponse returns a deep copy of a model response.
func CloneModelResponse(in ModelResponse) ModelResponse {
	out := in
	if in.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(in.ToolCalls))
		for i := range in.ToolCalls {
			out.ToolCalls[i] = CloneToolCall(in.ToolCalls[i])
		}
	}
	return out
}

// Model produces the next decision for a conversation.
type Model interface {
	Generate(ctx context.Context, request ModelRequest) (ModelResponse, error)
}

// ToolRegistry is the loop's view of the tool registry. Execute contains every
// failure in the returned result.
type ToolRegistry interface {
	ListForModel() []ToolDefinition
	Execute(ctx context.Context, call ToolCall) ToolCallResult
}

// Telemetry receives lifecycle events synchronously.
type Telemetry interface {
	Emit(eventType string, data map[string]any)
}

// TrajectoryStore persists finished trajectories keyed by task ID.
type TrajectoryStore interface {
	Save(ctx context.Context, trajectory Trajectory) error
	Load(ctx context.Context, taskID string) (Trajectory, error)
}
