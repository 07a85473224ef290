package agent

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ToolDefinition declares a callable capability exposed to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// FunctionSpec renders the definition in the function-calling convention
// understood by chat-completion style backends.
func (d ToolDefinition) FunctionSpec() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters":  CloneArguments(d.Parameters),
		},
	}
}

// ToolCall is one invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Arguments map[string]any `json:"arguments" yaml:"arguments"`
}

// ToolCallResult is the outcome of executing one ToolCall. Exactly one of
// Result and Error is meaningful, selected by IsError.
type ToolCallResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Result     any    `json:"result"`
	Error      string `json:"error,omitempty"`
	IsError    bool   `json:"is_error"`
}

// ToolSuccess builds a successful result for call.
func ToolSuccess(call ToolCall, value any) ToolCallResult {
	return ToolCallResult{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Result:     value,
	}
}

// ToolFailure builds a contained failure for call. An empty message is
// replaced so that IsError always comes with a non-empty Error.
func ToolFailure(call ToolCall, message string) ToolCallResult {
	if message == "" {
		message = fmt.Sprintf("tool %q failed", call.Name)
	}
	return ToolCallResult{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Error:      message,
		IsError:    true,
	}
}

// Content is the text fed back to the model for this result.
func (r ToolCallResult) Content() string {
	if r.IsError {
		return r.Error
	}
	return Stringify(r.Result)
}

// ToolResultMessage converts a tool result to a transcript message.
func ToolResultMessage(result ToolCallResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    result.Content(),
		ToolCallID: result.ToolCallID,
		Name:       result.ToolName,
	}
}

// Stringify renders a tool return value as conversation text.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

// CloneToolCall returns a deep copy of a tool call.
func CloneToolCall(in ToolCall) ToolCall {
	out := in
	out.Arguments = CloneArguments(in.Arguments)
	return out
}

// CloneArguments deep-copies a JSON-shaped value map. Nested maps and slices
// are copied; scalar leaves are shared.
func CloneArguments(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return CloneArguments(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = cloneValue(v[i])
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return v
	}
}

func cloneToolDefinitions(in []ToolDefinition) []ToolDefinition {
	out := make([]ToolDefinition, len(in))
	for i := range in {
		out[i] = in[i]
		out[i].Parameters = CloneArguments(in[i].Parameters)
	}
	return out
}
