package modeltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gurpartap/taskloop/agent"
)

// Response configures one model turn in a scripted sequence.
type Response struct {
	Response agent.ModelResponse
	Err      error
}

// Stop is a final-answer turn.
func Stop(content string) Response {
	return Response{Response: agent.ModelResponse{Content: content, FinishReason: agent.FinishReasonStop}}
}

// Calls is a turn requesting the given tool calls.
func Calls(calls ...agent.ToolCall) Response {
	return Response{Response: agent.ModelResponse{ToolCalls: calls, FinishReason: agent.FinishReasonToolCalls}}
}

// Fail is a turn whose Generate call returns err.
func Fail(err error) Response {
	return Response{Err: err}
}

// ScriptedModel is a deterministic model adapter for runtime tests. It
// replays its script in order and records every request it receives.
type ScriptedModel struct {
	mu        sync.Mutex
	index     int
	responses []Response
	repeat    bool
	requests  []agent.ModelRequest
}

func NewScriptedModel(responses ...Response) *ScriptedModel {
	cloned := make([]Response, len(responses))
	copy(cloned, responses)
	return &ScriptedModel{
		responses: cloned,
	}
}

// Repeating returns a model that replays its last response forever once the
// script is exhausted.
func Repeating(responses ...Response) *ScriptedModel {
	m := NewScriptedModel(responses...)
	m.repeat = true
	return m
}

var _ agent.Model = (*ScriptedModel)(nil)

func (m *ScriptedModel) Generate(_ context.Context, request agent.ModelRequest) (agent.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, agent.ModelRequest{
		Messages: agent.CloneMessages(request.Messages),
		Tools:    append([]agent.ToolDefinition(nil), request.Tools...),
	})

	if m.index >= len(m.responses) {
		if !m.repeat || len(m.responses) == 0 {
			return agent.ModelResponse{}, fmt.Errorf("script exhausted at call %d", m.index+1)
		}
		m.index = len(m.responses) - 1
	}
	current := m.responses[m.index]
	m.index++
	if current.Err != nil {
		return agent.ModelResponse{}, current.Err
	}
	return agent.CloneModelResponse(current.Response), nil
}

// Calls reports how many Generate calls were made.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns copies of the requests received so far.
func (m *ScriptedModel) Requests() []agent.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]agent.ModelRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
