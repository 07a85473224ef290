package modeltest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Gurpartap/taskloop/agent"
)

// DefaultReply is returned by PatternModel when no rule matches and no tools
// are offered.
const DefaultReply = "I understand. Task complete."

// Rule maps a case-insensitive substring of the last user message to a reply.
type Rule struct {
	Pattern   string           `json:"pattern" yaml:"pattern"`
	Content   string           `json:"content" yaml:"content"`
	ToolCalls []agent.ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
}

// PatternModel is a deterministic offline backend. The first rule whose
// pattern appears in the last user message wins and finishes with "stop".
// Without a match it calls the first offered tool with empty arguments, and
// with no tools it returns DefaultReply.
type PatternModel struct {
	mu    sync.Mutex
	rules []Rule
	calls int
}

func NewPatternModel(rules ...Rule) *PatternModel {
	cloned := make([]Rule, len(rules))
	copy(cloned, rules)
	return &PatternModel{rules: cloned}
}

var _ agent.Model = (*PatternModel)(nil)

func (m *PatternModel) Generate(_ context.Context, request agent.ModelRequest) (agent.ModelResponse, error) {
	m.mu.Lock()
	m.calls++
	count := m.calls
	m.mu.Unlock()

	last := strings.ToLower(lastUserMessage(request.Messages))
	for _, rule := range m.rules {
		if strings.Contains(last, strings.ToLower(rule.Pattern)) {
			return agent.CloneModelResponse(agent.ModelResponse{
				Content:      rule.Content,
				ToolCalls:    rule.ToolCalls,
				FinishReason: agent.FinishReasonStop,
			}), nil
		}
	}

	if len(request.Tools) > 0 {
		return agent.ModelResponse{
			ToolCalls: []agent.ToolCall{{
				ID:        fmt.Sprintf("call_%d", count),
				Name:      request.Tools[0].Name,
				Arguments: map[string]any{},
			}},
			FinishReason: agent.FinishReasonToolCalls,
		}, nil
	}

	return agent.ModelResponse{Content: DefaultReply, FinishReason: agent.FinishReasonStop}, nil
}

func lastUserMessage(messages []agent.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == agent.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
