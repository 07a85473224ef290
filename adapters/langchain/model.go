// Package langchain adapts any langchaingo llms.Model, including the Ollama
// backend, to the agent.Model contract.
package langchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/Gurpartap/taskloop/agent"
)

const (
	DefaultOllamaModel = "llama3.1"
	DefaultOllamaURL   = "http://localhost:11434"
)

var (
	ErrNilModel          = errors.New("langchain: llm is nil")
	ErrNoChoices         = errors.New("langchain: response has no choices")
	ErrMalformedToolCall = errors.New("langchain: malformed tool call")
)

// Model forwards each Generate to the wrapped llms.Model.
type Model struct {
	llm     llms.Model
	options []llms.CallOption
	logger  *slog.Logger
}

var _ agent.Model = (*Model)(nil)

type Option func(*Model)

// WithCallOptions appends options passed to every GenerateContent call.
func WithCallOptions(options ...llms.CallOption) Option {
	return func(m *Model) { m.options = append(m.options, options...) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) { m.logger = logger }
}

func New(llm llms.Model, opts ...Option) (*Model, error) {
	if llm == nil {
		return nil, ErrNilModel
	}
	m := &Model{llm: llm}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m, nil
}

// NewOllama connects to an Ollama server. Empty arguments use the defaults.
func NewOllama(model, serverURL string, opts ...Option) (*Model, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	if serverURL == "" {
		serverURL = DefaultOllamaURL
	}
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return New(llm, opts...)
}

func (m *Model) Generate(ctx context.Context, request agent.ModelRequest) (agent.ModelResponse, error) {
	options := append([]llms.CallOption{}, m.options...)
	if tools := llmTools(request.Tools); len(tools) > 0 {
		options = append(options, llms.WithTools(tools))
	}

	resp, err := m.llm.GenerateContent(ctx, messageContents(request.Messages), options...)
	if err != nil {
		return agent.ModelResponse{}, fmt.Errorf("langchain generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return agent.ModelResponse{}, ErrNoChoices
	}

	choice := resp.Choices[0]
	m.logger.Debug("generate content response", "stop_reason", choice.StopReason, "tool_calls", len(choice.ToolCalls))

	calls, err := toolCalls(choice.ToolCalls)
	if err != nil {
		return agent.ModelResponse{}, err
	}
	return agent.ModelResponse{
		Content:      choice.Content,
		ToolCalls:    calls,
		FinishReason: finishReason(choice.StopReason, len(calls)),
	}, nil
}

func messageContents(messages []agent.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case agent.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, message.Content))
		case agent.RoleAssistant:
			out = append(out, llms.TextParts(llms.ChatMessageTypeAI, message.Content))
		case agent.RoleTool:
			text := fmt.Sprintf("Observation from tool %s (call %s): %s", message.Name, message.ToolCallID, message.Content)
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, text))
		default:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, message.Content))
		}
	}
	return out
}

func llmTools(definitions []agent.ToolDefinition) []llms.Tool {
	out := make([]llms.Tool, 0, len(definitions))
	for _, definition := range definitions {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        definition.Name,
				Description: definition.Description,
				Parameters:  definition.Parameters,
			},
		})
	}
	return out
}

func toolCalls(calls []llms.ToolCall) ([]agent.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]agent.ToolCall, 0, len(calls))
	for _, call := range calls {
		if call.FunctionCall == nil {
			return nil, fmt.Errorf("%w: id=%s has no function", ErrMalformedToolCall, call.ID)
		}
		arguments := map[string]any{}
		if raw := strings.TrimSpace(call.FunctionCall.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
				return nil, fmt.Errorf("%w: tool=%s id=%s: %w", ErrMalformedToolCall, call.FunctionCall.Name, call.ID, err)
			}
		}
		out = append(out, agent.ToolCall{ID: call.ID, Name: call.FunctionCall.Name, Arguments: arguments})
	}
	return out, nil
}

func finishReason(stopReason string, calls int) string {
	switch {
	case calls > 0:
		return agent.FinishReasonToolCalls
	case stopReason == "", strings.EqualFold(stopReason, "end_turn"):
		return agent.FinishReasonStop
	default:
		return strings.ToLower(stopReason)
	}
}
