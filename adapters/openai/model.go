// Package openai adapts an OpenAI-compatible chat-completions endpoint to the
// agent.Model contract.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/Gurpartap/taskloop/agent"
)

var (
	ErrModelNameEmpty    = errors.New("openai: model name is empty")
	ErrNoChoices         = errors.New("openai: response has no choices")
	ErrMalformedToolCall = errors.New("openai: malformed tool call")
)

// Model calls the chat-completions API once per Generate.
type Model struct {
	client      *goopenai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

var _ agent.Model = (*Model)(nil)

type settings struct {
	baseURL     string
	httpClient  *http.Client
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

type Option func(*settings)

// WithBaseURL points the client at a compatible server such as a local proxy.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) { s.httpClient = client }
}

func WithTemperature(temperature float32) Option {
	return func(s *settings) { s.temperature = temperature }
}

// WithMaxTokens caps completion tokens. Zero leaves the server default.
func WithMaxTokens(maxTokens int) Option {
	return func(s *settings) { s.maxTokens = maxTokens }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// New builds a Model for the named chat model.
func New(apiKey, model string, opts ...Option) (*Model, error) {
	if strings.TrimSpace(model) == "" {
		return nil, ErrModelNameEmpty
	}
	cfg := settings{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	clientConfig := goopenai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientConfig.BaseURL = cfg.baseURL
	}
	if cfg.httpClient != nil {
		clientConfig.HTTPClient = cfg.httpClient
	}

	return &Model{
		client:      goopenai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
		logger:      cfg.logger,
	}, nil
}

func (m *Model) Generate(ctx context.Context, request agent.ModelRequest) (agent.ModelResponse, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    chatMessages(request.Messages),
		Tools:       chatTools(request.Tools),
		Temperature: m.temperature,
	}
	if m.maxTokens > 0 {
		req.MaxCompletionTokens = m.maxTokens
	}

	m.logger.Debug("chat completion request", "model", m.model, "messages", len(req.Messages), "tools", len(req.Tools))
	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return agent.ModelResponse{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agent.ModelResponse{}, ErrNoChoices
	}

	choice := resp.Choices[0]
	m.logger.Debug("chat completion response", "finish_reason", choice.FinishReason, "tool_calls", len(choice.Message.ToolCalls))

	calls, err := toolCalls(choice.Message.ToolCalls)
	if err != nil {
		return agent.ModelResponse{}, err
	}
	return agent.ModelResponse{
		Content:      choice.Message.Content,
		ToolCalls:    calls,
		FinishReason: finishReason(choice.FinishReason, len(calls)),
	}, nil
}

func chatMessages(messages []agent.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case agent.RoleSystem:
			out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: message.Content})
		case agent.RoleAssistant:
			out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: message.Content})
		case agent.RoleTool:
			// Assistant tool-call turns are not replayed, so a tool-role
			// message would be rejected by the API.
			out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: observation(message)})
		default:
			out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: message.Content})
		}
	}
	return out
}

func observation(message agent.Message) string {
	return fmt.Sprintf("Observation from tool %s (call %s): %s", message.Name, message.ToolCallID, message.Content)
}

func chatTools(definitions []agent.ToolDefinition) []goopenai.Tool {
	if len(definitions) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, 0, len(definitions))
	for _, definition := range definitions {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        definition.Name,
				Description: definition.Description,
				Parameters:  definition.Parameters,
			},
		})
	}
	return out
}

func toolCalls(calls []goopenai.ToolCall) ([]agent.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]agent.ToolCall, 0, len(calls))
	for _, call := range calls {
		arguments := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
				return nil, fmt.Errorf("%w: tool=%s id=%s: %w", ErrMalformedToolCall, call.Function.Name, call.ID, err)
			}
		}
		out = append(out, agent.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: arguments,
		})
	}
	return out, nil
}

func finishReason(reason goopenai.FinishReason, calls int) string {
	if reason == "" {
		if calls > 0 {
			return agent.FinishReasonToolCalls
		}
		return agent.FinishReasonStop
	}
	return string(reason)
}
