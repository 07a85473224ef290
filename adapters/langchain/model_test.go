package langchain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/Gurpartap/taskloop/adapters/langchain"
	"github.com/Gurpartap/taskloop/agent"
)

type fakeLLM struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, option := range options {
		option(&f.options)
	}
	return f.resp, f.err
}

func (f *fakeLLM) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestGenerateToolCalls(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           "t1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "get_weather", Arguments: `{"location":"Oslo"}`},
		}},
	}}}}
	model, err := langchain.New(llm, langchain.WithCallOptions(llms.WithTemperature(0)))
	require.NoError(t, err)

	resp, err := model.Generate(context.Background(), agent.ModelRequest{
		Messages: []agent.Message{
			{Role: agent.RoleSystem, Content: "sys"},
			{Role: agent.RoleUser, Content: "weather?"},
			{Role: agent.RoleTool, Content: "sunny", ToolCallID: "t0", Name: "get_weather"},
		},
		Tools: []agent.ToolDefinition{{Name: "get_weather", Description: "Weather", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)

	require.Len(t, llm.messages, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, llm.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, llm.messages[2].Role)
	assert.Equal(t, llms.TextContent{Text: "Observation from tool get_weather (call t0): sunny"}, llm.messages[2].Parts[0])
	require.Len(t, llm.options.Tools, 1)
	assert.Equal(t, "get_weather", llm.options.Tools[0].Function.Name)

	assert.Equal(t, agent.FinishReasonToolCalls, resp.FinishReason)
	assert.Equal(t, []agent.ToolCall{{ID: "t1", Name: "get_weather", Arguments: map[string]any{"location": "Oslo"}}}, resp.ToolCalls)
}

func TestGenerateAnswerWithoutTools(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "done"}}}}
	model, err := langchain.New(llm)
	require.NoError(t, err)

	resp, err := model.Generate(context.Background(), agent.ModelRequest{
		Messages: []agent.Message{{Role: agent.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, agent.ModelResponse{Content: "done", FinishReason: agent.FinishReasonStop}, resp)
	assert.Empty(t, llm.options.Tools)
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name string
		llm  *fakeLLM
		want error
	}{
		{name: "backend error", llm: &fakeLLM{err: boom}, want: boom},
		{name: "no choices", llm: &fakeLLM{resp: &llms.ContentResponse{}}, want: langchain.ErrNoChoices},
		{
			name: "bad arguments",
			llm: &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
				ToolCalls: []llms.ToolCall{{ID: "x", FunctionCall: &llms.FunctionCall{Name: "echo", Arguments: "[1"}}},
			}}}},
			want: langchain.ErrMalformedToolCall,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			model, err := langchain.New(tc.llm)
			require.NoError(t, err)
			_, err = model.Generate(context.Background(), agent.ModelRequest{})
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := langchain.New(nil)
	require.ErrorIs(t, err, langchain.ErrNilModel)
}
