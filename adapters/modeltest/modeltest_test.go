package modeltest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurpartap/taskloop/adapters/modeltest"
	"github.com/Gurpartap/taskloop/agent"
)

func request(user string, tools ...string) agent.ModelRequest {
	definitions := make([]agent.ToolDefinition, 0, len(tools))
	for _, name := range tools {
		definitions = append(definitions, agent.ToolDefinition{Name: name})
	}
	return agent.ModelRequest{
		Messages: []agent.Message{
			{Role: agent.RoleSystem, Content: "system"},
			{Role: agent.RoleUser, Content: user},
		},
		Tools: definitions,
	}
}

func TestScriptedModelReplaysInOrder(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	model := modeltest.NewScriptedModel(
		modeltest.Calls(agent.ToolCall{ID: "c1", Name: "echo"}),
		modeltest.Fail(boom),
		modeltest.Stop("done"),
	)

	first, err := model.Generate(context.Background(), request("hi", "echo"))
	require.NoError(t, err)
	assert.Equal(t, agent.FinishReasonToolCalls, first.FinishReason)
	require.Len(t, first.ToolCalls, 1)

	_, err = model.Generate(context.Background(), request("hi"))
	require.ErrorIs(t, err, boom)

	last, err := model.Generate(context.Background(), request("hi"))
	require.NoError(t, err)
	assert.Equal(t, "done", last.Content)

	_, err = model.Generate(context.Background(), request("hi"))
	require.ErrorContains(t, err, "script exhausted at call 4")

	assert.Equal(t, 4, model.Calls())
	requests := model.Requests()
	require.Len(t, requests, 4)
	assert.Equal(t, "echo", requests[0].Tools[0].Name)
}

func TestScriptedModelRecordsCopies(t *testing.T) {
	t.Parallel()

	model := modeltest.NewScriptedModel(modeltest.Stop("done"))
	req := request("original")
	_, err := model.Generate(context.Background(), req)
	require.NoError(t, err)

	req.Messages[1].Content = "mutated"
	assert.Equal(t, "original", model.Requests()[0].Messages[1].Content)
}

func TestRepeatingReplaysLastResponse(t *testing.T) {
	t.Parallel()

	model := modeltest.Repeating(modeltest.Stop("first"), modeltest.Stop("again"))
	for _, want := range []string{"first", "again", "again", "again"} {
		response, err := model.Generate(context.Background(), request("x"))
		require.NoError(t, err)
		assert.Equal(t, want, response.Content)
	}

	_, err := modeltest.Repeating().Generate(context.Background(), request("x"))
	require.Error(t, err)
}

func TestPatternModel(t *testing.T) {
	t.Parallel()

	model := modeltest.NewPatternModel(
		modeltest.Rule{Pattern: "Weather", Content: "It is sunny."},
		modeltest.Rule{Pattern: "weather in paris", Content: "never reached"},
	)

	tests := []struct {
		name     string
		request  agent.ModelRequest
		content  string
		toolName string
	}{
		{name: "case insensitive match", request: request("what's the WEATHER in Paris?", "get_weather"), content: "It is sunny."},
		{name: "first offered tool", request: request("add numbers", "math_eval", "echo"), toolName: "math_eval"},
		{name: "default reply", request: request("add numbers"), content: modeltest.DefaultReply},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			response, err := model.Generate(context.Background(), tc.request)
			require.NoError(t, err)
			assert.Equal(t, tc.content, response.Content)
			if tc.toolName == "" {
				assert.Empty(t, response.ToolCalls)
				assert.Equal(t, agent.FinishReasonStop, response.FinishReason)
				return
			}
			require.Len(t, response.ToolCalls, 1)
			assert.Equal(t, tc.toolName, response.ToolCalls[0].Name)
			assert.Equal(t, agent.FinishReasonToolCalls, response.FinishReason)
		})
	}
}
