package agent_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurpartap/taskloop/agent"
)

func completedTrajectory(t *testing.T) agent.Trajectory {
	t.Helper()

	trajectory := agent.NewTrajectory("task-rt")
	require.NoError(t, trajectory.AddStep(agent.TrajectoryStep{
		StepIndex:   0,
		Timestamp:   time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		LLMResponse: "calling tools",
		ToolCalls: []agent.ToolCall{
			{ID: "c1", Name: "math_eval", Arguments: map[string]any{"a": 10.0, "operator": "+", "b": 5.0}},
			{ID: "c2", Name: "bogus", Arguments: map[string]any{}},
		},
		ToolResults: []agent.ToolCallResult{
			{ToolCallID: "c1", ToolName: "math_eval", Result: 15.0},
			{ToolCallID: "c2", ToolName: "bogus", Error: "Tool 'bogus' not found", IsError: true},
		},
		LatencyMS: 1.5,
		Metadata:  map[string]any{"finish_reason": "tool_calls"},
	}))
	require.NoError(t, trajectory.AddStep(agent.TrajectoryStep{
		StepIndex:   1,
		Timestamp:   time.Date(2026, 5, 1, 9, 0, 1, 0, time.UTC),
		LLMResponse: "15",
		ToolCalls:   []agent.ToolCall{},
		ToolResults: []agent.ToolCallResult{},
		LatencyMS:   0.25,
	}))
	require.NoError(t, trajectory.Complete("15", agent.TrajectoryStatusCompleted))
	return *trajectory
}

func TestTrajectory_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	original := completedTrajectory(t)
	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded agent.Trajectory
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, original.TaskID, decoded.TaskID)
	assert.Equal(t, original.Status, decoded.Status)
	assert.Equal(t, original.FinalResult, decoded.FinalResult)
	require.Len(t, decoded.Steps, len(original.Steps))
	for i := range original.Steps {
		assert.Equal(t, original.Steps[i].StepIndex, decoded.Steps[i].StepIndex)
		assert.Equal(t, original.Steps[i].ToolCalls, decoded.Steps[i].ToolCalls)
		assert.Equal(t, original.Steps[i].ToolResults, decoded.Steps[i].ToolResults)
		assert.True(t, original.Steps[i].Timestamp.Equal(decoded.Steps[i].Timestamp))
	}
	require.NotNil(t, decoded.EndTime)
	assert.True(t, original.EndTime.Equal(*decoded.EndTime))
	require.NoError(t, agent.ValidateTrajectory(decoded))
}

func TestTrajectory_JSONFieldNames(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(completedTrajectory(t))
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(encoded, &generic))
	for _, key := range []string{"task_id", "steps", "start_time", "end_time", "final_result", "status"} {
		assert.Contains(t, generic, key)
	}

	steps, ok := generic["steps"].([]any)
	require.True(t, ok)
	step, ok := steps[0].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"step_index", "timestamp", "llm_response", "tool_calls", "tool_results", "latency_ms", "metadata"} {
		assert.Contains(t, step, key)
	}

	results, ok := step["tool_results"].([]any)
	require.True(t, ok)
	failure, ok := results[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"tool_call_id": "c2",
		"tool_name":    "bogus",
		"result":       nil,
		"error":        "Tool 'bogus' not found",
		"is_error":     true,
	}, failure)
}

func TestTrajectory_InProgressHasNoEndOrResult(t *testing.T) {
	t.Parallel()

	trajectory := agent.NewTrajectory("t")
	assert.Equal(t, agent.TrajectoryStatusInProgress, trajectory.Status)
	assert.Nil(t, trajectory.EndTime)
	assert.Nil(t, trajectory.FinalResult)
	assert.False(t, trajectory.IsFinal())
	require.NoError(t, agent.ValidateTrajectory(*trajectory))
}

func TestTrajectory_TerminalStatesAreAbsorbing(t *testing.T) {
	t.Parallel()

	terminal := []agent.TrajectoryStatus{
		agent.TrajectoryStatusCompleted,
		agent.TrajectoryStatusFailed,
		agent.TrajectoryStatusMaxStepsReached,
	}

	for _, from := range terminal {
		t.Run(string(from), func(t *testing.T) {
			t.Parallel()

			trajectory := agent.NewTrajectory("t")
			require.NoError(t, trajectory.Complete("first", from))
			end := *trajectory.EndTime
			assert.True(t, trajectory.IsFinal())

			for _, to := range terminal {
				err := trajectory.Complete("second", to)
				require.ErrorIs(t, err, agent.ErrInvalidTrajectoryTransition)
			}
			assert.Equal(t, "first", trajectory.FinalResult)
			assert.Equal(t, from, trajectory.Status)
			assert.Equal(t, end, *trajectory.EndTime)

			err := trajectory.AddStep(agent.TrajectoryStep{StepIndex: 99})
			require.ErrorIs(t, err, agent.ErrInvalidTrajectoryTransition)
		})
	}
}

func TestTrajectory_CompleteRejectsNonTerminalStatus(t *testing.T) {
	t.Parallel()

	trajectory := agent.NewTrajectory("t")
	require.ErrorIs(t, trajectory.Complete(nil, agent.TrajectoryStatusInProgress), agent.ErrInvalidTrajectoryTransition)
	require.ErrorIs(t, trajectory.Complete(nil, "exploded"), agent.ErrInvalidTrajectoryTransition)
	assert.Equal(t, agent.TrajectoryStatusInProgress, trajectory.Status)
	assert.Nil(t, trajectory.EndTime)
}

func TestTrajectory_AddStepInvariants(t *testing.T) {
	t.Parallel()

	trajectory := agent.NewTrajectory("t")
	require.NoError(t, trajectory.AddStep(agent.TrajectoryStep{StepIndex: 0}))

	err := trajectory.AddStep(agent.TrajectoryStep{StepIndex: 0})
	require.ErrorIs(t, err, agent.ErrTrajectoryInvalid)

	err = trajectory.AddStep(agent.TrajectoryStep{
		StepIndex: 1,
		ToolCalls: []agent.ToolCall{{ID: "c"}},
	})
	require.ErrorIs(t, err, agent.ErrTrajectoryInvalid)
	assert.Len(t, trajectory.Steps, 1)
}

func TestTrajectory_AddStepCopiesInput(t *testing.T) {
	t.Parallel()

	step := agent.TrajectoryStep{
		StepIndex:   0,
		ToolCalls:   []agent.ToolCall{{ID: "c", Name: "echo", Arguments: map[string]any{"message": "x"}}},
		ToolResults: []agent.ToolCallResult{{ToolCallID: "c", ToolName: "echo", Result: "x"}},
	}
	trajectory := agent.NewTrajectory("t")
	require.NoError(t, trajectory.AddStep(step))

	step.ToolCalls[0].Arguments["message"] = "mutated"
	step.ToolResults[0].Result = "mutated"

	assert.Equal(t, "x", trajectory.Steps[0].ToolCalls[0].Arguments["message"])
	assert.Equal(t, "x", trajectory.Steps[0].ToolResults[0].Result)
}

func TestValidateTrajectory(t *testing.T) {
	t.Parallel()

	end := time.Now()
	tests := []struct {
		name   string
		mutate func(*agent.Trajectory)
	}{
		{name: "empty task id", mutate: func(tr *agent.Trajectory) { tr.TaskID = "" }},
		{name: "unknown status", mutate: func(tr *agent.Trajectory) { tr.Status = "paused" }},
		{name: "terminal without end time", mutate: func(tr *agent.Trajectory) { tr.EndTime = nil }},
		{name: "in progress with end time", mutate: func(tr *agent.Trajectory) {
			tr.Status = agent.TrajectoryStatusInProgress
			tr.EndTime = &end
		}},
		{name: "steps out of order", mutate: func(tr *agent.Trajectory) {
			tr.Steps[0], tr.Steps[1] = tr.Steps[1], tr.Steps[0]
		}},
		{name: "misaligned results", mutate: func(tr *agent.Trajectory) {
			tr.Steps[0].ToolResults = tr.Steps[0].ToolResults[:1]
		}},
		{name: "result id mismatch", mutate: func(tr *agent.Trajectory) {
			tr.Steps[0].ToolResults[0].ToolCallID = "other"
		}},
		{name: "failure without message", mutate: func(tr *agent.Trajectory) {
			tr.Steps[0].ToolResults[1].Error = ""
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			trajectory := agent.CloneTrajectory(completedTrajectory(t))
			tc.mutate(&trajectory)
			require.ErrorIs(t, agent.ValidateTrajectory(trajectory), agent.ErrTrajectoryInvalid)
		})
	}
}

func TestFormatToolResults(t *testing.T) {
	t.Parallel()

	got := agent.FormatToolResults([]agent.ToolCallResult{
		{ToolName: "math_eval", Result: 15.0},
		{ToolName: "bogus", Error: "Tool 'bogus' not found", IsError: true},
		{ToolName: "lookup", Result: map[string]any{"id": 1}},
	})
	assert.Equal(t, "Tool math_eval returned: 15\nTool bogus failed: Tool 'bogus' not found\nTool lookup returned: {\"id\":1}", got)
	assert.Empty(t, agent.FormatToolResults(nil))
}

func TestStringify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value any
		want  string
	}{
		{value: nil, want: "null"},
		{value: "text", want: "text"},
		{value: 15.0, want: "15"},
		{value: 2.5, want: "2.5"},
		{value: 42, want: "42"},
		{value: true, want: "true"},
		{value: []any{"a", 1}, want: `["a",1]`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, agent.Stringify(tc.value))
	}
}

func TestTask_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, agent.NewTask("id", "do it").Validate())
	require.ErrorIs(t, agent.Task{}.Validate(), agent.ErrTaskInvalid)
	require.ErrorIs(t, agent.Task{ID: "x", MaxSteps: -2}.Validate(), agent.ErrTaskInvalid)

	task := agent.NewTask("id", "do it")
	assert.Equal(t, agent.DefaultMaxSteps, task.MaxSteps)
	assert.NotNil(t, task.Context)
	assert.NotNil(t, task.Metadata)
}

func TestToolFailure_AlwaysHasMessage(t *testing.T) {
	t.Parallel()

	result := agent.ToolFailure(agent.ToolCall{ID: "c", Name: "echo"}, "")
	assert.True(t, result.IsError)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, result.Error, result.Content())

	message := agent.ToolResultMessage(agent.ToolSuccess(agent.ToolCall{ID: "c", Name: "echo"}, "hi"))
	assert.Equal(t, agent.Message{Role: agent.RoleTool, Content: "hi", ToolCallID: "c", Name: "echo"}, message)
}
