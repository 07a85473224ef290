package agent

import (
	"fmt"
	"time"
)

// TrajectoryStatus captures the completion state of a trajectory.
type TrajectoryStatus string

const (
	TrajectoryStatusInProgress      TrajectoryStatus = "in_progress"
	TrajectoryStatusCompleted       TrajectoryStatus = "completed"
	TrajectoryStatusFailed          TrajectoryStatus = "failed"
	TrajectoryStatusMaxStepsReached TrajectoryStatus = "max_steps_reached"
)

// IsTerminal reports whether the status is absorbing.
func (s TrajectoryStatus) IsTerminal() bool {
	return isTerminalTrajectoryStatus(s)
}

// TrajectoryStep records one decide/act iteration.
type TrajectoryStep struct {
	StepIndex   int              `json:"step_index"`
	Timestamp   time.Time        `json:"timestamp"`
	LLMResponse string           `json:"llm_response,omitempty"`
	ToolCalls   []ToolCall       `json:"tool_calls"`
	ToolResults []ToolCallResult `json:"tool_results"`
	LatencyMS   float64          `json:"latency_ms"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// Trajectory is the append-only execution record of one task.
type Trajectory struct {
	TaskID      string           `json:"task_id"`
	Steps       []TrajectoryStep `json:"steps"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     *time.Time       `json:"end_time"`
	FinalResult any              `json:"final_result"`
	Status      TrajectoryStatus `json:"status"`
}

// NewTrajectory starts an in-progress trajectory for taskID.
func NewTrajectory(taskID string) *Trajectory {
	return &Trajectory{
		TaskID:    taskID,
		Steps:     make([]TrajectoryStep, 0),
		StartTime: time.Now(),
		Status:    TrajectoryStatusInProgress,
	}
}

// AddStep appends a fully populated step. Terminal trajectories and
// out-of-order step indexes are rejected.
func (t *Trajectory) AddStep(step TrajectoryStep) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf(
			"%w: add step to %s trajectory task_id=%q",
			ErrInvalidTrajectoryTransition,
			t.Status,
			t.TaskID,
		)
	}
	if n := len(t.Steps); n > 0 && step.StepIndex <= t.Steps[n-1].StepIndex {
		return fmt.Errorf(
			"%w: field=step_index reason=not_increasing value=%d previous=%d task_id=%q",
			ErrTrajectoryInvalid,
			step.StepIndex,
			t.Steps[n-1].StepIndex,
			t.TaskID,
		)
	}
	if len(step.ToolResults) != len(step.ToolCalls) {
		return fmt.Errorf(
			"%w: field=tool_results reason=misaligned calls=%d results=%d step=%d task_id=%q",
			ErrTrajectoryInvalid,
			len(step.ToolCalls),
			len(step.ToolResults),
			step.StepIndex,
			t.TaskID,
		)
	}
	t.Steps = append(t.Steps, CloneTrajectoryStep(step))
	return nil
}

// Complete transitions the trajectory to a terminal status, recording the end
// time and final result together.
func (t *Trajectory) Complete(result any, status TrajectoryStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTrajectoryTransition, status)
	}
	if err := transitionTrajectoryStatus(t, status); err != nil {
		return err
	}
	end := time.Now()
	t.EndTime = &end
	t.FinalResult = result
	return nil
}

// IsFinal reports whether the trajectory may be read as a finished record.
func (t *Trajectory) IsFinal() bool {
	return t.Status.IsTerminal()
}

// CloneTrajectory returns a deep copy safe for handing to callers and stores.
func CloneTrajectory(in Trajectory) Trajectory {
	out := in
	if in.Steps != nil {
		out.Steps = make([]TrajectoryStep, len(in.Steps))
		for i := range in.Steps {
			out.Steps[i] = CloneTrajectoryStep(in.Steps[i])
		}
	}
	if in.EndTime != nil {
		end := *in.EndTime
		out.EndTime = &end
	}
	return out
}

// CloneTrajectoryStep returns a deep copy of a step.
func CloneTrajectoryStep(in TrajectoryStep) TrajectoryStep {
	out := in
	if in.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(in.ToolCalls))
		for i := range in.ToolCalls {
			out.ToolCalls[i] = CloneToolCall(in.ToolCalls[i])
		}
	}
	if in.ToolResults != nil {
		out.ToolResults = make([]ToolCallResult, len(in.ToolResults))
		copy(out.ToolResults, in.ToolResults)
	}
	out.Metadata = CloneArguments(in.Metadata)
	return out
}
