package agent

import "fmt"

// ValidateTrajectory checks the structural invariants of a trajectory record
// before it crosses a persistence boundary.
func ValidateTrajectory(trajectory Trajectory) error {
	if trajectory.TaskID == "" {
		return fmt.Errorf("%w: field=task_id reason=empty", ErrTrajectoryInvalid)
	}
	if !isKnownTrajectoryStatus(trajectory.Status) {
		return fmt.Errorf(
			"%w: field=status reason=unknown value=%q task_id=%q",
			ErrTrajectoryInvalid,
			trajectory.Status,
			trajectory.TaskID,
		)
	}
	terminal := trajectory.Status.IsTerminal()
	if terminal && trajectory.EndTime == nil {
		return fmt.Errorf(
			"%w: field=end_time reason=unset status=%s task_id=%q",
			ErrTrajectoryInvalid,
			trajectory.Status,
			trajectory.TaskID,
		)
	}
	if !terminal && trajectory.EndTime != nil {
		return fmt.Errorf(
			"%w: field=end_time reason=set_while_in_progress task_id=%q",
			ErrTrajectoryInvalid,
			trajectory.TaskID,
		)
	}

	for i, step := range trajectory.Steps {
		if step.StepIndex < 0 {
			return fmt.Errorf(
				"%w: field=steps[%d].step_index reason=negative value=%d task_id=%q",
				ErrTrajectoryInvalid,
				i,
				step.StepIndex,
				trajectory.TaskID,
			)
		}
		if i > 0 && step.StepIndex <= trajectory.Steps[i-1].StepIndex {
			return fmt.Errorf(
				"%w: field=steps[%d].step_index reason=not_increasing value=%d previous=%d task_id=%q",
				ErrTrajectoryInvalid,
				i,
				step.StepIndex,
				trajectory.Steps[i-1].StepIndex,
				trajectory.TaskID,
			)
		}
		if len(step.ToolResults) != len(step.ToolCalls) {
			return fmt.Errorf(
				"%w: field=steps[%d].tool_results reason=misaligned calls=%d results=%d task_id=%q",
				ErrTrajectoryInvalid,
				i,
				len(step.ToolCalls),
				len(step.ToolResults),
				trajectory.TaskID,
			)
		}
		for j := range step.ToolCalls {
			if step.ToolResults[j].ToolCallID != step.ToolCalls[j].ID {
				return fmt.Errorf(
					"%w: field=steps[%d].tool_results[%d].tool_call_id reason=mismatch value=%q expected=%q task_id=%q",
					ErrTrajectoryInvalid,
					i,
					j,
					step.ToolResults[j].ToolCallID,
					step.ToolCalls[j].ID,
					trajectory.TaskID,
				)
			}
			if step.ToolResults[j].IsError && step.ToolResults[j].Error == "" {
				return fmt.Errorf(
					"%w: field=steps[%d].tool_results[%d].error reason=empty_on_failure task_id=%q",
					ErrTrajectoryInvalid,
					i,
					j,
					trajectory.TaskID,
				)
			}
		}
	}
	return nil
}
