package agent

import "fmt"

func isTerminalTrajectoryStatus(status TrajectoryStatus) bool {
	switch status {
	case TrajectoryStatusCompleted, TrajectoryStatusFailed, TrajectoryStatusMaxStepsReached:
		return true
	default:
		return false
	}
}

func isKnownTrajectoryStatus(status TrajectoryStatus) bool {
	return status == TrajectoryStatusInProgress || isTerminalTrajectoryStatus(status)
}

func validateTrajectoryStatusTransition(from, to TrajectoryStatus) error {
	allowed, ok := allowedTrajectoryStatusTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source status %q", ErrInvalidTrajectoryTransition, from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTrajectoryTransition, from, to)
	}
	return nil
}

func transitionTrajectoryStatus(trajectory *Trajectory, to TrajectoryStatus) error {
	if err := validateTrajectoryStatusTransition(trajectory.Status, to); err != nil {
		return fmt.Errorf("%w task_id=%q", err, trajectory.TaskID)
	}
	trajectory.Status = to
	return nil
}

// Terminal statuses have no outgoing edges, so every completion happens once.
var allowedTrajectoryStatusTransitions = map[TrajectoryStatus]map[TrajectoryStatus]struct{}{
	TrajectoryStatusInProgress: {
		TrajectoryStatusCompleted:       {},
		TrajectoryStatusFailed:          {},
		TrajectoryStatusMaxStepsReached: {},
	},
	TrajectoryStatusCompleted:       {},
	TrajectoryStatusFailed:          {},
	TrajectoryStatusMaxStepsReached: {},
}
