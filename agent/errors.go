package agent

import "errors"

var (
	// ErrContextNil is returned when a nil context is passed to a runtime entrypoint.
	ErrContextNil = errors.New("context is nil")
	// ErrMissingModel is returned when NewAgent is called without a model.
	ErrMissingModel = errors.New("missing model")
	// ErrMissingTools is returned when NewAgent is called without a tool registry.
	ErrMissingTools = errors.New("missing tool registry")
	// ErrTaskInvalid is returned when a task fails structural validation.
	ErrTaskInvalid = errors.New("task is invalid")
	// ErrTrajectoryInvalid is returned when a trajectory violates a structural invariant.
	ErrTrajectoryInvalid = errors.New("trajectory is invalid")
	// ErrInvalidTrajectoryTransition is returned for a status change the lifecycle forbids.
	ErrInvalidTrajectoryTransition = errors.New("invalid trajectory status transition")
	// ErrTrajectoryNotFound is returned by stores when a task ID is unknown.
	ErrTrajectoryNotFound = errors.New("trajectory not found")
	// ErrTrajectorySave wraps a store failure after the task reached a terminal status.
	ErrTrajectorySave = errors.New("save trajectory")
	// ErrModelGenerate wraps a model backend failure that ended the task.
	ErrModelGenerate = errors.New("model generate")
	// ErrRunCancelled is returned when the context ends the task between steps.
	ErrRunCancelled = errors.New("run cancelled")
)
