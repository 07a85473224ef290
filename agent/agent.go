package agent

import (
	"fmt"
	"log/slog"
)

// Dependencies wires the model backend, tool registry, and optional
// observers into an Agent.
type Dependencies struct {
	Model     Model
	Tools     ToolRegistry
	Telemetry Telemetry
	Store     TrajectoryStore
	Logger    *slog.Logger
	// MaxFailures is the consecutive tool failure threshold; <= 0 means
	// DefaultMaxFailures.
	MaxFailures  int
	SystemPrompt string
}

// Agent runs tasks through the bounded decide/act loop. An Agent holds no
// per-task state and may run several tasks concurrently when its
// collaborators allow it.
type Agent struct {
	model        Model
	tools        ToolRegistry
	telemetry    Telemetry
	store        TrajectoryStore
	logger       *slog.Logger
	maxFailures  int
	systemPrompt string
}

// Result is the outcome of one Run.
type Result struct {
	TaskID      string           `json:"task_id"`
	Trajectory  Trajectory       `json:"trajectory"`
	FinalAnswer string           `json:"final_answer,omitempty"`
	Status      TrajectoryStatus `json:"status"`
}

func NewAgent(deps Dependencies) (*Agent, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("new agent: %w", ErrMissingModel)
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("new agent: %w", ErrMissingTools)
	}
	if deps.Telemetry == nil {
		deps.Telemetry = noopTelemetry{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.MaxFailures <= 0 {
		deps.MaxFailures = DefaultMaxFailures
	}
	if deps.SystemPrompt == "" {
		deps.SystemPrompt = DefaultSystemPrompt
	}
	return &Agent{
		model:        deps.Model,
		tools:        deps.Tools,
		telemetry:    deps.Telemetry,
		store:        deps.Store,
		logger:       deps.Logger,
		maxFailures:  deps.MaxFailures,
		systemPrompt: deps.SystemPrompt,
	}, nil
}

// MaxFailures reports the effective consecutive failure threshold.
func (a *Agent) MaxFailures() int {
	return a.maxFailures
}
