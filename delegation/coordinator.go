// Package delegation routes subtasks of a larger task to the main agent or to
// named specialist agents and aggregates their outcomes.
package delegation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/telemetry"
)

const (
	// MainSpecialist routes a subtask to the coordinator's main runner.
	MainSpecialist = "main"
	// DefaultSubtaskMaxSteps applies when a subtask leaves MaxSteps at zero.
	DefaultSubtaskMaxSteps = 5
)

var ErrMissingMain = errors.New("delegation: main runner is nil")

// Runner is the single-call contract exposed by an agent. *agent.Agent
// satisfies it.
type Runner interface {
	Run(ctx context.Context, task agent.Task) (agent.Result, error)
}

// Subtask is one entry of a task decomposition.
type Subtask struct {
	Instruction string         `json:"instruction" yaml:"instruction"`
	Context     map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
	MaxSteps    int            `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	Specialist  string         `json:"specialist,omitempty" yaml:"specialist,omitempty"`
}

// Delegation is the outcome of running one subtask.
type Delegation struct {
	TaskID     string                 `json:"task_id"`
	Subtask    string                 `json:"subtask"`
	Specialist string                 `json:"specialist"`
	Status     agent.TrajectoryStatus `json:"status"`
	Result     string                 `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Trajectory *agent.Trajectory      `json:"trajectory,omitempty"`
}

// Report aggregates the delegations of one coordinated task in input order.
type Report struct {
	TaskID         string                 `json:"task_id"`
	SubtaskResults []Delegation           `json:"subtask_results"`
	Status         agent.TrajectoryStatus `json:"status"`
}

type Options struct {
	Telemetry agent.Telemetry
	Logger    *slog.Logger
	// Concurrency bounds how many subtasks run at once; <= 0 means one.
	Concurrency int
}

// Coordinator holds a main runner and named specialists.
type Coordinator struct {
	main        Runner
	telemetry   agent.Telemetry
	logger      *slog.Logger
	concurrency int

	mu          sync.RWMutex
	specialists map[string]Runner
}

func NewCoordinator(main Runner, opts Options) (*Coordinator, error) {
	if main == nil {
		return nil, ErrMissingMain
	}
	if opts.Telemetry == nil {
		opts.Telemetry = noopTelemetry{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Coordinator{
		main:        main,
		telemetry:   opts.Telemetry,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		specialists: map[string]Runner{},
	}, nil
}

// Register adds or replaces a specialist under name.
func (c *Coordinator) Register(name string, runner Runner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specialists[name] = runner
}

// Specialists returns the registered names in lexical order.
func (c *Coordinator) Specialists() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.specialists))
	for name := range c.specialists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Delegate runs subtask on the named specialist. An unknown specialist yields
// a failed delegation rather than an error.
func (c *Coordinator) Delegate(ctx context.Context, subtask agent.Task, specialist string) Delegation {
	c.mu.RLock()
	runner, ok := c.specialists[specialist]
	c.mu.RUnlock()
	if !ok || runner == nil {
		return Delegation{
			TaskID:     subtask.ID,
			Subtask:    subtask.Instruction,
			Specialist: specialist,
			Status:     agent.TrajectoryStatusFailed,
			Error:      fmt.Sprintf("Specialist '%s' not found", specialist),
		}
	}
	return c.execute(ctx, runner, subtask, specialist)
}

// Coordinate runs each subtask against its specialist, or the main runner for
// "main" and empty names. Subtask IDs are "<task.ID>_sub_<n>". The report is
// completed only when every subtask completed.
func (c *Coordinator) Coordinate(ctx context.Context, task agent.Task, subtasks []Subtask) Report {
	results := make([]Delegation, len(subtasks))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, def := range subtasks {
		subtask := agent.Task{
			ID:          fmt.Sprintf("%s_sub_%d", task.ID, i),
			Instruction: def.Instruction,
			Context:     def.Context,
			MaxSteps:    def.MaxSteps,
			Metadata:    map[string]any{"parent_task_id": task.ID},
		}
		if subtask.MaxSteps == 0 {
			subtask.MaxSteps = DefaultSubtaskMaxSteps
		}
		specialist := def.Specialist
		if specialist == "" {
			specialist = MainSpecialist
		}

		g.Go(func() error {
			if specialist == MainSpecialist {
				results[i] = c.execute(ctx, c.main, subtask, specialist)
			} else {
				results[i] = c.Delegate(ctx, subtask, specialist)
			}
			return nil
		})
	}
	_ = g.Wait()

	status := agent.TrajectoryStatusCompleted
	for _, result := range results {
		if result.Status != agent.TrajectoryStatusCompleted {
			status = agent.TrajectoryStatusFailed
			break
		}
	}
	c.logger.Info("coordinated task", "task_id", task.ID, "subtasks", len(subtasks), "status", status)
	return Report{
		TaskID:         task.ID,
		SubtaskResults: results,
		Status:         status,
	}
}

func (c *Coordinator) execute(ctx context.Context, runner Runner, subtask agent.Task, specialist string) Delegation {
	end := telemetry.StartSpan(c.telemetry, "delegation", map[string]any{
		"task_id":    subtask.ID,
		"specialist": specialist,
	})

	delegation := Delegation{
		TaskID:     subtask.ID,
		Subtask:    subtask.Instruction,
		Specialist: specialist,
	}
	result, err := runner.Run(ctx, subtask)
	delegation.Status = result.Status
	delegation.Result = result.FinalAnswer
	if result.Trajectory.TaskID != "" {
		trajectory := result.Trajectory
		delegation.Trajectory = &trajectory
	}
	if err != nil {
		delegation.Error = err.Error()
		c.logger.Warn("delegated subtask errored", "task_id", subtask.ID, "specialist", specialist, "error", err)
	}
	if !delegation.Status.IsTerminal() {
		delegation.Status = agent.TrajectoryStatusFailed
	}

	if delegation.Status == agent.TrajectoryStatusCompleted {
		end(nil)
	} else {
		end(fmt.Errorf("subtask %s ended %s", subtask.ID, delegation.Status))
	}
	return delegation
}

type noopTelemetry struct{}

func (noopTelemetry) Emit(string, map[string]any) {}
