package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Gurpartap/taskloop/agent"
)

// Store keeps trajectories in memory keyed by task ID. Saving an existing
// task ID replaces the previous record.
type Store struct {
	mu           sync.RWMutex
	trajectories map[string]agent.Trajectory
}

var _ agent.TrajectoryStore = (*Store)(nil)

func New() *Store {
	return &Store{trajectories: map[string]agent.Trajectory{}}
}

func (s *Store) Save(ctx context.Context, trajectory agent.Trajectory) error {
	if ctx == nil {
		return agent.ErrContextNil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err := agent.ValidateTrajectory(trajectory); err != nil {
		return fmt.Errorf("save trajectory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trajectories[trajectory.TaskID] = agent.CloneTrajectory(trajectory)
	return nil
}

func (s *Store) Load(ctx context.Context, taskID string) (agent.Trajectory, error) {
	if ctx == nil {
		return agent.Trajectory{}, agent.ErrContextNil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	trajectory, ok := s.trajectories[taskID]
	if !ok {
		return agent.Trajectory{}, fmt.Errorf("%w: task_id=%q", agent.ErrTrajectoryNotFound, taskID)
	}
	return agent.CloneTrajectory(trajectory), nil
}

// List returns the stored task IDs in lexical order.
func (s *Store) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.trajectories))
	for id := range s.trajectories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Close() error {
	return nil
}
