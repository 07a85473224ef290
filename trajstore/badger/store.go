// Package badger stores trajectories in an embedded Badger key-value store.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/Gurpartap/taskloop/agent"
)

const keyPrefix = "trajectory/"

// Store is a Badger-backed trajectory store.
type Store struct {
	db *badgerdb.DB
}

var _ agent.TrajectoryStore = (*Store)(nil)

// Open opens the database directory at path. An empty path opens an
// in-memory database.
func Open(path string) (*Store, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

func key(taskID string) []byte {
	return []byte(keyPrefix + taskID)
}

func (s *Store) Save(ctx context.Context, trajectory agent.Trajectory) error {
	if ctx == nil {
		return agent.ErrContextNil
	}
	if err := agent.ValidateTrajectory(trajectory); err != nil {
		return fmt.Errorf("save trajectory: %w", err)
	}
	record, err := json.Marshal(trajectory)
	if err != nil {
		return fmt.Errorf("encode trajectory %q: %w", trajectory.TaskID, err)
	}
	if err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key(trajectory.TaskID), record)
	}); err != nil {
		return fmt.Errorf("write trajectory %q: %w", trajectory.TaskID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, taskID string) (agent.Trajectory, error) {
	if ctx == nil {
		return agent.Trajectory{}, agent.ErrContextNil
	}

	var record []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key(taskID))
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return agent.Trajectory{}, fmt.Errorf("%w: task_id=%q", agent.ErrTrajectoryNotFound, taskID)
	}
	if err != nil {
		return agent.Trajectory{}, fmt.Errorf("read trajectory %q: %w", taskID, err)
	}

	var trajectory agent.Trajectory
	if err := json.Unmarshal(record, &trajectory); err != nil {
		return agent.Trajectory{}, fmt.Errorf("decode trajectory %q: %w", taskID, err)
	}
	return trajectory, nil
}

// List returns the stored task IDs in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list trajectories: %w", err)
	}
	return ids, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
