// Package file stores each trajectory as an indented JSON document in a
// directory, guarded by an advisory lock so several processes can share it.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/Gurpartap/taskloop/agent"
)

const (
	extension = ".json"
	lockName  = ".lock"
)

// Store is a directory of trajectory documents.
type Store struct {
	dir      string
	lockPath string
}

var _ agent.TrajectoryStore = (*Store)(nil)

// Open uses dir as the store root, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}
	return &Store{
		dir:      dir,
		lockPath: filepath.Join(dir, lockName),
	}, nil
}

// path escapes a leading dot so stored documents never collide with the lock
// or temp files, which List skips as hidden.
func (s *Store) path(taskID string) string {
	name := url.PathEscape(taskID)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return filepath.Join(s.dir, name+extension)
}

// Each operation opens its own lock handle. A shared handle would treat a
// second Lock from another goroutine as already held.
func (s *Store) newLock() *flock.Flock {
	return flock.New(s.lockPath)
}

func (s *Store) Save(ctx context.Context, trajectory agent.Trajectory) error {
	if ctx == nil {
		return agent.ErrContextNil
	}
	if err := agent.ValidateTrajectory(trajectory); err != nil {
		return fmt.Errorf("save trajectory: %w", err)
	}
	record, err := json.MarshalIndent(trajectory, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trajectory %q: %w", trajectory.TaskID, err)
	}

	lock := s.newLock()
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock on %s: %w", s.dir, err)
	}
	defer func() { _ = lock.Close() }()

	return atomicWrite(s.path(trajectory.TaskID), record)
}

func (s *Store) Load(ctx context.Context, taskID string) (agent.Trajectory, error) {
	if ctx == nil {
		return agent.Trajectory{}, agent.ErrContextNil
	}

	lock := s.newLock()
	if err := lock.RLock(); err != nil {
		return agent.Trajectory{}, fmt.Errorf("acquire read lock on %s: %w", s.dir, err)
	}
	defer func() { _ = lock.Close() }()

	record, err := os.ReadFile(s.path(taskID))
	if errors.Is(err, os.ErrNotExist) {
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

// List returns the stored task IDs in lexical order.
func (s *Store) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, extension) || strings.HasPrefix(name, ".") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, extension))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Close() error {
	return nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
