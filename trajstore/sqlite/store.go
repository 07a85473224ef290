// Package sqlite stores trajectories in a SQLite database, one row per task.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Gurpartap/taskloop/agent"
)

const schema = `
CREATE TABLE IF NOT EXISTS trajectories (
	task_id     TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	start_time  TEXT NOT NULL,
	end_time    TEXT,
	step_count  INTEGER NOT NULL,
	record      TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trajectories_status ON trajectories(status);
`

// Store is a SQLite-backed trajectory store.
type Store struct {
	db *sql.DB
}

var _ agent.TrajectoryStore = (*Store)(nil)

// Open opens or creates the database at path. ":memory:" keeps everything in
// a single in-process connection.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
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

	var endTime sql.NullString
	if trajectory.EndTime != nil {
		endTime = sql.NullString{String: trajectory.EndTime.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trajectories (task_id, status, start_time, end_time, step_count, record, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			status = excluded.status,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			step_count = excluded.step_count,
			record = excluded.record,
			updated_at = excluded.updated_at`,
		trajectory.TaskID,
		string(trajectory.Status),
		trajectory.StartTime.UTC().Format(time.RFC3339Nano),
		endTime,
		len(trajectory.Steps),
		string(record),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert trajectory %q: %w", trajectory.TaskID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, taskID string) (agent.Trajectory, error) {
	if ctx == nil {
		return agent.Trajectory{}, agent.ErrContextNil
	}

	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM trajectories WHERE task_id = ?`, taskID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.Trajectory{}, fmt.Errorf("%w: task_id=%q", agent.ErrTrajectoryNotFound, taskID)
	}
	if err != nil {
		return agent.Trajectory{}, fmt.Errorf("query trajectory %q: %w", taskID, err)
	}

	var trajectory agent.Trajectory
	if err := json.Unmarshal([]byte(record), &trajectory); err != nil {
		return agent.Trajectory{}, fmt.Errorf("decode trajectory %q: %w", taskID, err)
	}
	return trajectory, nil
}

// List returns the stored task IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id FROM trajectories ORDER BY task_id`)
	if err != nil {
		return nil, fmt.Errorf("list trajectories: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trajectories: %w", err)
	}
	return ids, nil
}

// CountByStatus reports how many stored trajectories ended in each status.
func (s *Store) CountByStatus(ctx context.Context) (map[agent.TrajectoryStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM trajectories GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count trajectories: %w", err)
	}
	defer rows.Close()

	counts := make(map[agent.TrajectoryStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[agent.TrajectoryStatus(status)] = count
	}
	return counts, rows.Err()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
