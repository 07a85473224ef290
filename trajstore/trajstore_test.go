package trajstore_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/trajstore"
)

func openStores(t *testing.T) map[string]trajstore.Store {
	t.Helper()

	dir := t.TempDir()
	paths := map[string]string{
		trajstore.DriverMemory: "",
		trajstore.DriverSQLite: filepath.Join(dir, "sqlite", "trajectories.db"),
		trajstore.DriverBadger: "",
		trajstore.DriverFile:   filepath.Join(dir, "files"),
	}

	stores := make(map[string]trajstore.Store, len(paths))
	for driver, path := range paths {
		store, err := trajstore.Open(driver, path)
		require.NoError(t, err, "open %s", driver)
		t.Cleanup(func() { _ = store.Close() })
		stores[driver] = store
	}
	return stores
}

func finishedTrajectory(t *testing.T, taskID string, status agent.TrajectoryStatus) agent.Trajectory {
	t.Helper()

	trajectory := agent.NewTrajectory(taskID)
	require.NoError(t, trajectory.AddStep(agent.TrajectoryStep{
		StepIndex:   0,
		Timestamp:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		LLMResponse: "checking",
		ToolCalls: []agent.ToolCall{
			{ID: "call_0", Name: "echo", Arguments: map[string]any{"text": "hi"}},
		},
		ToolResults: []agent.ToolCallResult{
			{ToolCallID: "call_0", ToolName: "echo", Result: "hi"},
		},
		LatencyMS: 3.25,
		Metadata:  map[string]any{"finish_reason": "tool_calls"},
	}))
	require.NoError(t, trajectory.Complete("done", status))
	return *trajectory
}

func assertSameRecord(t *testing.T, want, got agent.Trajectory) {
	t.Helper()

	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantJSON), string(gotJSON))
}

func TestStoresRoundTrip(t *testing.T) {
	t.Parallel()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			want := finishedTrajectory(t, "task/with spaces", agent.TrajectoryStatusCompleted)

			require.NoError(t, store.Save(ctx, want))
			got, err := store.Load(ctx, want.TaskID)
			require.NoError(t, err)

			assertSameRecord(t, want, got)
			assert.Equal(t, agent.TrajectoryStatusCompleted, got.Status)
			require.NotNil(t, got.EndTime)
			require.NoError(t, agent.ValidateTrajectory(got))
		})
	}
}

func TestStoresSaveUpserts(t *testing.T) {
	t.Parallel()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()

			inProgress := agent.NewTrajectory("task-upsert")
			require.NoError(t, store.Save(ctx, *inProgress))

			final := finishedTrajectory(t, "task-upsert", agent.TrajectoryStatusFailed)
			require.NoError(t, store.Save(ctx, final))

			got, err := store.Load(ctx, "task-upsert")
			require.NoError(t, err)
			assert.Equal(t, agent.TrajectoryStatusFailed, got.Status)
			assert.Len(t, got.Steps, 1)

			ids, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"task-upsert"}, ids)
		})
	}
}

func TestStoresLoadUnknownTask(t *testing.T) {
	t.Parallel()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			_, err := store.Load(context.Background(), "missing")
			require.ErrorIs(t, err, agent.ErrTrajectoryNotFound)
		})
	}
}

func TestStoresRejectInvalidTrajectory(t *testing.T) {
	t.Parallel()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			invalid := finishedTrajectory(t, "task-invalid", agent.TrajectoryStatusCompleted)
			invalid.EndTime = nil

			require.ErrorIs(t, store.Save(ctx, invalid), agent.ErrTrajectoryInvalid)

			_, err := store.Load(ctx, "task-invalid")
			require.ErrorIs(t, err, agent.ErrTrajectoryNotFound)
		})
	}
}

func TestStoresListSorted(t *testing.T) {
	t.Parallel()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"task-c", "task-a", "task-b"} {
				require.NoError(t, store.Save(ctx, finishedTrajectory(t, id, agent.TrajectoryStatusMaxStepsReached)))
			}

			ids, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"task-a", "task-b", "task-c"}, ids)
		})
	}
}

func TestStoresListDotPrefixedIDs(t *testing.T) {
	t.Parallel()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{".hidden", ".lock", "visible"} {
				require.NoError(t, store.Save(ctx, finishedTrajectory(t, id, agent.TrajectoryStatusCompleted)))
			}

			ids, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{".hidden", ".lock", "visible"}, ids)

			got, err := store.Load(ctx, ".hidden")
			require.NoError(t, err)
			assert.Equal(t, ".hidden", got.TaskID)
		})
	}
}

func TestStoresConcurrentSaves(t *testing.T) {
	t.Parallel()

	for driver, store := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			ids := []string{"task-0", "task-1", "task-2", "task-3", "task-4", "task-5"}

			var wg sync.WaitGroup
			errs := make(chan error, len(ids))
			for _, id := range ids {
				trajectory := finishedTrajectory(t, id, agent.TrajectoryStatusCompleted)
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- store.Save(ctx, trajectory)
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			listed, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, ids, listed)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := trajstore.Open("postgres", "")
	require.ErrorIs(t, err, trajstore.ErrUnknownDriver)

	_, err = trajstore.Open(trajstore.DriverFile, "")
	require.Error(t, err)
}
