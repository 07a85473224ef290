package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurpartap/taskloop/adapters/modeltest"
	"github.com/Gurpartap/taskloop/config"
	"github.com/Gurpartap/taskloop/internal/runtimewire"
)

func newTestApp(t *testing.T, logs io.Writer) *App {
	t.Helper()

	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Telemetry.Log = false
	application, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(logs, nil)), runtimewire.Options{
		Model: modeltest.Repeating(modeltest.Stop("done")),
	})
	require.NoError(t, err)
	return application
}

func TestReadyzFollowsLifecycle(t *testing.T) {
	t.Parallel()

	application := newTestApp(t, io.Discard)
	t.Cleanup(func() { _ = application.Shutdown(context.Background()) })

	get := func(path string) (int, string) {
		recorder := httptest.NewRecorder()
		application.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		return recorder.Code, recorder.Body.String()
	}

	status, body := get("/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)

	status, _ = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	application.MarkReady()
	status, body = get("/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body)

	recorder := httptest.NewRecorder()
	application.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func TestServeAndShutdown(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	application := newTestApp(t, &logs)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serverErr := make(chan error, 1)
	go func() { serverErr <- application.Serve(listener) }()

	baseURL := "http://" + listener.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/readyz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(baseURL+"/v1/tasks", "application/json", strings.NewReader(`{"id":"app-1","instruction":"hi"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(baseURL + "/v1/trajectories/app-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, application.Shutdown(ctx))

	select {
	case err := <-serverErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after shutdown")
	}

	assert.Contains(t, logs.String(), "http request")
	assert.Contains(t, logs.String(), "task_id=app-1")
}

func TestShutdownRejectsNilContext(t *testing.T) {
	t.Parallel()

	application := newTestApp(t, io.Discard)
	t.Cleanup(func() { _ = application.Shutdown(context.Background()) })

	//nolint:staticcheck // exercising the nil guard
	require.Error(t, application.Shutdown(nil))
}

func TestTaskIDFromPath(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]string{
		"/v1/trajectories/abc": "abc",
		"/v1/trajectories/":    "",
		"/v1/trajectories":     "",
		"/v1/tasks":            "",
		"/v1/trajectories/a/b": "",
		"/healthz":             "",
	} {
		assert.Equal(t, want, taskIDFromPath(path), path)
	}
}
