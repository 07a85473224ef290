package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/Gurpartap/taskloop/config"
	"github.com/Gurpartap/taskloop/internal/httpapi"
	"github.com/Gurpartap/taskloop/internal/runtimewire"
)

// App owns runtime wiring and HTTP server lifecycle.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	runtime *runtimewire.Runtime
	server  *http.Server
	ready   atomic.Bool
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts runtimewire.Options) (*App, error) {
	if logger == nil {
		return nil, errors.New("new app: nil logger")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new app config: %w", err)
	}

	runtime, err := runtimewire.New(ctx, cfg, logger, opts)
	if err != nil {
		return nil, fmt.Errorf("new app runtime: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		runtime: runtime,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/readyz", a.handleReadyz)
	mux.Handle("/", httpapi.NewRouter(runtime))
	a.server = &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: requestLoggingMiddleware(logger)(mux),
	}

	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Runtime returns the composed runtime backing the server.
func (a *App) Runtime() *runtimewire.Runtime {
	return a.runtime
}

// MarkReady flips the readiness probe without starting a listener.
func (a *App) MarkReady() {
	a.ready.Store(true)
}

func (a *App) Start() error {
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(listener)
}

// Serve accepts connections on listener until Shutdown.
func (a *App) Serve(listener net.Listener) error {
	a.ready.Store(true)
	a.logger.Info("http server listening", slog.String("addr", listener.Addr().String()))

	err := a.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	a.ready.Store(false)
	return err
}

// Shutdown drains in-flight requests, then releases the runtime. Connections
// still open at the deadline are closed forcibly.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown: nil context")
	}
	a.ready.Store(false)

	err := a.server.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		a.logger.Warn("graceful shutdown timed out; forcing connection close")
		if closeErr := a.server.Close(); closeErr != nil {
			err = fmt.Errorf("shutdown timeout and forced close failed: %w", errors.Join(err, closeErr))
		} else {
			err = nil
		}
	}

	if closeErr := a.runtime.Close(context.WithoutCancel(ctx)); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writePlain(w, http.StatusOK, "ok")
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !a.ready.Load() || a.runtime == nil {
		writePlain(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writePlain(w, http.StatusOK, "ready")
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
