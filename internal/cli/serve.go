package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Gurpartap/taskloop/internal/app"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API over HTTP",
		Long: `Serve the task API over HTTP until SIGINT or SIGTERM.

Routes:
  GET  /healthz, /readyz
  GET  /v1/tools
  POST /v1/tasks
  GET  /v1/trajectories
  GET  /v1/trajectories/{task_id}
  GET  /metrics (when telemetry metrics are enabled)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if logger.Enabled(cmd.Context(), slog.LevelDebug) {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger, root.runtimeOptions(cmd))
			if err != nil {
				return fmt.Errorf("create app: %w", err)
			}
			return serve(ctx, application, logger, cfg.HTTP.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: configured http.addr)")
	return cmd
}

func serve(ctx context.Context, application *app.App, logger *slog.Logger, shutdownTimeout time.Duration) error {
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- application.Start()
	}()

	select {
	case err := <-serverErrCh:
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return errors.Join(err, application.Shutdown(shutdownCtx))
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-serverErrCh; err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
