// Package runtimewire composes the agent, its collaborators and observers
// from a config.Config.
package runtimewire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Gurpartap/taskloop/adapters/langchain"
	"github.com/Gurpartap/taskloop/adapters/modeltest"
	"github.com/Gurpartap/taskloop/adapters/openai"
	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/config"
	"github.com/Gurpartap/taskloop/delegation"
	"github.com/Gurpartap/taskloop/policy/ratelimit"
	"github.com/Gurpartap/taskloop/policy/retry"
	"github.com/Gurpartap/taskloop/telemetry"
	"github.com/Gurpartap/taskloop/telemetry/metrics"
	oteltelemetry "github.com/Gurpartap/taskloop/telemetry/otel"
	"github.com/Gurpartap/taskloop/tooling"
	"github.com/Gurpartap/taskloop/tooling/builtin"
	"github.com/Gurpartap/taskloop/tooling/provider"
	"github.com/Gurpartap/taskloop/tooling/registry"
	"github.com/Gurpartap/taskloop/trajstore"
)

const (
	serviceName = "taskloop"
	// eventRetention bounds the in-process event log of long-lived runtimes.
	eventRetention = 1000
)

// Runtime contains the composed runtime dependencies.
type Runtime struct {
	Config      config.Config
	Logger      *slog.Logger
	Agent       *agent.Agent
	Coordinator *delegation.Coordinator
	Tools       *registry.Registry
	Store       trajstore.Store
	Telemetry   *telemetry.Telemetry
	// Metrics is nil unless metrics are enabled.
	Metrics *prometheus.Registry

	tracerProvider *sdktrace.TracerProvider
}

// Options overrides collaborators normally built from config.
type Options struct {
	Model         agent.Model
	ConsoleOutput io.Writer
	TraceOutput   io.Writer
	// TracerProvider replaces the stdout provider when tracing is enabled.
	// The runtime shuts it down on Close.
	TracerProvider *sdktrace.TracerProvider
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*Runtime, error) {
	if logger == nil {
		return nil, errors.New("new runtime: nil logger")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new runtime config: %w", err)
	}

	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		Telemetry: telemetry.New(telemetry.WithRetention(eventRetention)),
	}

	if err := rt.wireTelemetry(opts); err != nil {
		return nil, err
	}

	tools, err := newTools(ctx, cfg.Tools, logger)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("new runtime tools: %w", err)
	}
	rt.Tools = tools

	model := opts.Model
	if model == nil {
		model, err = newModel(cfg.Model, logger)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("new runtime model: %w", err)
		}
	}
	model = wrapModel(model, cfg.Model)

	store, err := trajstore.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("new runtime store: %w", err)
	}
	rt.Store = store

	rt.Agent, err = agent.NewAgent(agent.Dependencies{
		Model:        model,
		Tools:        tools,
		Telemetry:    rt.Telemetry,
		Store:        store,
		Logger:       logger,
		MaxFailures:  cfg.Agent.MaxFailures,
		SystemPrompt: cfg.Agent.SystemPrompt,
	})
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("new runtime agent: %w", err)
	}

	rt.Coordinator, err = delegation.NewCoordinator(rt.Agent, delegation.Options{
		Telemetry:   rt.Telemetry,
		Logger:      logger,
		Concurrency: cfg.Agent.Concurrency,
	})
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("new runtime coordinator: %w", err)
	}

	logger.Info("runtime ready",
		"model_provider", cfg.Model.Provider,
		"store_driver", cfg.Store.Driver,
		"tools", tools.Len(),
		"metrics", cfg.Telemetry.Metrics,
		"tracing", cfg.Telemetry.Tracing,
	)
	return rt, nil
}

// NewTask applies the configured step budget to a task that leaves it unset.
func (rt *Runtime) NewTask(id, instruction string, maxSteps int) agent.Task {
	task := agent.NewTask(id, instruction)
	task.MaxSteps = rt.Config.Agent.MaxSteps
	if maxSteps > 0 {
		task.MaxSteps = maxSteps
	}
	return task
}

// Close flushes traces and releases the store.
func (rt *Runtime) Close(ctx context.Context) error {
	var result error
	if rt.tracerProvider != nil {
		if err := rt.tracerProvider.Shutdown(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if rt.Store != nil {
		if err := rt.Store.Close(); err != nil {
			result = errors.Join(result, fmt.Errorf("close store: %w", err))
		}
	}
	return result
}

func (rt *Runtime) wireTelemetry(opts Options) error {
	cfg := rt.Config.Telemetry
	if cfg.Log {
		rt.Telemetry.AddHandler(telemetry.NewLogHandler(rt.Logger))
	}
	if cfg.Console {
		output := opts.ConsoleOutput
		if output == nil {
			output = os.Stderr
		}
		rt.Telemetry.AddHandler(telemetry.NewConsoleHandler(output))
	}
	if cfg.Metrics {
		rt.Metrics = prometheus.NewRegistry()
		rt.Telemetry.AddHandler(metrics.NewCollector(rt.Metrics).Handler())
	}
	if cfg.Tracing {
		provider := opts.TracerProvider
		if provider == nil {
			output := opts.TraceOutput
			if output == nil {
				output = os.Stderr
			}
			var err error
			provider, err = oteltelemetry.NewStdoutProvider(output, serviceName)
			if err != nil {
				return fmt.Errorf("new runtime tracing: %w", err)
			}
		}
		rt.tracerProvider = provider
		rt.Telemetry.AddHandler(oteltelemetry.NewSpanHandler(provider).Handler())
	}
	return nil
}

func newTools(ctx context.Context, cfg config.ToolsConfig, logger *slog.Logger) (*registry.Registry, error) {
	builtins := make([]tooling.Tool, 0, len(cfg.Builtin))
	for _, name := range cfg.Builtin {
		tool, err := builtin.ByName(name)
		if err != nil {
			return nil, err
		}
		builtins = append(builtins, tool)
	}

	providers := []tooling.Provider{provider.Static(builtins...)}
	for _, path := range cfg.Manifests {
		providers = append(providers, provider.Manifest(path))
	}

	tools := registry.New(registry.WithLogger(logger))
	if err := provider.LoadAll(ctx, tools, providers...); err != nil {
		return nil, err
	}
	return tools, nil
}

func newModel(cfg config.ModelConfig, logger *slog.Logger) (agent.Model, error) {
	switch cfg.Provider {
	case config.ModelProviderPattern:
		return modeltest.NewPatternModel(cfg.Rules...), nil
	case config.ModelProviderOpenAI:
		return openai.New(cfg.APIKey, cfg.Name,
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			openai.WithTemperature(cfg.Temperature),
			openai.WithMaxTokens(cfg.MaxTokens),
			openai.WithLogger(logger),
		)
	case config.ModelProviderOllama:
		return langchain.NewOllama(cfg.Name, cfg.BaseURL, langchain.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

func wrapModel(model agent.Model, cfg config.ModelConfig) agent.Model {
	if cfg.MaxAttempts > 1 {
		model = retry.WrapModel(model, retry.Config{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     retry.Exponential(500*time.Millisecond, 5*time.Second),
		})
	}
	if cfg.RequestsPerMinute > 0 {
		model = ratelimit.WrapModel(model, ratelimit.PerMinute(cfg.RequestsPerMinute, 1))
	}
	return model
}
