// Package config loads taskloop settings from an optional YAML file and
// TASKLOOP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Gurpartap/taskloop/adapters/modeltest"
	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/tooling/builtin"
	"github.com/Gurpartap/taskloop/trajstore"
)

const (
	defaultHTTPAddr        = "127.0.0.1:8080"
	defaultShutdownTimeout = 5 * time.Second
	defaultModelTimeout    = 60 * time.Second
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultMetricsPath     = "/metrics"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type ModelProvider string

const (
	// ModelProviderPattern is the offline keyword-rule model.
	ModelProviderPattern ModelProvider = "pattern"
	ModelProviderOpenAI  ModelProvider = "openai"
	ModelProviderOllama  ModelProvider = "ollama"
)

type LogConfig struct {
	Level  string    `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

type AgentConfig struct {
	MaxSteps     int    `yaml:"max_steps"`
	MaxFailures  int    `yaml:"max_failures"`
	SystemPrompt string `yaml:"system_prompt"`
	// Concurrency bounds parallel subtasks during coordination.
	Concurrency int `yaml:"concurrency"`
}

type ModelConfig struct {
	Provider          ModelProvider    `yaml:"provider"`
	Name              string           `yaml:"name"`
	BaseURL           string           `yaml:"base_url"`
	APIKey            string           `yaml:"api_key"`
	Temperature       float32          `yaml:"temperature"`
	MaxTokens         int              `yaml:"max_tokens"`
	Timeout           time.Duration    `yaml:"timeout"`
	MaxAttempts       int              `yaml:"max_attempts"`
	RequestsPerMinute int              `yaml:"requests_per_minute"`
	Rules             []modeltest.Rule `yaml:"rules"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type TelemetryConfig struct {
	Console     bool   `yaml:"console"`
	Log         bool   `yaml:"log"`
	Metrics     bool   `yaml:"metrics"`
	MetricsPath string `yaml:"metrics_path"`
	Tracing     bool   `yaml:"tracing"`
}

type ToolsConfig struct {
	Builtin   []string `yaml:"builtin"`
	Manifests []string `yaml:"manifests"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Config is the complete runtime configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Agent     AgentConfig     `yaml:"agent"`
	Model     ModelConfig     `yaml:"model"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Tools     ToolsConfig     `yaml:"tools"`
	HTTP      HTTPConfig      `yaml:"http"`
}

func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
		Agent: AgentConfig{
			MaxSteps:    agent.DefaultMaxSteps,
			MaxFailures: agent.DefaultMaxFailures,
			Concurrency: 1,
		},
		Model: ModelConfig{
			Provider:    ModelProviderPattern,
			Timeout:     defaultModelTimeout,
			MaxAttempts: 1,
		},
		Store: StoreConfig{
			Driver: trajstore.DriverMemory,
		},
		Telemetry: TelemetryConfig{
			Log:         true,
			MetricsPath: defaultMetricsPath,
		},
		Tools: ToolsConfig{
			Builtin: builtin.Names(),
		},
		HTTP: HTTPConfig{
			Addr:            defaultHTTPAddr,
			ShutdownTimeout: defaultShutdownTimeout,
		},
	}
}

// Load reads .env when present, then path (if non-empty), then the process
// environment, and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFrom(path, os.Getenv)
}

// LoadFrom is Load without the .env step, reading variables through getenv.
func LoadFrom(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	cfg.applyProviderDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	lookup := func(name string) string {
		return strings.TrimSpace(getenv(name))
	}

	if level := lookup("TASKLOOP_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := lookup("TASKLOOP_LOG_FORMAT"); format != "" {
		parsed, err := parseLogFormat(format)
		if err != nil {
			return err
		}
		c.Log.Format = parsed
	}

	intVars := []struct {
		name string
		dst  *int
	}{
		{"TASKLOOP_MAX_STEPS", &c.Agent.MaxSteps},
		{"TASKLOOP_MAX_FAILURES", &c.Agent.MaxFailures},
		{"TASKLOOP_CONCURRENCY", &c.Agent.Concurrency},
		{"TASKLOOP_MODEL_MAX_TOKENS", &c.Model.MaxTokens},
		{"TASKLOOP_MODEL_MAX_ATTEMPTS", &c.Model.MaxAttempts},
		{"TASKLOOP_MODEL_REQUESTS_PER_MINUTE", &c.Model.RequestsPerMinute},
	}
	for _, v := range intVars {
		raw := lookup(v.name)
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", v.name, err)
		}
		*v.dst = parsed
	}

	durationVars := []struct {
		name string
		dst  *time.Duration
	}{
		{"TASKLOOP_MODEL_TIMEOUT", &c.Model.Timeout},
		{"TASKLOOP_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout},
	}
	for _, v := range durationVars {
		raw := lookup(v.name)
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", v.name, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("parse %s: value must be > 0", v.name)
		}
		*v.dst = parsed
	}

	boolVars := []struct {
		name string
		dst  *bool
	}{
		{"TASKLOOP_TELEMETRY_CONSOLE", &c.Telemetry.Console},
		{"TASKLOOP_TELEMETRY_LOG", &c.Telemetry.Log},
		{"TASKLOOP_TELEMETRY_METRICS", &c.Telemetry.Metrics},
		{"TASKLOOP_TELEMETRY_TRACING", &c.Telemetry.Tracing},
	}
	for _, v := range boolVars {
		raw := lookup(v.name)
		if raw == "" {
			continue
		}
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", v.name, err)
		}
		*v.dst = parsed
	}

	if provider := lookup("TASKLOOP_MODEL_PROVIDER"); provider != "" {
		c.Model.Provider = ModelProvider(strings.ToLower(provider))
	}
	if name := lookup("TASKLOOP_MODEL_NAME"); name != "" {
		c.Model.Name = name
	}
	if baseURL := lookup("TASKLOOP_MODEL_BASE_URL"); baseURL != "" {
		c.Model.BaseURL = baseURL
	}
	if key := lookup("TASKLOOP_MODEL_API_KEY"); key != "" {
		c.Model.APIKey = key
	} else if key := lookup("OPENAI_API_KEY"); key != "" && c.Model.APIKey == "" {
		c.Model.APIKey = key
	}
	if driver := lookup("TASKLOOP_STORE_DRIVER"); driver != "" {
		c.Store.Driver = strings.ToLower(driver)
	}
	if path := lookup("TASKLOOP_STORE_PATH"); path != "" {
		c.Store.Path = path
	}
	if tools := lookup("TASKLOOP_TOOLS"); tools != "" {
		c.Tools.Builtin = splitList(tools)
	}
	if manifests := lookup("TASKLOOP_TOOL_MANIFESTS"); manifests != "" {
		c.Tools.Manifests = splitList(manifests)
	}
	if addr := lookup("TASKLOOP_HTTP_ADDR"); addr != "" {
		c.HTTP.Addr = addr
	}
	return nil
}

func (c *Config) applyProviderDefaults() {
	if c.Model.Provider == ModelProviderOpenAI {
		if c.Model.Name == "" {
			c.Model.Name = defaultOpenAIModel
		}
		if c.Model.BaseURL == "" {
			c.Model.BaseURL = defaultOpenAIBaseURL
		}
	}
}

func (c Config) Validate() error {
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf(
			"validate config: unsupported TASKLOOP_LOG_FORMAT %q (allowed: %q, %q)",
			c.Log.Format,
			LogFormatText,
			LogFormatJSON,
		)
	}

	if c.Agent.MaxSteps < 0 {
		return errors.New("validate config: TASKLOOP_MAX_STEPS must be >= 0")
	}
	if c.Agent.MaxFailures < 0 {
		return errors.New("validate config: TASKLOOP_MAX_FAILURES must be >= 0")
	}
	if c.Agent.Concurrency < 0 {
		return errors.New("validate config: TASKLOOP_CONCURRENCY must be >= 0")
	}

	switch c.Model.Provider {
	case ModelProviderPattern, ModelProviderOllama:
	case ModelProviderOpenAI:
		if strings.TrimSpace(c.Model.Name) == "" {
			return errors.New("validate config: openai provider requires TASKLOOP_MODEL_NAME")
		}
		if strings.TrimSpace(c.Model.APIKey) == "" && c.Model.BaseURL == defaultOpenAIBaseURL {
			return errors.New("validate config: openai provider requires TASKLOOP_MODEL_API_KEY")
		}
	default:
		return fmt.Errorf(
			"validate config: unsupported TASKLOOP_MODEL_PROVIDER %q (allowed: %q, %q, %q)",
			c.Model.Provider,
			ModelProviderPattern,
			ModelProviderOpenAI,
			ModelProviderOllama,
		)
	}
	if c.Model.Timeout <= 0 {
		return errors.New("validate config: TASKLOOP_MODEL_TIMEOUT must be > 0")
	}
	if c.Model.MaxAttempts < 0 || c.Model.RequestsPerMinute < 0 || c.Model.MaxTokens < 0 {
		return errors.New("validate config: model limits must be >= 0")
	}

	switch c.Store.Driver {
	case trajstore.DriverMemory, trajstore.DriverBadger:
	case trajstore.DriverSQLite, trajstore.DriverFile:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("validate config: %s store requires TASKLOOP_STORE_PATH", c.Store.Driver)
		}
	default:
		return fmt.Errorf(
			"validate config: unsupported TASKLOOP_STORE_DRIVER %q (allowed: %s)",
			c.Store.Driver,
			strings.Join(trajstore.Drivers(), ", "),
		)
	}

	for _, name := range c.Tools.Builtin {
		if !builtin.IsBuiltin(name) {
			return fmt.Errorf(
				"validate config: unsupported builtin tool %q (allowed: %s)",
				name,
				strings.Join(builtin.Names(), ", "),
			)
		}
	}

	if c.Telemetry.Metrics && !strings.HasPrefix(c.Telemetry.MetricsPath, "/") {
		return fmt.Errorf("validate config: metrics path %q must start with /", c.Telemetry.MetricsPath)
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("validate config: TASKLOOP_HTTP_ADDR is empty")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("validate config: TASKLOOP_SHUTDOWN_TIMEOUT must be > 0")
	}
	return nil
}

// ParseLogLevel maps debug, info, warn (or warning) and error to slog levels.
func ParseLogLevel(input string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf(
			"unsupported TASKLOOP_LOG_LEVEL %q (allowed: %q, %q, %q, %q)",
			input,
			"debug",
			"info",
			"warn",
			"error",
		)
	}
}

func parseLogFormat(input string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf(
			"parse TASKLOOP_LOG_FORMAT: unsupported value %q (allowed: %q, %q)",
			input,
			LogFormatText,
			LogFormatJSON,
		)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
