// Package cli implements the taskloop command tree.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/config"
	"github.com/Gurpartap/taskloop/internal/logging"
	"github.com/Gurpartap/taskloop/internal/runtimewire"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// Options customizes how commands resolve configuration and collaborators.
// The zero value reads the process environment and builds the configured
// model backend.
type Options struct {
	// Getenv replaces the process environment and skips the .env file.
	Getenv func(string) string
	// Model overrides the configured model backend.
	Model agent.Model
}

type rootOptions struct {
	Options
	configPath string
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand(opts Options) *cobra.Command {
	root := &rootOptions{Options: opts}

	cmd := &cobra.Command{
		Use:   "taskloop",
		Short: "Run language-model agents in a bounded decide/act loop",
		Long: `taskloop drives a language model through bounded steps of tool use,
records every step as a trajectory, and persists trajectories to the
configured store.

Configuration comes from an optional YAML file (--config) overridden by
TASKLOOP_* environment variables.`,
		Version:      Version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&root.configPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(newRunCommand(root))
	cmd.AddCommand(newDelegateCommand(root))
	cmd.AddCommand(newToolsCommand(root))
	cmd.AddCommand(newShowCommand(root))
	cmd.AddCommand(newListCommand(root))
	cmd.AddCommand(newServeCommand(root))

	return cmd
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.Getenv != nil {
		return config.LoadFrom(o.configPath, o.Getenv)
	}
	return config.Load(o.configPath)
}

// setup loads configuration and builds the logger. Logs go to stderr so
// that stdout carries only command output.
func (o *rootOptions) setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.FromConfig(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func (o *rootOptions) runtimeOptions(cmd *cobra.Command) runtimewire.Options {
	return runtimewire.Options{
		Model:         o.Model,
		ConsoleOutput: cmd.ErrOrStderr(),
		TraceOutput:   cmd.ErrOrStderr(),
	}
}

// openRuntime builds the full runtime. Callers must Close it.
func (o *rootOptions) openRuntime(cmd *cobra.Command) (*runtimewire.Runtime, error) {
	cfg, logger, err := o.setup(cmd)
	if err != nil {
		return nil, err
	}
	rt, err := runtimewire.New(cmd.Context(), cfg, logger, o.runtimeOptions(cmd))
	if err != nil {
		return nil, fmt.Errorf("build runtime: %w", err)
	}
	return rt, nil
}
