package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/delegation"
)

// taskFile is the YAML layout accepted by --task and --plan.
type taskFile struct {
	ID          string               `yaml:"id"`
	Instruction string               `yaml:"instruction"`
	MaxSteps    int                  `yaml:"max_steps"`
	Context     map[string]any       `yaml:"context"`
	Metadata    map[string]any       `yaml:"metadata"`
	Subtasks    []delegation.Subtask `yaml:"subtasks"`
}

func readTaskFile(path string) (taskFile, error) {
	var file taskFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("read task file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return file, fmt.Errorf("parse task file %s: %w", path, err)
	}
	return file, nil
}

type runFlags struct {
	taskPath    string
	id          string
	instruction string
	maxSteps    int
	jsonOutput  bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one task to completion",
		Long: `Run one task through the decide/act loop and print its trajectory.

The task comes from a YAML file (--task) or from flags. Flags override
the matching fields of the file. A task without an id gets a random one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTask(cmd, root, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.taskPath, "task", "t", "", "path to a YAML task file")
	cmd.Flags().StringVar(&flags.id, "id", "", "task id (default: random uuid)")
	cmd.Flags().StringVarP(&flags.instruction, "instruction", "i", "", "task instruction")
	cmd.Flags().IntVar(&flags.maxSteps, "max-steps", 0, "step budget (default: configured max steps)")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "print the full result as JSON")
	return cmd
}

func runTask(cmd *cobra.Command, root *rootOptions, flags *runFlags) error {
	var file taskFile
	if flags.taskPath != "" {
		var err error
		if file, err = readTaskFile(flags.taskPath); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("id") {
		file.ID = flags.id
	}
	if cmd.Flags().Changed("instruction") {
		file.Instruction = flags.instruction
	}
	if cmd.Flags().Changed("max-steps") {
		file.MaxSteps = flags.maxSteps
	}
	if strings.TrimSpace(file.Instruction) == "" {
		return errors.New("an instruction is required (use --instruction or --task)")
	}
	if file.ID == "" {
		file.ID = uuid.NewString()
	}

	rt, err := root.openRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(cmd.Context())) }()

	task := rt.NewTask(file.ID, file.Instruction, file.MaxSteps)
	maps.Copy(task.Context, file.Context)
	maps.Copy(task.Metadata, file.Metadata)

	result, runErr := rt.Agent.Run(cmd.Context(), task)
	if result.TaskID == "" {
		return runErr
	}

	output := cmd.OutOrStdout()
	if flags.jsonOutput {
		if err := writeJSON(output, result); err != nil {
			return err
		}
	} else {
		printTrajectory(output, result.Trajectory)
	}
	return runErr
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func statusColor(status agent.TrajectoryStatus) *color.Color {
	switch status {
	case agent.TrajectoryStatusCompleted:
		return color.New(color.FgGreen, color.Bold)
	case agent.TrajectoryStatusFailed:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgYellow, color.Bold)
	}
}

// printTrajectory renders a human-readable summary of a finished trajectory.
func printTrajectory(w io.Writer, trajectory agent.Trajectory) {
	fmt.Fprintf(w, "Task:   %s\n", trajectory.TaskID)
	fmt.Fprintf(w, "Status: %s\n", statusColor(trajectory.Status).Sprint(trajectory.Status))
	fmt.Fprintf(w, "Steps:  %d\n", len(trajectory.Steps))
	if trajectory.EndTime != nil {
		fmt.Fprintf(w, "Time:   %s\n", trajectory.EndTime.Sub(trajectory.StartTime).Round(time.Millisecond))
	}

	for _, step := range trajectory.Steps {
		fmt.Fprintf(w, "\nStep %d (%.0fms)\n", step.StepIndex, step.LatencyMS)
		if step.LLMResponse != "" {
			fmt.Fprintf(w, "  model: %s\n", step.LLMResponse)
		}
		if len(step.ToolResults) > 0 {
			for _, line := range strings.Split(agent.FormatToolResults(step.ToolResults), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}

	if trajectory.FinalResult != nil {
		fmt.Fprintf(w, "\nResult: %s\n", agent.Stringify(trajectory.FinalResult))
	}
}
