package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Gurpartap/taskloop/delegation"
)

func newDelegateCommand(root *rootOptions) *cobra.Command {
	var (
		planPath   string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "delegate",
		Short: "Split a task into subtasks and run each one",
		Long: `Run the subtasks listed in a YAML plan and print the aggregated report.

The plan uses the task file layout plus a subtasks list. Each subtask runs
as its own task with id <task-id>_sub_<n>. Subtasks without a specialist
run on the main agent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := readTaskFile(planPath)
			if err != nil {
				return err
			}
			if len(plan.Subtasks) == 0 {
				return errors.New("plan has no subtasks")
			}
			if plan.ID == "" {
				plan.ID = uuid.NewString()
			}

			rt, err := root.openRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(context.WithoutCancel(cmd.Context())) }()

			parent := rt.NewTask(plan.ID, plan.Instruction, plan.MaxSteps)
			maps.Copy(parent.Context, plan.Context)
			maps.Copy(parent.Metadata, plan.Metadata)

			report := rt.Coordinator.Coordinate(cmd.Context(), parent, plan.Subtasks)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "path to a YAML plan with subtasks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full report as JSON")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func printReport(w io.Writer, report delegation.Report) {
	fmt.Fprintf(w, "Task:   %s\n", report.TaskID)
	fmt.Fprintf(w, "Status: %s\n", statusColor(report.Status).Sprint(report.Status))
	for _, result := range report.SubtaskResults {
		fmt.Fprintf(w, "\n%s [%s] %s\n", result.TaskID, result.Specialist,
			statusColor(result.Status).Sprint(result.Status))
		fmt.Fprintf(w, "  subtask: %s\n", result.Subtask)
		if result.Result != "" {
			fmt.Fprintf(w, "  result:  %s\n", result.Result)
		}
		if result.Error != "" {
			fmt.Fprintf(w, "  error:   %s\n", result.Error)
		}
	}
}
