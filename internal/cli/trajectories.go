package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/config"
	"github.com/Gurpartap/taskloop/trajstore"
)

// statusCounter is implemented by stores that can aggregate by status.
type statusCounter interface {
	CountByStatus(ctx context.Context) (map[agent.TrajectoryStatus]int, error)
}

func (o *rootOptions) openStore(cmd *cobra.Command) (trajstore.Store, config.Config, error) {
	cfg, logger, err := o.setup(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}
	if cfg.Store.Driver == trajstore.DriverMemory {
		logger.Warn("memory store holds no trajectories from earlier processes")
	}
	store, err := trajstore.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("open trajectory store: %w", err)
	}
	return store, cfg, nil
}

func newShowCommand(root *rootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a stored trajectory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := root.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			trajectory, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), trajectory)
			}
			printTrajectory(cmd.OutOrStdout(), trajectory)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full trajectory as JSON")
	return cmd
}

func newListCommand(root *rootOptions) *cobra.Command {
	var counts bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored trajectory ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := root.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			output := cmd.OutOrStdout()
			if counts {
				counter, ok := store.(statusCounter)
				if !ok {
					return fmt.Errorf("%s store does not support --counts", cfg.Store.Driver)
				}
				byStatus, err := counter.CountByStatus(cmd.Context())
				if err != nil {
					return err
				}
				statuses := make([]string, 0, len(byStatus))
				for status := range byStatus {
					statuses = append(statuses, string(status))
				}
				slices.Sort(statuses)
				for _, status := range statuses {
					fmt.Fprintf(output, "%s\t%d\n", status, byStatus[agent.TrajectoryStatus(status)])
				}
				return nil
			}

			ids, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(output, id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&counts, "counts", false, "print trajectory counts by status (sqlite store only)")
	return cmd
}
