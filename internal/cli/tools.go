package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newToolsCommand(root *rootOptions) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := root.openRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(context.WithoutCancel(cmd.Context())) }()

			definitions := rt.Tools.ListForModel()
			if verbose {
				return writeJSON(cmd.OutOrStdout(), definitions)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDESCRIPTION\tPARAMETERS")
			for _, definition := range definitions {
				properties, _ := definition.Parameters["properties"].(map[string]any)
				names := make([]string, 0, len(properties))
				for name := range properties {
					names = append(names, name)
				}
				slices.Sort(names)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", definition.Name, definition.Description, strings.Join(names, ", "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print full tool definitions as JSON")
	return cmd
}
