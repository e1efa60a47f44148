package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List the environment containers with their state and address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.driver.EnsureDescriptor(ctx); err != nil {
			return err
		}
		containers, err := a.driver.Containers(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tID\tRUNNING\tIP")
		for _, c := range containers {
			id := c.ID
			if len(id) > 12 {
				id = id[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", c.Service, id, c.Running, c.IP)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(psCmd)
}
