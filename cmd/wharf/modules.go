package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/railwayapp/wharf/internal/export"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Print the resolved module list with its volumes and env files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")
		exporter, err := export.Lookup(format)
		if err != nil {
			return err
		}

		ctx, a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		modules, err := a.env.Modules(ctx)
		if err != nil {
			return err
		}
		out, err := exporter.Export(modules)
		if err != nil {
			return fmt.Errorf("%s export failed: %w", exporter.Name(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	modulesCmd.Flags().StringP("output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(modulesCmd)
}
