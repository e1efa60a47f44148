package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Regenerate the compose descriptor and print its path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.driver.WriteDescriptor(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.driver.DescriptorPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(composeCmd)
}
