package main

import (
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Stream the logs of every environment container until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, err := newApp(cmd, appOptions{withLogs: true})
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.driver.RegisterLogListener(ctx, printer(cmd)); err != nil {
			return err
		}
		waitForInterrupt(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
}
