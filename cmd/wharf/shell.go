package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell <service>",
	Short: "Open an interactive shell in a running service container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shell, _ := cmd.Flags().GetString("shell")

		ctx, a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		c, ok, err := a.driver.Container(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("service %q has no container, is the environment started?", args[0])
		}
		return a.driver.Shell(ctx, c, shell)
	},
}

func init() {
	shellCmd.Flags().String("shell", "/bin/bash", "shell to execute in the container")
	rootCmd.AddCommand(shellCmd)
}
