package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/railwayapp/wharf/internal/logs"
)

type serviceAction struct {
	use, short string
	all        func(a *app, ctx context.Context) (int, error)
	one        func(a *app, ctx context.Context, service string) (int, error)
}

var serviceActions = []serviceAction{
	{
		use:   "stop [service]",
		short: "Stop the environment, or one service, and remove the environment network",
		all:   func(a *app, ctx context.Context) (int, error) { return a.driver.Stop(ctx) },
		one:   func(a *app, ctx context.Context, s string) (int, error) { return a.driver.StopService(ctx, s) },
	},
	{
		use:   "clean [service]",
		short: "Remove stopped containers",
		all:   func(a *app, ctx context.Context) (int, error) { return a.driver.Clean(ctx) },
		one:   func(a *app, ctx context.Context, s string) (int, error) { return a.driver.CleanService(ctx, s) },
	},
	{
		use:   "pull [service]",
		short: "Pull the images of the environment",
		all:   func(a *app, ctx context.Context) (int, error) { return a.driver.Pull(ctx) },
		one:   func(a *app, ctx context.Context, s string) (int, error) { return a.driver.PullService(ctx, s) },
	},
}

func (sa serviceAction) command() *cobra.Command {
	return &cobra.Command{
		Use:   sa.use,
		Short: sa.short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 1 {
				return exitWith(sa.one(a, ctx, args[0]))
			}
			return exitWith(sa.all(a, ctx))
		},
	}
}

var startCmd = &cobra.Command{
	Use:   "start [service]",
	Short: "Regenerate the descriptor and start the environment, or one service",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")

		ctx, a, err := newApp(cmd, appOptions{withLogs: follow})
		if err != nil {
			return err
		}
		defer a.close()

		var status int
		if len(args) == 1 {
			status, err = a.driver.StartService(ctx, args[0])
		} else {
			status, err = a.driver.Start(ctx)
		}
		if err != nil || status != 0 || !follow {
			return exitWith(status, err)
		}

		a.logs.RegisterListener(printer(cmd), nil)
		waitForInterrupt(ctx)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the backend view of the environment containers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		return exitWith(a.driver.Status(ctx))
	},
}

func printer(cmd *cobra.Command) logs.Listener {
	out := cmd.OutOrStdout()
	return logs.ListenerFunc(func(e logs.Entry) {
		fmt.Fprintf(out, "%s | %s\n", e.Service, e.Line)
	})
}

func waitForInterrupt(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

func init() {
	startCmd.Flags().BoolP("follow", "f", false, "stream container logs after start until interrupted")
	rootCmd.AddCommand(startCmd, statusCmd)
	for _, sa := range serviceActions {
		rootCmd.AddCommand(sa.command())
	}
}
