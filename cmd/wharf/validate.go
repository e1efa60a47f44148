package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/railwayapp/wharf/internal/compose"
	"github.com/railwayapp/wharf/internal/ctxlog"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that docker compose accepts the generated descriptor and its env files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.close()
		logger := ctxlog.FromContext(ctx)

		if err := a.driver.WriteDescriptor(ctx); err != nil {
			return err
		}
		modules, err := a.env.Modules(ctx)
		if err != nil {
			return err
		}

		for _, m := range modules {
			for _, path := range m.EnvFiles {
				if _, err := godotenv.Read(path); err != nil {
					return fmt.Errorf("invalid env file %s of module %s: %w", path, m.Name, err)
				}
				logger.Debug("env file ok", "module", m.Name, "path", path)
			}
		}

		project, err := compose.Load(ctx, a.driver.DescriptorPath(), a.driver.ProjectName())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d services, network %s\n",
			a.driver.DescriptorPath(), len(project.Services), a.driver.NetworkName())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
