package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/railwayapp/wharf/internal/config"
)

var (
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "wharf",
	Short: "Run a local multi-container environment from a module dependency graph",
	Long: `Wharf resolves the dependency closure of a root module, merges the
configuration every module contributes to the others and drives docker compose
through the lifecycle of the resulting environment:
1. Resolve - Walk the module catalog from the root coordinate
2. Overlay - Materialize resource bundles and compute file and env contributions
3. Generate - Write the compose descriptor
4. Run - Start, inspect, tail and stop the containers`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var status exitStatus
	if errors.As(err, &status) {
		os.Exit(int(status))
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wharf.yaml or ./wharf.yaml)")
	flags.String("catalog", "", "module catalog file (yaml, toml or json)")
	flags.String("root", "", "root module coordinate, group:name[:version]")
	flags.String("resources-root", "", "working directory for module resources")
	flags.String("top-level-resources", "", "read the root module resources from this directory")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	bindFlag("catalog", "catalog")
	bindFlag("root", "root")
	bindFlag("resources_root", "resources-root")
	bindFlag("top_level_resources", "top-level-resources")
	bindFlag("log.level", "log-level")
}

func bindFlag(key, flag string) {
	cobra.CheckErr(v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)))
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".wharf")
	}

	err := v.ReadInConfig()
	if err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
		return
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
		cobra.CheckErr(err)
	}

	if cfgFile == "" {
		v.SetConfigName("wharf")
		if err := v.ReadInConfig(); err == nil {
			fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
		}
	}
}
