package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/railwayapp/wharf/internal/command"
	"github.com/railwayapp/wharf/internal/config"
	"github.com/railwayapp/wharf/internal/ctxlog"
	"github.com/railwayapp/wharf/internal/environment"
	"github.com/railwayapp/wharf/internal/logs"
	"github.com/railwayapp/wharf/internal/module"
	"github.com/railwayapp/wharf/internal/orchestrator"
	"github.com/railwayapp/wharf/internal/resolver"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	env    *environment.Environment
	driver *orchestrator.Driver
	logs   *logs.Aggregator
}

type appOptions struct {
	// withLogs connects to the docker engine to capture container logs.
	withLogs bool
}

func newApp(cmd *cobra.Command, opts appOptions) (context.Context, *app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}

	logger := ctxlog.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	ctx := ctxlog.WithLogger(cmd.Context(), logger)

	if cfg.Root == "" {
		return nil, nil, errors.New("no root module, set --root or the root config key")
	}
	root, err := module.ParseCoordinate(cfg.Root)
	if err != nil {
		return nil, nil, err
	}

	catalog, err := resolver.LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, nil, err
	}
	res, err := resolver.NewCatalogResolver(catalog, filepath.Dir(cfg.Catalog), resolver.NewGitFetcher(cfg.Git.Cache))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid catalog %s: %w", cfg.Catalog, err)
	}

	env := environment.New(root, res, environment.Options{
		ResourcesRoot:     cfg.ResourcesRoot,
		TopLevelResources: cfg.TopLevelResources,
		Extensions:        []environment.Extension{environment.ImageOverrides(cfg.Images)},
	})

	a := &app{cfg: cfg, env: env}

	driverOpts := orchestrator.Options{
		Runner:        command.NewExec(cfg.Docker.Timeout),
		Docker:        cfg.Docker.Binary,
		Descriptor:    cfg.Descriptor,
		Network:       cfg.Network,
		Introspection: cfg.Docker.Introspection,
	}
	name, args := cfg.ComposeCommand()
	driverOpts.Compose = append([]string{name}, args...)

	if opts.withLogs {
		follower, err := logs.NewDockerFollower()
		if err != nil {
			return nil, nil, err
		}
		a.logs = logs.NewAggregator(ctx, follower)
		driverOpts.Logs = a.logs
	}

	a.driver = orchestrator.New(env, driverOpts)
	logger.Debug("environment ready", "root", root.String(), "resources", env.ResourcesRoot())
	return ctx, a, nil
}

func (a *app) close() {
	if a.logs != nil {
		a.logs.Close()
	}
}

// exitStatus carries a non-zero backend exit status out of a command.
type exitStatus int

func (s exitStatus) Error() string {
	return fmt.Sprintf("backend exited with status %d", int(s))
}

func exitWith(status int, err error) error {
	if err != nil {
		return err
	}
	if status != 0 {
		return exitStatus(status)
	}
	return nil
}
