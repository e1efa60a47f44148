// Package orchestrator drives the orchestration backend through the
// lifecycle of an environment: descriptor generation, container lifecycle,
// network bootstrap and log capture.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/railwayapp/wharf/internal/command"
	"github.com/railwayapp/wharf/internal/compose"
	"github.com/railwayapp/wharf/internal/config"
	"github.com/railwayapp/wharf/internal/ctxlog"
	"github.com/railwayapp/wharf/internal/logs"
	"github.com/railwayapp/wharf/internal/module"
)

// Environment supplies the modules to run and where their files live.
type Environment interface {
	Modules(ctx context.Context) ([]module.Module, error)
	ResourcesRoot() string
	TopLevelModuleName() string
}

// LogCapture is the log aggregation collaborator.
type LogCapture interface {
	EnsureCapturing(since time.Time, targets []logs.Target)
	RegisterListener(l logs.Listener, targets []logs.Target)
}

type Options struct {
	Runner command.Runner
	Logs   LogCapture

	// Docker is the engine CLI binary. Defaults to "docker".
	Docker string
	// Compose is the compose CLI invocation. Defaults to ["docker", "compose"].
	Compose []string
	// Descriptor is the descriptor file name inside the resources root.
	Descriptor string
	// Network is the key of the environment network in the descriptor.
	Network string
	// Introspection selects how container details are read back, either
	// config.IntrospectionJSON or config.IntrospectionTemplate.
	Introspection string

	Hostname func() (string, error)
	Now      func() time.Time
}

// Driver runs one environment on the backend. Backend calls are synchronous.
type Driver struct {
	env       Environment
	runner    command.Runner
	logs      LogCapture
	generator *compose.Generator

	docker        string
	compose       []string
	descriptor    string
	network       string
	introspection string
	hostname      func() (string, error)
	now           func() time.Time
}

func New(env Environment, opts Options) *Driver {
	d := &Driver{
		env:           env,
		runner:        opts.Runner,
		logs:          opts.Logs,
		docker:        opts.Docker,
		compose:       slices.Clone(opts.Compose),
		descriptor:    opts.Descriptor,
		network:       opts.Network,
		introspection: opts.Introspection,
		hostname:      opts.Hostname,
		now:           opts.Now,
	}
	if d.runner == nil {
		d.runner = command.NewExec(0)
	}
	if d.docker == "" {
		d.docker = "docker"
	}
	if len(d.compose) == 0 {
		d.compose = []string{d.docker, "compose"}
	}
	if d.descriptor == "" {
		d.descriptor = "docker-compose.yml"
	}
	if d.network == "" {
		d.network = "wharf"
	}
	if d.introspection == "" {
		d.introspection = config.IntrospectionJSON
	}
	if d.hostname == nil {
		d.hostname = os.Hostname
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.generator = compose.NewGenerator(d.network)
	return d
}

// DescriptorPath is where the generated descriptor is written.
func (d *Driver) DescriptorPath() string {
	return filepath.Join(d.env.ResourcesRoot(), d.descriptor)
}

// ProjectName is the backend project name, normalized the way the backend
// normalizes it.
func (d *Driver) ProjectName() string {
	return compose.NormalizeProjectName(d.env.TopLevelModuleName())
}

// NetworkName is the name the backend gives the environment network.
func (d *Driver) NetworkName() string {
	return compose.NetworkName(d.ProjectName(), d.network)
}

// WriteDescriptor regenerates the descriptor from the current module list,
// overwriting any previous file.
func (d *Driver) WriteDescriptor(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	modules, err := d.env.Modules(ctx)
	if err != nil {
		return err
	}
	data, err := d.generator.Generate(modules)
	if err != nil {
		return err
	}

	path := d.DescriptorPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Debug("descriptor written", "path", path, "modules", len(modules))
	return nil
}

// EnsureDescriptor writes the descriptor unless one is already present.
func (d *Driver) EnsureDescriptor(ctx context.Context) error {
	_, err := os.Stat(d.DescriptorPath())
	if err == nil {
		ctxlog.FromContext(ctx).Debug("using existing descriptor", "path", d.DescriptorPath())
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", d.DescriptorPath(), err)
	}
	ctxlog.FromContext(ctx).Debug("descriptor not found", "path", d.DescriptorPath())
	return d.WriteDescriptor(ctx)
}

// Start regenerates the descriptor and starts every service. The returned
// status is the exit status of the backend; the error reports failures that
// happened before or after it ran.
func (d *Driver) Start(ctx context.Context) (int, error) {
	return d.start(ctx, "")
}

func (d *Driver) StartService(ctx context.Context, service string) (int, error) {
	return d.start(ctx, service)
}

func (d *Driver) start(ctx context.Context, service string) (int, error) {
	ctxlog.FromContext(ctx).Debug("forcing descriptor update before start")
	if err := d.WriteDescriptor(ctx); err != nil {
		return -1, err
	}

	since := d.now()
	args := []string{"up", "-d"}
	if service != "" {
		args = append(args, service)
	}
	status, err := d.runCompose(ctx, args...)
	if err != nil || status != 0 {
		return status, err
	}

	if err := d.ensureNetworkCommunication(ctx); err != nil {
		// best effort: the services are up, only access from this container is affected
		ctxlog.FromContext(ctx).Debug("unable to attach to the environment network", "error", err)
	}

	containers, err := d.Containers(ctx)
	if err != nil {
		return status, err
	}
	if service != "" {
		containers = slices.DeleteFunc(containers, func(c Container) bool { return c.Service != service })
	}
	if d.logs != nil {
		d.logs.EnsureCapturing(since, targets(containers))
	}
	return status, nil
}

// Stop stops every service and removes the environment network.
func (d *Driver) Stop(ctx context.Context) (int, error) {
	status, err := d.ensureAndRun(ctx, "stop")
	if err != nil {
		return status, err
	}
	if err := d.removeNetwork(ctx); err != nil {
		// still in use or already gone; it is recreated on the next start
		ctxlog.FromContext(ctx).Debug("network not removed", "network", d.NetworkName(), "error", err)
	}
	return status, nil
}

func (d *Driver) StopService(ctx context.Context, service string) (int, error) {
	return d.ensureAndRun(ctx, "stop", service)
}

func (d *Driver) Status(ctx context.Context) (int, error) {
	return d.ensureAndRun(ctx, "ps")
}

// Clean removes stopped containers.
func (d *Driver) Clean(ctx context.Context) (int, error) {
	return d.ensureAndRun(ctx, "rm", "-f")
}

func (d *Driver) CleanService(ctx context.Context, service string) (int, error) {
	return d.ensureAndRun(ctx, "rm", "-f", service)
}

func (d *Driver) Pull(ctx context.Context) (int, error) {
	return d.ensureAndRun(ctx, "pull")
}

func (d *Driver) PullService(ctx context.Context, service string) (int, error) {
	return d.ensureAndRun(ctx, "pull", service)
}

// Shell opens an interactive shell in c and blocks until it exits. An
// interrupted session is not an error.
func (d *Driver) Shell(ctx context.Context, c Container, shell string) error {
	if err := d.EnsureDescriptor(ctx); err != nil {
		return err
	}
	if shell == "" {
		shell = "/bin/bash"
	}
	return d.runner.Interactive(ctx, d.docker, "exec", "-it", c.ID, shell)
}

// RegisterLogListener subscribes l to the logs of every container of the
// environment. It does not wait for log lines.
func (d *Driver) RegisterLogListener(ctx context.Context, l logs.Listener) error {
	if d.logs == nil {
		return errors.New("log capture is not configured")
	}
	if err := d.EnsureDescriptor(ctx); err != nil {
		return err
	}
	containers, err := d.Containers(ctx)
	if err != nil {
		return err
	}
	d.logs.RegisterListener(l, targets(containers))
	return nil
}

func (d *Driver) ensureAndRun(ctx context.Context, args ...string) (int, error) {
	if err := d.EnsureDescriptor(ctx); err != nil {
		return -1, err
	}
	return d.runCompose(ctx, args...)
}

func (d *Driver) composeArgs(args ...string) (string, []string) {
	full := slices.Clone(d.compose[1:])
	full = append(full, "-p", d.ProjectName(), "-f", d.DescriptorPath())
	return d.compose[0], append(full, args...)
}

func (d *Driver) runCompose(ctx context.Context, args ...string) (int, error) {
	name, full := d.composeArgs(args...)
	return d.runner.Run(ctx, name, full...)
}

func (d *Driver) composeOutput(ctx context.Context, args ...string) (string, error) {
	name, full := d.composeArgs(args...)
	return d.runner.Output(ctx, name, full...)
}

func targets(containers []Container) []logs.Target {
	out := make([]logs.Target, 0, len(containers))
	for _, c := range containers {
		out = append(out, logs.Target{ID: c.ID, Service: c.Service})
	}
	return out
}
