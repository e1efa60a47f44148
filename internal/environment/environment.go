// Package environment assembles the module graph of a local environment:
// dependency resolution, bundle materialization, overlay contributions and
// the extension pipeline.
package environment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/railwayapp/wharf/internal/ctxlog"
	"github.com/railwayapp/wharf/internal/filesystems"
	"github.com/railwayapp/wharf/internal/module"
	"github.com/railwayapp/wharf/internal/overlay"
)

// Resolver is the dependency resolution collaborator.
type Resolver interface {
	// Resolve returns the ordered dependency closure of root
	Resolve(ctx context.Context, root module.Coordinate) ([]module.Module, error)

	// ModuleName returns the name of the module identified by c
	ModuleName(c module.Coordinate) string

	// CopyModuleResources populates dest with the packaged bundle of m
	CopyModuleResources(ctx context.Context, m module.Module, dest string) error
}

// Options tune an Environment. The zero value is usable.
type Options struct {
	// ResourcesRoot is the working directory; the environment lives in
	// ResourcesRoot/<top-level module name>. Defaults to a fresh temp dir.
	ResourcesRoot string

	// TopLevelResources, when set, is read instead of the top-level module's
	// packaged bundle.
	TopLevelResources string

	Extensions []Extension

	// FileSystem is used to scan overlay contributions. Defaults to LocalFS.
	FileSystem filesystems.FileSystem
}

// Environment is a full set of modules with their configuration.
//
// Modules is computed once; concurrent first callers share a single
// computation and later callers get the cached result.
type Environment struct {
	root         module.Coordinate
	topLevelName string
	resolver     Resolver
	extensions   []Extension
	overlay      *overlay.Manager
	scanner      *overlay.Scanner

	group   singleflight.Group
	mu      sync.Mutex
	modules []module.Module
}

func New(root module.Coordinate, resolver Resolver, opts Options) *Environment {
	topLevelName := resolver.ModuleName(root)

	base := opts.ResourcesRoot
	if base == "" {
		base = filepath.Join(os.TempDir(), fmt.Sprintf("wharf_%d", time.Now().UnixNano()))
	}
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	manager := overlay.NewManager(filepath.Join(base, topLevelName), topLevelName, opts.TopLevelResources)

	fsys := opts.FileSystem
	if fsys == nil {
		fsys = filesystems.NewLocalFS()
	}

	return &Environment{
		root:         root,
		topLevelName: topLevelName,
		resolver:     resolver,
		extensions:   slices.Clone(opts.Extensions),
		overlay:      manager,
		scanner:      overlay.NewScanner(fsys, manager.ModuleResourcesPath),
	}
}

func (e *Environment) TopLevelCoordinate() module.Coordinate {
	return e.root
}

func (e *Environment) TopLevelModuleName() string {
	return e.topLevelName
}

// ResourcesRoot is the directory holding every module bundle and the
// generated descriptor.
func (e *Environment) ResourcesRoot() string {
	return e.overlay.ResourcesRoot()
}

func (e *Environment) ModuleResourcesPath(m module.Module) string {
	return e.overlay.ModuleResourcesPath(m)
}

// Modules returns the final module list, computing it on first use. A failed
// computation is not cached.
func (e *Environment) Modules(ctx context.Context) ([]module.Module, error) {
	if cached := e.cached(); cached != nil {
		return cached, nil
	}

	v, err, _ := e.group.Do("modules", func() (interface{}, error) {
		if cached := e.cached(); cached != nil {
			return cached, nil
		}
		modules, err := e.compute(ctx)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.modules = modules
		e.mu.Unlock()
		return modules, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]module.Module)), nil
}

func (e *Environment) cached() []module.Module {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.modules == nil {
		return nil
	}
	return slices.Clone(e.modules)
}

func (e *Environment) compute(ctx context.Context) ([]module.Module, error) {
	logger := ctxlog.FromContext(ctx).With("root", e.root.String())

	logger.Debug("Resolving module dependencies")
	modules, err := e.resolver.Resolve(ctx, e.root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dependencies of %s: %w", e.root, err)
	}

	logger.Debug("Resolving module resources", "path", e.ResourcesRoot())
	if err := e.overlay.Materialize(ctx, modules, e.resolver.CopyModuleResources); err != nil {
		return nil, err
	}

	logger.Debug("Configuring individual file volumes")
	modules = e.configureFileVolumes(ctx, modules)

	logger.Debug("Configuring env_file volumes")
	modules = e.configureEnvFiles(ctx, modules)

	for _, ext := range e.extensions {
		logger.Debug("Extension enabled", "extension", ext.Name())
		modules = ext.Apply(e, modules)
	}

	return modules, nil
}

func (e *Environment) configureFileVolumes(ctx context.Context, modules []module.Module) []module.Module {
	result := make([]module.Module, 0, len(modules))
	for _, m := range modules {
		result = append(result, m.WithVolumes(e.scanner.FileVolumes(ctx, modules, m)))
	}
	return result
}

func (e *Environment) configureEnvFiles(ctx context.Context, modules []module.Module) []module.Module {
	result := make([]module.Module, 0, len(modules))
	for _, m := range modules {
		result = append(result, m.WithEnvFiles(e.scanner.EnvFiles(ctx, modules, m)))
	}
	return result
}
