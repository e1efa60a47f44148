// Package resolver implements the dependency resolver collaborator on top of
// a module catalog. It turns a root coordinate into the ordered dependency
// closure and materializes module resource bundles.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/pkg/archive"
	"github.com/joho/godotenv"

	"github.com/railwayapp/wharf/internal/ctxlog"
	"github.com/railwayapp/wharf/internal/module"
)

// PropertiesFile is read from the root of a module bundle, when present, to
// supply default module properties.
const PropertiesFile = "wharf.properties"

var (
	ErrModuleNotFound = errors.New("module not found in catalog")
	ErrCycle          = errors.New("dependency cycle")
)

// CatalogResolver resolves modules declared in a Catalog.
type CatalogResolver struct {
	entries map[string]Entry
	baseDir string
	git     *GitFetcher
	tar     *archive.Archiver
}

// NewCatalogResolver builds a resolver. Relative local resource paths are
// resolved against baseDir; git sources are cloned through git.
func NewCatalogResolver(catalog *Catalog, baseDir string, git *GitFetcher) (*CatalogResolver, error) {
	entries := make(map[string]Entry, len(catalog.Modules))
	for _, entry := range catalog.Modules {
		c, err := module.ParseCoordinate(entry.Coordinate)
		if err != nil {
			return nil, err
		}
		if _, dup := entries[c.Key()]; dup {
			return nil, fmt.Errorf("duplicate catalog entry for %s", c.Key())
		}
		entries[c.Key()] = entry
	}
	return &CatalogResolver{
		entries: entries,
		baseDir: baseDir,
		git:     git,
		tar:     archive.NewDefaultArchiver(),
	}, nil
}

// ModuleName returns the module name used for directories and services.
func (r *CatalogResolver) ModuleName(c module.Coordinate) string {
	return c.Name
}

// Resolve returns the dependency closure of root. Dependencies precede their
// dependents and root comes last; every module appears once.
func (r *CatalogResolver) Resolve(ctx context.Context, root module.Coordinate) ([]module.Module, error) {
	var (
		ordered  []module.Module
		done     = make(map[string]bool)
		visiting = make(map[string]bool)
	)

	var visit func(c module.Coordinate, path []string) error
	visit = func(c module.Coordinate, path []string) error {
		key := c.Key()
		if done[key] {
			return nil
		}
		if visiting[key] {
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(append(path, key), " -> "))
		}

		entry, err := r.lookup(c)
		if err != nil {
			return err
		}

		visiting[key] = true
		for _, dep := range entry.Dependencies {
			depCoord, err := module.ParseCoordinate(dep)
			if err != nil {
				return fmt.Errorf("module %s: %w", key, err)
			}
			if err := visit(depCoord, append(path, key)); err != nil {
				return err
			}
		}
		visiting[key] = false

		m, err := r.buildModule(ctx, entry)
		if err != nil {
			return fmt.Errorf("module %s: %w", key, err)
		}
		done[key] = true
		ordered = append(ordered, m)
		return nil
	}

	if err := visit(root, nil); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("Resolved module closure", "root", root.String(), "count", len(ordered))
	return ordered, nil
}

// CopyModuleResources copies the module bundle into dest. Existing files in
// dest that the bundle does not contain are left untouched.
func (r *CatalogResolver) CopyModuleResources(ctx context.Context, m module.Module, dest string) error {
	entry, err := r.lookup(m.ID)
	if err != nil {
		return err
	}

	src, err := r.bundleDir(ctx, entry)
	if err != nil {
		return err
	}
	if src == "" {
		return os.MkdirAll(dest, 0o755)
	}

	if err := r.tar.CopyWithTar(src, dest); err != nil {
		return fmt.Errorf("failed to copy resources of %s from %s: %w", m.Name, src, err)
	}
	return nil
}

func (r *CatalogResolver) lookup(c module.Coordinate) (Entry, error) {
	entry, ok := r.entries[c.Key()]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrModuleNotFound, c)
	}
	if c.Version != "" {
		declared, _ := module.ParseCoordinate(entry.Coordinate)
		if declared.Version != "" && declared.Version != c.Version {
			return Entry{}, fmt.Errorf("%w: %s (catalog has version %s)", ErrModuleNotFound, c, declared.Version)
		}
	}
	return entry, nil
}

func (r *CatalogResolver) buildModule(ctx context.Context, entry Entry) (module.Module, error) {
	c, err := module.ParseCoordinate(entry.Coordinate)
	if err != nil {
		return module.Module{}, err
	}

	props, err := r.bundleProperties(ctx, entry)
	if err != nil {
		return module.Module{}, err
	}
	for k, v := range entry.Properties {
		props[k] = v
	}

	image := entry.Image
	if image == "" {
		image = props[module.PropertyImage]
	}

	entrypoint := entry.Entrypoint
	if len(entrypoint) == 0 {
		entrypoint = strings.Fields(props[module.PropertyEntrypoint])
	}

	containerName := entry.ContainerName
	if containerName == "" {
		containerName = props[module.PropertyContainerName]
	}
	if containerName == "" {
		containerName = r.ModuleName(c)
	}

	m := module.Module{
		ID:            c,
		Name:          r.ModuleName(c),
		ContainerName: containerName,
		Properties:    props,
	}
	m = m.WithImage(image).WithEntrypoint(entrypoint)
	return m, nil
}

func (r *CatalogResolver) bundleProperties(ctx context.Context, entry Entry) (map[string]string, error) {
	props := make(map[string]string)

	dir, err := r.bundleDir(ctx, entry)
	if err != nil || dir == "" {
		return props, err
	}

	path := filepath.Join(dir, PropertiesFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return props, nil
	}

	read, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for k, v := range read {
		props[k] = v
	}
	return props, nil
}

// bundleDir returns the local directory holding the module bundle, cloning
// it first for git sources. An empty result means the module has no bundle.
func (r *CatalogResolver) bundleDir(ctx context.Context, entry Entry) (string, error) {
	if entry.Resources == "" {
		return "", nil
	}

	if IsGitSource(entry.Resources) {
		if r.git == nil {
			return "", fmt.Errorf("git source %s configured but no git fetcher available", entry.Resources)
		}
		return r.git.Fetch(ctx, entry.Resources, entry.Ref)
	}

	if filepath.IsAbs(entry.Resources) {
		return entry.Resources, nil
	}
	return filepath.Join(r.baseDir, entry.Resources), nil
}
