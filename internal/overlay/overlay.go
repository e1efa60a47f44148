// Package overlay materializes module resource bundles under a working root
// and computes the files and env files that modules contribute to each other.
//
// Layout under the root (which already includes the top-level module name):
//
//	<root>/<contributor>/<target>/files/...  mounted into target at /...
//	<root>/<contributor>/<target>/env/...    env_file entries of target
//
// The manager assumes it is the only writer under its root.
package overlay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/pkg/archive"

	"github.com/railwayapp/wharf/internal/ctxlog"
	"github.com/railwayapp/wharf/internal/module"
)

// CopyFunc populates dest with the packaged bundle of m.
type CopyFunc func(ctx context.Context, m module.Module, dest string) error

// Manager owns the resources root of one environment.
type Manager struct {
	root              string
	topLevelName      string
	topLevelResources string
	archiver          *archive.Archiver
}

// NewManager creates a manager rooted at root. When topLevelResources is set,
// the module named topLevelName is read from that live directory instead of
// its packaged bundle.
func NewManager(root, topLevelName, topLevelResources string) *Manager {
	return &Manager{
		root:              root,
		topLevelName:      topLevelName,
		topLevelResources: topLevelResources,
		archiver:          archive.NewDefaultArchiver(),
	}
}

func (m *Manager) ResourcesRoot() string {
	return m.root
}

// ModuleResourcesPath returns the materialized bundle directory of mod.
func (m *Manager) ModuleResourcesPath(mod module.Module) string {
	return filepath.Join(m.root, mod.Name)
}

// Materialize ensures every module bundle exists under the root, in module
// order. Copies are additive: files already present are overwritten by the
// bundle's version and unrelated files are kept.
func (m *Manager) Materialize(ctx context.Context, modules []module.Module, copyBundle CopyFunc) error {
	logger := ctxlog.FromContext(ctx)

	for _, mod := range modules {
		dest := m.ModuleResourcesPath(mod)
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("failed to create resources directory for %s: %w", mod.Name, err)
		}

		if mod.Name == m.topLevelName && m.topLevelResources != "" {
			logger.Debug("Using live resources for top-level module", "module", mod.Name, "path", m.topLevelResources)
			if err := m.archiver.CopyWithTar(m.topLevelResources, dest); err != nil {
				return fmt.Errorf("failed to copy live resources of %s: %w", mod.Name, err)
			}
			continue
		}

		if err := copyBundle(ctx, mod, dest); err != nil {
			return fmt.Errorf("failed to materialize resources of %s: %w", mod.Name, err)
		}
	}
	return nil
}
