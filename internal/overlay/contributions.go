package overlay

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/railwayapp/wharf/internal/ctxlog"
	"github.com/railwayapp/wharf/internal/filesystems"
	"github.com/railwayapp/wharf/internal/module"
)

const (
	FilesDir = "files"
	EnvDir   = "env"
)

// Scanner finds the overlay contributions made to a target module by every
// module of the environment, the target included.
type Scanner struct {
	fsys    filesystems.FileSystem
	pathFor func(module.Module) string
}

// NewScanner returns a scanner reading bundles through fsys; pathFor maps a
// module to its materialized bundle directory.
func NewScanner(fsys filesystems.FileSystem, pathFor func(module.Module) string) *Scanner {
	return &Scanner{fsys: fsys, pathFor: pathFor}
}

// FileVolumes returns the host:container bind specs contributed to target.
// The container path is the path below the contributor's files/ directory,
// rooted at "/". When two contributors provide the same container path, the
// one appearing later in modules wins.
func (s *Scanner) FileVolumes(ctx context.Context, modules []module.Module, target module.Module) []string {
	byTarget := make(map[string]string)
	var order []string

	for _, contributor := range modules {
		dir := s.fsys.Join(s.pathFor(contributor), target.Name, FilesDir)
		files, ok := s.collect(ctx, contributor, target, dir)
		if !ok {
			continue
		}
		for _, host := range files {
			rel, err := s.fsys.Rel(dir, host)
			if err != nil {
				ctxlog.FromContext(ctx).Error("Failed to compute mount path", "module", target.Name, "file", host, "error", err)
				continue
			}
			containerPath := path.Join("/", filepath.ToSlash(rel))
			if _, seen := byTarget[containerPath]; !seen {
				order = append(order, containerPath)
			}
			byTarget[containerPath] = host
		}
	}

	volumes := make([]string, 0, len(order))
	for _, containerPath := range order {
		volumes = append(volumes, byTarget[containerPath]+":"+containerPath)
	}
	return volumes
}

// EnvFiles returns the env files contributed to target, paths kept verbatim.
// The result is nil when nothing is contributed.
func (s *Scanner) EnvFiles(ctx context.Context, modules []module.Module, target module.Module) []string {
	var envFiles []string
	for _, contributor := range modules {
		dir := s.fsys.Join(s.pathFor(contributor), target.Name, EnvDir)
		files, ok := s.collect(ctx, contributor, target, dir)
		if !ok {
			continue
		}
		envFiles = append(envFiles, files...)
	}
	return envFiles
}

// collect lists the regular files below dir. A missing dir or any error while
// walking it yields ok=false: the contributor then adds nothing.
func (s *Scanner) collect(ctx context.Context, contributor, target module.Module, dir string) ([]string, bool) {
	logger := ctxlog.FromContext(ctx)

	if _, err := s.fsys.Stat(dir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error("Error while reading contributions", "contributor", contributor.Name, "module", target.Name, "path", dir, "error", err)
		}
		return nil, false
	}

	var files []string
	err := s.fsys.Walk(dir, func(p string, info filesystems.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		logger.Error("Error while reading contributions", "contributor", contributor.Name, "module", target.Name, "path", dir, "error", err)
		return nil, false
	}

	if len(files) > 0 {
		logger.Debug("Found contributions", "contributor", contributor.Name, "module", target.Name, "kind", s.fsys.Base(dir), "count", len(files))
	}
	return files, true
}
