package filesystems

import (
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFS reads bundles materialized on disk.
type LocalFS struct{}

func NewLocalFS() *LocalFS {
	return &LocalFS{}
}

func (LocalFS) Stat(name string) (FileInfo, error) {
	return os.Stat(name)
}

// Walk is built on filepath.WalkDir, so info is only looked up for the
// entries actually visited.
func (LocalFS) Walk(root string, fn WalkFunc) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fn(p, nil, err)
		}
		info, err := d.Info()
		if err != nil {
			// removed between listing and visiting
			return fn(p, nil, err)
		}
		return fn(p, info, nil)
	})
}

func (LocalFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

func (LocalFS) Base(p string) string {
	return filepath.Base(p)
}

func (LocalFS) Rel(basepath, targpath string) (string, error) {
	return filepath.Rel(basepath, targpath)
}
