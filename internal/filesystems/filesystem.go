// Package filesystems provides the read-only view of resource bundles used by
// overlay scanning. Bundles live on disk in production and in memory in tests.
package filesystems

import "io/fs"

// FileSystem is the subset of file operations needed to enumerate the files
// one bundle contributes to another.
type FileSystem interface {
	// Stat returns file info for name. Errors satisfy
	// errors.Is(err, fs.ErrNotExist) when name is absent.
	Stat(name string) (FileInfo, error)

	// Walk visits root and everything below it in lexical order, with
	// filepath.Walk semantics: a root that cannot be read is reported to fn
	// with a nil info, and returning SkipDir prunes a directory.
	Walk(root string, fn WalkFunc) error

	Join(elem ...string) string
	Base(path string) string

	// Rel returns targpath relative to basepath.
	Rel(basepath, targpath string) (string, error)
}

type FileInfo = fs.FileInfo

type WalkFunc func(path string, info FileInfo, err error) error

var SkipDir = fs.SkipDir
