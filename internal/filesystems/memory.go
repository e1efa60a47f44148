package filesystems

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MemoryFS is an in-memory FileSystem with fault injection, for tests.
type MemoryFS struct {
	files  map[string][]byte
	dirs   map[string]bool
	errors map[string]error
}

// NewMemoryFS creates a new MemoryFS instance
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files:  make(map[string][]byte),
		dirs:   make(map[string]bool),
		errors: make(map[string]error),
	}
}

// AddFile adds a file to the memory filesystem
func (mfs *MemoryFS) AddFile(name string, content []byte) {
	mfs.files[path.Clean(name)] = content
	mfs.addParents(name)
}

// AddDir adds a directory to the memory filesystem
func (mfs *MemoryFS) AddDir(name string) {
	mfs.dirs[path.Clean(name)] = true
	mfs.addParents(name)
}

// FailOn makes every access to name, and Walk traversal of it, fail with err.
func (mfs *MemoryFS) FailOn(name string, err error) {
	mfs.errors[path.Clean(name)] = err
}

func (mfs *MemoryFS) addParents(name string) {
	dir := path.Dir(path.Clean(name))
	for dir != "." && dir != "/" {
		mfs.dirs[dir] = true
		dir = path.Dir(dir)
	}
}

func (mfs *MemoryFS) Stat(name string) (FileInfo, error) {
	cleanName := path.Clean(name)
	if err := mfs.errors[cleanName]; err != nil {
		return nil, err
	}
	if mfs.dirs[cleanName] || cleanName == "." {
		return newMemoryDirInfo(path.Base(cleanName)), nil
	}
	if content, ok := mfs.files[cleanName]; ok {
		return newMemoryFileInfo(path.Base(cleanName), content), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// children lists the direct entries of dir in lexical order.
func (mfs *MemoryFS) children(dir string) []string {
	prefix := dir + "/"
	switch dir {
	case ".":
		prefix = ""
	case "/":
		prefix = "/"
	}

	seen := make(map[string]bool)
	var names []string
	collect := func(p string) {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" {
			return
		}
		child, _, _ := strings.Cut(rest, "/")
		if child != "" && !seen[child] {
			seen[child] = true
			names = append(names, child)
		}
	}
	for p := range mfs.files {
		collect(p)
	}
	for p := range mfs.dirs {
		collect(p)
	}
	sort.Strings(names)
	return names
}

// Walk mirrors filepath.Walk: a missing root or an unreadable directory is
// reported to fn through its err argument.
func (mfs *MemoryFS) Walk(root string, fn WalkFunc) error {
	cleanRoot := path.Clean(root)

	info, err := mfs.Stat(cleanRoot)
	if err != nil {
		return fn(cleanRoot, nil, err)
	}
	err = mfs.walk(cleanRoot, info, fn)
	if err == SkipDir {
		return nil
	}
	return err
}

func (mfs *MemoryFS) walk(p string, info FileInfo, fn WalkFunc) error {
	if !info.IsDir() {
		return fn(p, info, nil)
	}

	if err := fn(p, info, nil); err != nil {
		return err
	}

	for _, name := range mfs.children(p) {
		childPath := path.Join(p, name)
		childInfo, err := mfs.Stat(childPath)
		if err != nil {
			if err := fn(childPath, nil, err); err != nil && err != SkipDir {
				return err
			}
			continue
		}
		if err := mfs.walk(childPath, childInfo, fn); err != nil {
			if err == SkipDir && childInfo.IsDir() {
				continue
			}
			return err
		}
	}
	return nil
}

func (mfs *MemoryFS) Join(elem ...string) string {
	return path.Join(elem...)
}

func (mfs *MemoryFS) Base(p string) string {
	return path.Base(p)
}

func (mfs *MemoryFS) Rel(basepath, targpath string) (string, error) {
	base := path.Clean(basepath)
	target := path.Clean(targpath)

	if base == target {
		return ".", nil
	}
	if strings.HasPrefix(target, base+"/") {
		return strings.TrimPrefix(target, base+"/"), nil
	}
	return "", fmt.Errorf("rel: %s is not under %s", targpath, basepath)
}

// memoryFileInfo implements FileInfo for memory filesystem
type memoryFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMemoryDirInfo(name string) *memoryFileInfo {
	return &memoryFileInfo{name: name, mode: fs.ModeDir | 0755, isDir: true}
}

func newMemoryFileInfo(name string, content []byte) *memoryFileInfo {
	return &memoryFileInfo{name: name, size: int64(len(content)), mode: 0644}
}

func (fi *memoryFileInfo) Name() string {
	return fi.name
}

func (fi *memoryFileInfo) Size() int64 {
	return fi.size
}

func (fi *memoryFileInfo) Mode() fs.FileMode {
	return fi.mode
}

func (fi *memoryFileInfo) ModTime() time.Time {
	return fi.modTime
}

func (fi *memoryFileInfo) IsDir() bool {
	return fi.isDir
}

func (fi *memoryFileInfo) Sys() any {
	return nil
}
