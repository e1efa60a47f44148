package overlay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railwayapp/wharf/internal/filesystems"
	"github.com/railwayapp/wharf/internal/module"
)

func mod(name string) module.Module {
	return module.Module{ID: module.Coordinate{Group: "g", Name: name}, Name: name}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMaterializeUsesCopierAndLiveTopLevel(t *testing.T) {
	root := filepath.Join(t.TempDir(), "shop")
	live := t.TempDir()
	writeFile(t, filepath.Join(live, "shop", "files", "etc", "shop.conf"), "live")

	var copied []string
	copier := func(ctx context.Context, m module.Module, dest string) error {
		copied = append(copied, m.Name)
		writeFile(t, filepath.Join(dest, "bundle.txt"), m.Name)
		return nil
	}

	manager := NewManager(root, "shop", live)
	modules := []module.Module{mod("db"), mod("shop")}
	require.NoError(t, manager.Materialize(context.Background(), modules, copier))

	assert.Equal(t, []string{"db"}, copied)

	content, err := os.ReadFile(filepath.Join(root, "shop", "shop", "files", "etc", "shop.conf"))
	require.NoError(t, err)
	assert.Equal(t, "live", string(content))

	_, err = os.Stat(filepath.Join(root, "shop", "bundle.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Equal(t, filepath.Join(root, "db"), manager.ModuleResourcesPath(mod("db")))
	assert.Equal(t, root, manager.ResourcesRoot())
}

func TestMaterializeIsIdempotentAndAdditive(t *testing.T) {
	root := t.TempDir()
	live := t.TempDir()
	writeFile(t, filepath.Join(live, "app.conf"), "v1")

	manager := NewManager(root, "app", live)
	modules := []module.Module{mod("app")}
	require.NoError(t, manager.Materialize(context.Background(), modules, nil))

	writeFile(t, filepath.Join(root, "app", "extra.txt"), "mine")
	require.NoError(t, manager.Materialize(context.Background(), modules, nil))

	content, err := os.ReadFile(filepath.Join(root, "app", "app.conf"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))

	content, err = os.ReadFile(filepath.Join(root, "app", "extra.txt"))
	require.NoError(t, err)
	assert.Equal(t, "mine", string(content))
}

func TestMaterializePropagatesCopyErrors(t *testing.T) {
	manager := NewManager(t.TempDir(), "app", "")
	boom := errors.New("boom")
	err := manager.Materialize(context.Background(), []module.Module{mod("db")}, func(context.Context, module.Module, string) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func newMemoryScanner(mfs *filesystems.MemoryFS) *Scanner {
	return NewScanner(mfs, func(m module.Module) string { return "/res/shop/" + m.Name })
}

func TestFileVolumesRemapsBelowFilesDir(t *testing.T) {
	mfs := filesystems.NewMemoryFS()
	mfs.AddFile("/res/shop/a/b/files/etc/app.conf", []byte("a"))
	mfs.AddFile("/res/shop/a/b/files/opt/files/nested.txt", []byte("a"))
	mfs.AddFile("/res/shop/a/c/files/etc/other.conf", []byte("a"))

	s := newMemoryScanner(mfs)
	modules := []module.Module{mod("a"), mod("b"), mod("c")}

	volumes := s.FileVolumes(context.Background(), modules, mod("b"))
	assert.ElementsMatch(t, []string{
		"/res/shop/a/b/files/etc/app.conf:/etc/app.conf",
		"/res/shop/a/b/files/opt/files/nested.txt:/opt/files/nested.txt",
	}, volumes)

	assert.Empty(t, s.FileVolumes(context.Background(), modules, mod("a")))
}

func TestFileVolumesLastContributorWins(t *testing.T) {
	mfs := filesystems.NewMemoryFS()
	mfs.AddFile("/res/shop/a/b/files/etc/app.conf", []byte("a"))
	mfs.AddFile("/res/shop/c/b/files/etc/app.conf", []byte("c"))

	s := newMemoryScanner(mfs)

	volumes := s.FileVolumes(context.Background(), []module.Module{mod("a"), mod("b"), mod("c")}, mod("b"))
	assert.Equal(t, []string{"/res/shop/c/b/files/etc/app.conf:/etc/app.conf"}, volumes)

	volumes = s.FileVolumes(context.Background(), []module.Module{mod("c"), mod("b"), mod("a")}, mod("b"))
	assert.Equal(t, []string{"/res/shop/a/b/files/etc/app.conf:/etc/app.conf"}, volumes)
}

func TestEnvFilesVerbatimAndNilWhenEmpty(t *testing.T) {
	mfs := filesystems.NewMemoryFS()
	mfs.AddFile("/res/shop/a/b/env/b.env", []byte("X=1"))
	mfs.AddFile("/res/shop/c/b/env/sub/more.env", []byte("Y=2"))
	mfs.AddDir("/res/shop/c/b/env/empty")

	s := newMemoryScanner(mfs)
	modules := []module.Module{mod("a"), mod("b"), mod("c")}

	envFiles := s.EnvFiles(context.Background(), modules, mod("b"))
	assert.Equal(t, []string{"/res/shop/a/b/env/b.env", "/res/shop/c/b/env/sub/more.env"}, envFiles)

	assert.Nil(t, s.EnvFiles(context.Background(), modules, mod("a")))
}

func TestContributorErrorsAreNotFatal(t *testing.T) {
	mfs := filesystems.NewMemoryFS()
	mfs.AddFile("/res/shop/a/b/files/etc/a.conf", []byte("a"))
	mfs.AddFile("/res/shop/c/b/files/etc/c.conf", []byte("c"))
	mfs.AddFile("/res/shop/c/b/files/broken/x.conf", []byte("c"))
	mfs.FailOn("/res/shop/c/b/files/broken", errors.New("permission denied"))
	mfs.AddFile("/res/shop/d/b/env/d.env", []byte("D=1"))
	mfs.FailOn("/res/shop/d/b/env", errors.New("io error"))

	s := newMemoryScanner(mfs)
	modules := []module.Module{mod("a"), mod("b"), mod("c"), mod("d")}

	assert.Equal(t, []string{"/res/shop/a/b/files/etc/a.conf:/etc/a.conf"}, s.FileVolumes(context.Background(), modules, mod("b")))
	assert.Nil(t, s.EnvFiles(context.Background(), modules, mod("b")))
}

func TestScannerOnLocalDisk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b", "files", "etc", "app.conf"), "a")
	writeFile(t, filepath.Join(root, "a", "b", "env", "b.env"), "X=1")

	manager := NewManager(root, "b", "")
	s := NewScanner(filesystems.NewLocalFS(), manager.ModuleResourcesPath)
	modules := []module.Module{mod("a"), mod("b")}

	host := filepath.Join(root, "a", "b", "files", "etc", "app.conf")
	assert.Equal(t, []string{host + ":/etc/app.conf"}, s.FileVolumes(context.Background(), modules, mod("b")))
	assert.Equal(t, []string{filepath.Join(root, "a", "b", "env", "b.env")}, s.EnvFiles(context.Background(), modules, mod("b")))
}
