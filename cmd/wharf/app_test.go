package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railwayapp/wharf/internal/module"
)

const testCatalog = `
modules:
  - coordinate: shop:web:1.0
    image: nginx:1.27
    dependencies: ["shop:config"]
  - coordinate: shop:config
    resources: config
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "modules.yaml"), testCatalog)
	writeFile(t, filepath.Join(dir, "config", "web", "files", "etc", "nginx", "nginx.conf"), "events {}\n")
	writeFile(t, filepath.Join(dir, "config", "web", "env", "web.env"), "PORT=8080\n")

	resources := filepath.Join(t.TempDir(), "work")
	v.Set("catalog", filepath.Join(dir, "modules.yaml"))
	v.Set("root", "shop:web:1.0")
	v.Set("resources_root", resources)
	t.Cleanup(func() {
		v.Set("catalog", "")
		v.Set("root", "")
		v.Set("resources_root", "")
	})
	return resources
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestModulesCommand(t *testing.T) {
	resources := setupCatalog(t)

	out, err := run(t, "modules", "--output", "json")
	require.NoError(t, err)

	var modules []module.Module
	require.NoError(t, json.Unmarshal([]byte(out), &modules))
	require.Len(t, modules, 2)
	assert.Equal(t, "config", modules[0].Name)
	assert.Equal(t, "web", modules[1].Name)

	root := filepath.Join(resources, "web")
	assert.Equal(t, []string{filepath.Join(root, "config", "web", "files", "etc", "nginx", "nginx.conf") + ":/etc/nginx/nginx.conf"}, modules[1].Volumes)
	assert.Equal(t, []string{filepath.Join(root, "config", "web", "env", "web.env")}, modules[1].EnvFiles)
}

func TestComposeAndValidateCommands(t *testing.T) {
	resources := setupCatalog(t)

	out, err := run(t, "compose")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(resources, "web", "docker-compose.yml"), path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	out, err = run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "1 services, network web_wharf")
}

func TestMissingRoot(t *testing.T) {
	_, err := run(t, "compose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root")
}

func TestExitWith(t *testing.T) {
	assert.NoError(t, exitWith(0, nil))

	var status exitStatus
	require.True(t, errors.As(exitWith(3, nil), &status))
	assert.Equal(t, exitStatus(3), status)

	boom := errors.New("boom")
	assert.Equal(t, boom, exitWith(0, boom))
}
