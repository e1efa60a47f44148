package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railwayapp/wharf/internal/module"
)

const shopCatalog = `
modules:
  - coordinate: com.example:shop:1.0
    image: registry.local/shop/web:1.0
    dependencies:
      - com.example:db:16
      - com.example:cache
    resources: shop
  - coordinate: com.example:db:16
    resources: db
    dependencies:
      - com.example:base
  - coordinate: com.example:cache
    image: redis:7
    entrypoint: ["redis-server", "--appendonly", "yes"]
    properties:
      network.aliases: "kv, sessions"
    dependencies:
      - com.example:base
  - coordinate: com.example:base
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newShopResolver(t *testing.T) (*CatalogResolver, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "db", PropertiesFile), "docker.image=postgres:16\ndocker.entrypoint=docker-entrypoint.sh postgres\nnetwork.aliases=sql\n")
	writeFile(t, filepath.Join(dir, "db", "shop", "env", "db.env"), "DB_HOST=db\n")
	writeFile(t, filepath.Join(dir, "shop", "shop", "files", "etc", "app.conf"), "port=80\n")

	catalog, err := ParseCatalog(".yaml", []byte(shopCatalog))
	require.NoError(t, err)

	r, err := NewCatalogResolver(catalog, dir, nil)
	require.NoError(t, err)
	return r, dir
}

func names(modules []module.Module) []string {
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		out = append(out, m.Name)
	}
	return out
}

func TestResolveOrdersDependenciesFirst(t *testing.T) {
	r, _ := newShopResolver(t)

	modules, err := r.Resolve(context.Background(), module.Coordinate{Group: "com.example", Name: "shop", Version: "1.0"})
	require.NoError(t, err)

	assert.Equal(t, []string{"base", "db", "cache", "shop"}, names(modules))
}

func TestResolveBuildsModulesFromCatalogAndProperties(t *testing.T) {
	r, _ := newShopResolver(t)

	modules, err := r.Resolve(context.Background(), module.Coordinate{Group: "com.example", Name: "shop"})
	require.NoError(t, err)
	byName := make(map[string]module.Module)
	for _, m := range modules {
		byName[m.Name] = m
	}

	db := byName["db"]
	assert.Equal(t, "postgres:16", db.ImageName)
	assert.Equal(t, "postgres", db.ShortImageName)
	assert.Equal(t, []string{"docker-entrypoint.sh", "postgres"}, db.Entrypoint)
	assert.Equal(t, "sql", db.Properties[module.PropertyNetworkAliases])
	assert.Equal(t, "db", db.ContainerName)

	cache := byName["cache"]
	assert.Equal(t, "redis", cache.ShortImageName)
	assert.Equal(t, []string{"redis-server", "--appendonly", "yes"}, cache.Entrypoint)
	assert.Equal(t, "kv, sessions", cache.Properties[module.PropertyNetworkAliases])

	shop := byName["shop"]
	assert.Equal(t, "web", shop.ShortImageName)
	assert.Equal(t, module.Coordinate{Group: "com.example", Name: "shop", Version: "1.0"}, shop.ID)

	assert.False(t, byName["base"].HasImage())
}

func TestCatalogPropertiesOverrideBundleProperties(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "api", PropertiesFile), "docker.image=api:bundle\nnetwork.aliases=from-bundle\n")

	catalog := &Catalog{Modules: []Entry{{
		Coordinate: "com.example:api:1",
		Resources:  "api",
		Properties: map[string]string{module.PropertyNetworkAliases: "from-catalog"},
	}}}
	r, err := NewCatalogResolver(catalog, dir, nil)
	require.NoError(t, err)

	modules, err := r.Resolve(context.Background(), module.Coordinate{Group: "com.example", Name: "api"})
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, "api:bundle", modules[0].ImageName)
	assert.Equal(t, "from-catalog", modules[0].Properties[module.PropertyNetworkAliases])
}

func TestResolveErrors(t *testing.T) {
	catalog := &Catalog{Modules: []Entry{
		{Coordinate: "g:a:1", Dependencies: []string{"g:b"}},
		{Coordinate: "g:b:1", Dependencies: []string{"g:a"}},
		{Coordinate: "g:c:1", Dependencies: []string{"g:missing"}},
	}}
	r, err := NewCatalogResolver(catalog, t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Resolve(ctx, module.Coordinate{Group: "g", Name: "a"})
	assert.ErrorIs(t, err, ErrCycle)

	_, err = r.Resolve(ctx, module.Coordinate{Group: "g", Name: "c"})
	assert.ErrorIs(t, err, ErrModuleNotFound)

	_, err = r.Resolve(ctx, module.Coordinate{Group: "g", Name: "c", Version: "2"})
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestNewCatalogResolverRejectsDuplicates(t *testing.T) {
	catalog := &Catalog{Modules: []Entry{{Coordinate: "g:a:1"}, {Coordinate: "g:a:2"}}}
	_, err := NewCatalogResolver(catalog, "", nil)
	assert.Error(t, err)
}

func TestCopyModuleResourcesIsAdditive(t *testing.T) {
	r, _ := newShopResolver(t)
	dest := filepath.Join(t.TempDir(), "db")
	writeFile(t, filepath.Join(dest, "unrelated.txt"), "keep me")

	db := module.Module{ID: module.Coordinate{Group: "com.example", Name: "db"}, Name: "db"}
	require.NoError(t, r.CopyModuleResources(context.Background(), db, dest))
	require.NoError(t, r.CopyModuleResources(context.Background(), db, dest))

	content, err := os.ReadFile(filepath.Join(dest, "shop", "env", "db.env"))
	require.NoError(t, err)
	assert.Equal(t, "DB_HOST=db\n", string(content))

	content, err = os.ReadFile(filepath.Join(dest, "unrelated.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(content))
}

func TestCopyModuleResourcesWithoutBundleCreatesDirectory(t *testing.T) {
	r, _ := newShopResolver(t)
	dest := filepath.Join(t.TempDir(), "base")

	base := module.Module{ID: module.Coordinate{Group: "com.example", Name: "base"}, Name: "base"}
	require.NoError(t, r.CopyModuleResources(context.Background(), base, dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestParseCatalogFormats(t *testing.T) {
	toml := `
[[modules]]
coordinate = "g:web:1"
image = "nginx:1.25"
dependencies = ["g:db:1"]

[[modules]]
coordinate = "g:db:1"
`
	catalog, err := ParseCatalog(".toml", []byte(toml))
	require.NoError(t, err)
	require.Len(t, catalog.Modules, 2)
	assert.Equal(t, "nginx:1.25", catalog.Modules[0].Image)
	assert.Equal(t, []string{"g:db:1"}, catalog.Modules[0].Dependencies)

	json := `{"modules": [{"coordinate": "g:web:1", "container_name": "frontend"}]}`
	catalog, err = ParseCatalog(".json", []byte(json))
	require.NoError(t, err)
	assert.Equal(t, "frontend", catalog.Modules[0].ContainerName)

	_, err = ParseCatalog(".yaml", []byte("modules: [unterminated"))
	assert.Error(t, err)
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wharf.yml")
	writeFile(t, path, shopCatalog)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, catalog.Modules, 4)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
