package resolver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk description of every module the resolver knows.
type Catalog struct {
	Modules []Entry `json:"modules" yaml:"modules" toml:"modules"`
}

// Entry describes one module of the catalog.
type Entry struct {
	Coordinate    string            `json:"coordinate" yaml:"coordinate" toml:"coordinate"`
	Image         string            `json:"image,omitempty" yaml:"image,omitempty" toml:"image,omitempty"`
	ContainerName string            `json:"container_name,omitempty" yaml:"container_name,omitempty" toml:"container_name,omitempty"`
	Entrypoint    []string          `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty" toml:"entrypoint,omitempty"`
	Properties    map[string]string `json:"properties,omitempty" yaml:"properties,omitempty" toml:"properties,omitempty"`
	Dependencies  []string          `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
	// Resources is a local directory (relative to the catalog file) or a git
	// URL. A "//" after the repository URL selects a subdirectory.
	Resources string `json:"resources,omitempty" yaml:"resources,omitempty" toml:"resources,omitempty"`
	Ref       string `json:"ref,omitempty" yaml:"ref,omitempty" toml:"ref,omitempty"`
}

// LoadCatalog reads a catalog file. The format is picked from the extension:
// .json, .toml, or YAML for anything else.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	catalog, err := ParseCatalog(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return catalog, nil
}

// ParseCatalog decodes catalog content in the format named by ext.
func ParseCatalog(ext string, data []byte) (*Catalog, error) {
	var catalog Catalog
	var err error

	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, &catalog)
	case ".toml":
		err = toml.Unmarshal(data, &catalog)
	default:
		err = yaml.Unmarshal(data, &catalog)
	}
	if err != nil {
		return nil, err
	}
	return &catalog, nil
}
