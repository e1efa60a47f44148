// Package module holds the value types that flow through the module graph:
// coordinates and modules. Modules are treated as immutable; enrichment
// stages derive new values with the With* helpers.
package module

import (
	"fmt"
	"slices"
	"strings"
)

// Coordinate identifies an artifact as group:name:version.
type Coordinate struct {
	Group   string `json:"group" yaml:"group"`
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// ParseCoordinate parses "group:name:version". The version may be omitted.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q, expected group:name[:version]", s)
	}
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, fmt.Errorf("invalid coordinate %q, empty segment", s)
		}
	}
	c := Coordinate{Group: parts[0], Name: parts[1]}
	if len(parts) == 3 {
		c.Version = parts[2]
	}
	return c, nil
}

func (c Coordinate) String() string {
	if c.Version == "" {
		return c.Group + ":" + c.Name
	}
	return c.Group + ":" + c.Name + ":" + c.Version
}

// Key identifies a coordinate independently of its version.
func (c Coordinate) Key() string {
	return c.Group + ":" + c.Name
}

const (
	// PropertyNetworkAliases holds comma separated extra network aliases.
	PropertyNetworkAliases = "network.aliases"
	PropertyImage          = "docker.image"
	PropertyEntrypoint     = "docker.entrypoint"
	PropertyContainerName  = "docker.container_name"
)

// Module is a resolved unit of the dependency graph.
type Module struct {
	ID             Coordinate        `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	ImageName      string            `json:"image,omitempty" yaml:"image,omitempty"`
	ShortImageName string            `json:"shortImage,omitempty" yaml:"shortImage,omitempty"`
	ContainerName  string            `json:"containerName,omitempty" yaml:"containerName,omitempty"`
	Properties     map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	Entrypoint     []string          `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	// Volumes are host:container bind specs, sorted.
	Volumes []string `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	// EnvFiles is nil when no module contributes an env file.
	EnvFiles []string `json:"envFiles,omitempty" yaml:"envFiles,omitempty"`
}

// HasImage reports whether the module runs as a container. Imageless modules
// only contribute configuration to others.
func (m Module) HasImage() bool {
	return m.ImageName != ""
}

// Clone returns a deep copy of m.
func (m Module) Clone() Module {
	c := m
	if m.Properties != nil {
		c.Properties = make(map[string]string, len(m.Properties))
		for k, v := range m.Properties {
			c.Properties[k] = v
		}
	}
	c.Entrypoint = slices.Clone(m.Entrypoint)
	c.Volumes = slices.Clone(m.Volumes)
	c.EnvFiles = slices.Clone(m.EnvFiles)
	return c
}

func (m Module) WithVolumes(volumes []string) Module {
	c := m.Clone()
	c.Volumes = sortedCopy(volumes)
	return c
}

func (m Module) WithEnvFiles(envFiles []string) Module {
	c := m.Clone()
	if len(envFiles) == 0 {
		c.EnvFiles = nil
		return c
	}
	c.EnvFiles = sortedCopy(envFiles)
	return c
}

// WithImage sets the image and recomputes the short image name.
func (m Module) WithImage(image string) Module {
	c := m.Clone()
	c.ImageName = image
	c.ShortImageName = ShortImageName(image)
	return c
}

func (m Module) WithEntrypoint(entrypoint []string) Module {
	c := m.Clone()
	c.Entrypoint = slices.Clone(entrypoint)
	return c
}

// Property returns a property value and whether it was set.
func (m Module) Property(key string) (string, bool) {
	v, ok := m.Properties[key]
	return v, ok
}

// ShortImageName strips registry, repository path, tag and digest from an
// image reference: "registry:5000/team/api:1.2" -> "api".
func ShortImageName(image string) string {
	if image == "" {
		return ""
	}
	ref := image
	if i := strings.Index(ref, "@"); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.Index(ref, ":"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

func sortedCopy(in []string) []string {
	out := make([]string, 0, len(in))
	out = append(out, in...)
	slices.Sort(out)
	return slices.Compact(out)
}
