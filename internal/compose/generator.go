// Package compose turns a module list into the descriptor consumed by the
// orchestration backend and checks that the backend accepts it.
package compose

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/railwayapp/wharf/internal/module"
)

const (
	DescriptorVersion = "2"
	NetworkDriver     = "bridge"
	aliasDomain       = ".docker"
)

// Generator renders descriptors. Output depends only on the module list, so
// regenerating from an unchanged list is byte-identical.
type Generator struct {
	network string
}

// NewGenerator returns a generator placing every service in the network
// declared under the given key.
func NewGenerator(network string) *Generator {
	return &Generator{network: network}
}

// Build converts modules into a descriptor. Modules without an image only
// contribute configuration and get no service.
func (g *Generator) Build(modules []module.Module) *Descriptor {
	services := make(map[string]Service, len(modules))
	for _, m := range modules {
		if !m.HasImage() {
			continue
		}
		services[m.Name] = Service{
			Image:      m.ImageName,
			Volumes:    slices.Clone(m.Volumes),
			Entrypoint: slices.Clone(m.Entrypoint),
			EnvFile:    slices.Clone(m.EnvFiles),
			Networks: map[string]ServiceNetwork{
				g.network: {Aliases: NetworkAliases(m)},
			},
		}
	}

	return &Descriptor{
		Version:  DescriptorVersion,
		Services: services,
		Networks: map[string]Network{
			g.network: {Driver: NetworkDriver},
		},
	}
}

// Generate renders the descriptor of modules as YAML.
func (g *Generator) Generate(modules []module.Module) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(g.Build(modules)); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

// NetworkAliases returns the sorted, deduplicated aliases of m:
// <short image>.docker, <container>.<short image>.docker and any entries of
// the network.aliases property.
func NetworkAliases(m module.Module) []string {
	aliases := []string{
		m.ShortImageName + aliasDomain,
		m.ContainerName + "." + m.ShortImageName + aliasDomain,
	}
	if extra, ok := m.Property(module.PropertyNetworkAliases); ok {
		for _, alias := range strings.Split(extra, ",") {
			if alias = strings.TrimSpace(alias); alias != "" {
				aliases = append(aliases, alias)
			}
		}
	}
	slices.Sort(aliases)
	return slices.Compact(aliases)
}

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// NormalizeProjectName strips every character outside [A-Za-z0-9] and
// lowercases the rest: "My-App_2" -> "myapp2". The backend project and its
// network names are derived from this value.
func NormalizeProjectName(name string) string {
	return strings.ToLower(nonAlphanumeric.ReplaceAllString(name, ""))
}

// NetworkName returns the name the backend gives to network key of project.
func NetworkName(project, network string) string {
	return project + "_" + network
}
