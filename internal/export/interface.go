package export

import (
	"fmt"
	"sort"

	"github.com/railwayapp/wharf/internal/module"
)

// Exporter renders a resolved module list
type Exporter interface {
	// Export converts the modules to the target format
	Export(modules []module.Module) ([]byte, error)

	// Name returns the exporter name (e.g., "json", "yaml")
	Name() string
}

var exporters = map[string]func() Exporter{
	"json": NewJSONExporter,
	"yaml": NewYAMLExporter,
}

// Lookup returns the exporter registered under name.
func Lookup(name string) (Exporter, error) {
	factory, ok := exporters[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q, expected one of %v", name, Names())
	}
	return factory(), nil
}

func Names() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
