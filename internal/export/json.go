package export

import (
	"encoding/json"

	"github.com/railwayapp/wharf/internal/module"
)

type JSONExporter struct{}

func (e *JSONExporter) Name() string {
	return "json"
}

func (e *JSONExporter) Export(modules []module.Module) ([]byte, error) {
	if modules == nil {
		modules = []module.Module{}
	}
	return json.MarshalIndent(modules, "", "  ")
}

func NewJSONExporter() Exporter {
	return &JSONExporter{}
}
