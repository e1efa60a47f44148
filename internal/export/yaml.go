package export

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/railwayapp/wharf/internal/module"
)

type YAMLExporter struct{}

func (e *YAMLExporter) Name() string {
	return "yaml"
}

func (e *YAMLExporter) Export(modules []module.Module) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(modules); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func NewYAMLExporter() Exporter {
	return &YAMLExporter{}
}
