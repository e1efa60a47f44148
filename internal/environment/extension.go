package environment

import (
	"strings"

	"github.com/railwayapp/wharf/internal/module"
)

// Extension rewrites the module list after overlay resolution. Extensions run
// in declaration order, each receiving the previous one's output. Apply must
// not call env.Modules.
type Extension interface {
	Name() string
	Apply(env *Environment, modules []module.Module) []module.Module
}

type funcExtension struct {
	name  string
	apply func(env *Environment, modules []module.Module) []module.Module
}

// NewExtension wraps fn as a named Extension.
func NewExtension(name string, fn func(env *Environment, modules []module.Module) []module.Module) Extension {
	return &funcExtension{name: name, apply: fn}
}

func (f *funcExtension) Name() string { return f.name }

func (f *funcExtension) Apply(env *Environment, modules []module.Module) []module.Module {
	return f.apply(env, modules)
}

// ImageOverrides replaces the image of modules whose name matches a key of
// images. Keys are matched case-insensitively since config loaders fold case.
func ImageOverrides(images map[string]string) Extension {
	normalized := make(map[string]string, len(images))
	for name, image := range images {
		normalized[strings.ToLower(name)] = image
	}

	return NewExtension("image-overrides", func(_ *Environment, modules []module.Module) []module.Module {
		result := make([]module.Module, 0, len(modules))
		for _, m := range modules {
			if image, ok := normalized[strings.ToLower(m.Name)]; ok {
				m = m.WithImage(image)
			}
			result = append(result, m)
		}
		return result
	})
}
