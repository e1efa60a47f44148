package compose

// Descriptor is the generated orchestration file.
type Descriptor struct {
	Version  string             `yaml:"version"`
	Services map[string]Service `yaml:"services"`
	Networks map[string]Network `yaml:"networks"`
}

type Service struct {
	Image      string                    `yaml:"image"`
	Volumes    []string                  `yaml:"volumes,omitempty"`
	Entrypoint []string                  `yaml:"entrypoint,omitempty"`
	EnvFile    []string                  `yaml:"env_file,omitempty"`
	Networks   map[string]ServiceNetwork `yaml:"networks"`
}

type ServiceNetwork struct {
	Aliases []string `yaml:"aliases"`
}

type Network struct {
	Driver string `yaml:"driver"`
}
