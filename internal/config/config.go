package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration of a wharf invocation.
type Config struct {
	Catalog           string            `mapstructure:"catalog"`
	Root              string            `mapstructure:"root"`
	ResourcesRoot     string            `mapstructure:"resources_root"`
	TopLevelResources string            `mapstructure:"top_level_resources"`
	Descriptor        string            `mapstructure:"descriptor"`
	Network           string            `mapstructure:"network"`
	Images            map[string]string `mapstructure:"images"`
	Docker            DockerConfig      `mapstructure:"docker"`
	Git               GitConfig         `mapstructure:"git"`
	Log               LogConfig         `mapstructure:"log"`
}

// DockerConfig describes how the orchestration backend is reached.
type DockerConfig struct {
	Binary        string        `mapstructure:"binary"`
	Compose       string        `mapstructure:"compose"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Introspection string        `mapstructure:"introspection"`
}

type GitConfig struct {
	Cache string `mapstructure:"cache"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	IntrospectionJSON     = "json"
	IntrospectionTemplate = "template"
)

// SetDefaults registers every key with its default so that AutomaticEnv can
// resolve WHARF_* variables for keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("catalog", "modules.yaml")
	v.SetDefault("root", "")
	v.SetDefault("resources_root", "")
	v.SetDefault("top_level_resources", "")
	v.SetDefault("descriptor", "docker-compose.yml")
	v.SetDefault("network", "wharf")
	v.SetDefault("images", map[string]string{})
	v.SetDefault("docker.binary", "docker")
	v.SetDefault("docker.compose", "docker compose")
	v.SetDefault("docker.timeout", time.Duration(0))
	v.SetDefault("docker.introspection", IntrospectionJSON)
	v.SetDefault("git.cache", filepath.Join(os.TempDir(), "wharf-git"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// NewViper returns a viper instance with defaults and WHARF_ environment
// binding applied.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("wharf")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load decodes v into a Config and fills derived defaults.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.ResourcesRoot == "" {
		cfg.ResourcesRoot = filepath.Join(os.TempDir(), fmt.Sprintf("wharf_%d", time.Now().UnixNano()))
	}
	// bind mounts and env_file entries in the descriptor must be absolute
	for _, p := range []*string{&cfg.ResourcesRoot, &cfg.TopLevelResources} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", *p, err)
		}
		*p = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	switch c.Docker.Introspection {
	case IntrospectionJSON, IntrospectionTemplate:
	default:
		return fmt.Errorf("docker.introspection must be %q or %q, got %q", IntrospectionJSON, IntrospectionTemplate, c.Docker.Introspection)
	}
	if c.Docker.Timeout < 0 {
		return fmt.Errorf("docker.timeout must not be negative")
	}
	if strings.TrimSpace(c.Docker.Compose) == "" {
		return fmt.Errorf("docker.compose must not be empty")
	}
	if c.Descriptor == "" || filepath.Base(c.Descriptor) != c.Descriptor {
		return fmt.Errorf("descriptor must be a bare file name, got %q", c.Descriptor)
	}
	return nil
}

// ComposeCommand splits docker.compose into the executable and its leading
// arguments, e.g. "docker compose" -> ("docker", ["compose"]).
func (c *Config) ComposeCommand() (string, []string) {
	fields := strings.Fields(c.Docker.Compose)
	return fields[0], fields[1:]
}
