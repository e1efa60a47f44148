package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate("com.example:web:1.2.0")
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Group: "com.example", Name: "web", Version: "1.2.0"}, c)
	assert.Equal(t, "com.example:web:1.2.0", c.String())
	assert.Equal(t, "com.example:web", c.Key())

	c, err = ParseCoordinate("com.example:web")
	require.NoError(t, err)
	assert.Empty(t, c.Version)
	assert.Equal(t, "com.example:web", c.String())

	for _, bad := range []string{"", "web", "a::b", "a:b:c:d"} {
		_, err := ParseCoordinate(bad)
		assert.Error(t, err, bad)
	}
}

func TestShortImageName(t *testing.T) {
	tests := map[string]string{
		"":                                 "",
		"redis":                            "redis",
		"redis:7":                          "redis",
		"library/postgres:16":              "postgres",
		"registry.local:5000/team/api:1.2": "api",
		"ghcr.io/org/worker@sha256:abcd":   "worker",
	}
	for in, want := range tests {
		assert.Equal(t, want, ShortImageName(in), in)
	}
}

func TestWithHelpersDoNotMutateOriginal(t *testing.T) {
	orig := Module{
		Name:       "web",
		Properties: map[string]string{"a": "1"},
		Volumes:    []string{"/x:/y"},
	}

	enriched := orig.WithVolumes([]string{"/b:/b", "/a:/a", "/a:/a"})
	enriched.Properties["a"] = "2"

	assert.Equal(t, []string{"/x:/y"}, orig.Volumes)
	assert.Equal(t, "1", orig.Properties["a"])
	assert.Equal(t, []string{"/a:/a", "/b:/b"}, enriched.Volumes)
}

func TestWithEnvFilesEmptyIsNil(t *testing.T) {
	m := Module{Name: "web"}.WithEnvFiles([]string{})
	assert.Nil(t, m.EnvFiles)

	m = m.WithEnvFiles([]string{"/r/b.env", "/r/a.env"})
	assert.Equal(t, []string{"/r/a.env", "/r/b.env"}, m.EnvFiles)
}

func TestWithImage(t *testing.T) {
	m := Module{Name: "db"}.WithImage("postgres:16")
	assert.True(t, m.HasImage())
	assert.Equal(t, "postgres", m.ShortImageName)
	assert.False(t, Module{Name: "config"}.HasImage())
}
