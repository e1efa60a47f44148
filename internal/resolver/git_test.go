package resolver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitGitSource(t *testing.T) {
	tests := []struct {
		src, repo, subdir string
	}{
		{"https://github.com/org/bundles.git", "https://github.com/org/bundles.git", ""},
		{"https://github.com/org/bundles.git//modules/db", "https://github.com/org/bundles.git", "modules/db"},
		{"git@github.com:org/bundles.git//db/", "git@github.com:org/bundles.git", "db"},
		{"./local/dir", "./local/dir", ""},
	}
	for _, tt := range tests {
		repo, subdir := SplitGitSource(tt.src)
		assert.Equal(t, tt.repo, repo, tt.src)
		assert.Equal(t, tt.subdir, subdir, tt.src)
	}
}

func TestIsGitSource(t *testing.T) {
	assert.True(t, IsGitSource("https://github.com/org/bundles.git"))
	assert.True(t, IsGitSource("git@github.com:org/bundles.git//db"))
	assert.True(t, IsGitSource("ssh://git@host/org/repo"))
	assert.False(t, IsGitSource("bundles/db"))
	assert.False(t, IsGitSource("/abs/bundles/db"))
}

func TestFetchReusesCachedClone(t *testing.T) {
	cache := t.TempDir()
	fetcher := NewGitFetcher(cache)

	cached := filepath.Join(cache, "https_github.com_org_bundles@v1")
	_, err := git.PlainInit(cached, false)
	require.NoError(t, err)

	dir, err := fetcher.Fetch(context.Background(), "https://github.com/org/bundles.git//db", "v1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cached, "db"), dir)
}
