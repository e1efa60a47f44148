package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/railwayapp/wharf/internal/ctxlog"
)

// GitFetcher clones git-hosted module bundles into a cache directory. A
// repository is cloned once per (url, ref) for the life of the cache.
type GitFetcher struct {
	cacheDir string
	mu       sync.Mutex
}

func NewGitFetcher(cacheDir string) *GitFetcher {
	return &GitFetcher{cacheDir: cacheDir}
}

// IsGitSource reports whether a catalog resources value points at git.
func IsGitSource(src string) bool {
	repo, _ := SplitGitSource(src)
	return strings.HasPrefix(repo, "https://") ||
		strings.HasPrefix(repo, "http://") ||
		strings.HasPrefix(repo, "ssh://") ||
		strings.HasPrefix(repo, "git://") ||
		strings.HasPrefix(repo, "git@") ||
		strings.HasSuffix(repo, ".git")
}

// SplitGitSource splits "https://host/repo.git//sub/dir" into the repository
// URL and the subdirectory.
func SplitGitSource(src string) (repo, subdir string) {
	schemeEnd := strings.Index(src, "://")
	searchFrom := 0
	if schemeEnd >= 0 {
		searchFrom = schemeEnd + 3
	}
	if i := strings.Index(src[searchFrom:], "//"); i >= 0 {
		return src[:searchFrom+i], strings.Trim(src[searchFrom+i+2:], "/")
	}
	return src, ""
}

var unsafeDirChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Fetch returns the local directory of src at ref, cloning it on first use.
func (g *GitFetcher) Fetch(ctx context.Context, src, ref string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	repoURL, subdir := SplitGitSource(src)
	name := unsafeDirChars.ReplaceAllString(strings.TrimSuffix(repoURL, ".git"), "_")
	if ref != "" {
		name += "@" + unsafeDirChars.ReplaceAllString(ref, "_")
	}
	dir := filepath.Join(g.cacheDir, name)

	if _, err := git.PlainOpen(dir); err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("failed to open cached clone %s: %w", dir, err)
		}
		if err := g.clone(ctx, dir, repoURL, ref); err != nil {
			return "", err
		}
	}

	return filepath.Join(dir, filepath.FromSlash(subdir)), nil
}

func (g *GitFetcher) clone(ctx context.Context, dir, repoURL, ref string) error {
	ctxlog.FromContext(ctx).Debug("Cloning module bundle", "url", repoURL, "ref", ref, "dir", dir)

	if err := os.MkdirAll(g.cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create git cache: %w", err)
	}

	opts := &git.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		SingleBranch: true,
	}
	if ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	}

	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		if ref == "" {
			os.RemoveAll(dir)
			return fmt.Errorf("failed to clone %s: %w", repoURL, err)
		}
		// ref may be a tag rather than a branch
		os.RemoveAll(dir)
		opts.ReferenceName = plumbing.NewTagReferenceName(ref)
		if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
			os.RemoveAll(dir)
			return fmt.Errorf("failed to clone %s at %s: %w", repoURL, ref, err)
		}
	}
	return nil
}
