// Package git clones project repositories into the base directory.
// Cloning is in-process via go-git; no git binary is required.
package git

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// Fetcher clones repositories, optionally rewriting clone URLs through a
// mirror prefix. Mirror selection is external; the fetcher only applies the
// configured prefix.
type Fetcher struct {
	mirrorPrefix string
	log          interfaces.Logger
}

// NewFetcher creates a fetcher. mirrorPrefix may be empty.
func NewFetcher(mirrorPrefix string, log interfaces.Logger) *Fetcher {
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &Fetcher{mirrorPrefix: mirrorPrefix, log: log}
}

// Fetch clones repoURL into baseDir and returns the checkout path. An empty
// name derives the directory name from the URL's last path segment.
func (f *Fetcher) Fetch(ctx context.Context, repoURL, name, baseDir string) (string, error) {
	if repoURL == "" {
		return "", errors.New("repository URL is required")
	}

	cloneURL, err := f.rewrite(repoURL)
	if err != nil {
		return "", err
	}

	if name == "" {
		name, err = deriveName(repoURL)
		if err != nil {
			return "", err
		}
	}

	target := filepath.Join(baseDir, name)
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("project %s already exists at %s", name, target)
	}

	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create base directory %s: %w", baseDir, err)
	}

	f.log.Info("cloning repository",
		interfaces.F("url", cloneURL),
		interfaces.F("path", target))

	if _, err := gogit.PlainCloneContext(ctx, target, false, &gogit.CloneOptions{URL: cloneURL}); err != nil {
		//nolint:errcheck // Partial checkout cleanup
		os.RemoveAll(target)
		return "", fmt.Errorf("failed to clone %s: %w", cloneURL, err)
	}

	f.log.Info("cloned repository", interfaces.F("path", target))
	return target, nil
}

// rewrite prepends the mirror prefix to remote URLs. Local paths and
// hostless URLs pass through untouched.
func (f *Fetcher) rewrite(repoURL string) (string, error) {
	if f.mirrorPrefix == "" {
		return repoURL, nil
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("invalid repository URL %s: %w", repoURL, err)
	}
	if u.Host == "" {
		return repoURL, nil
	}

	return strings.TrimRight(f.mirrorPrefix, "/") + "/" + u.Host + u.Path, nil
}

// deriveName extracts a project directory name from the repository URL.
func deriveName(repoURL string) (string, error) {
	trimmed := strings.TrimRight(repoURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(trimmed, ".git")
	if trimmed == "" {
		return "", fmt.Errorf("cannot derive a project name from %s", repoURL)
	}
	return trimmed, nil
}
