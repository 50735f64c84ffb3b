package gateways

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0640))
	return path
}

func TestPublisherPublish(t *testing.T) {
	tmpDir := t.TempDir()
	artifact := writeArtifact(t, tmpDir, "mymod-1.0.jar", "jar bytes")
	releaseDir := filepath.Join(tmpDir, "release", "nested")

	publisher := NewPublisher(nil)
	outcome, err := publisher.Publish(artifact, releaseDir, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(releaseDir, "mymod-1.0.jar"), outcome.ReleasedPath)
	assert.Empty(t, outcome.SharedPath)
	assert.Empty(t, outcome.SharedError)

	content, err := os.ReadFile(outcome.ReleasedPath)
	require.NoError(t, err)
	assert.Equal(t, "jar bytes", string(content))
}

func TestPublisherPublishWithShared(t *testing.T) {
	tmpDir := t.TempDir()
	artifact := writeArtifact(t, tmpDir, "mymod-1.0.jar", "jar bytes")
	releaseDir := filepath.Join(tmpDir, "release")
	sharedDir := filepath.Join(tmpDir, "shared")

	publisher := NewPublisher(nil)
	outcome, err := publisher.Publish(artifact, releaseDir, sharedDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(sharedDir, "mymod-1.0.jar"), outcome.SharedPath)
	assert.Empty(t, outcome.SharedError)

	content, err := os.ReadFile(outcome.SharedPath)
	require.NoError(t, err)
	assert.Equal(t, "jar bytes", string(content))
}

// A failing shared copy must not fail the publish.
func TestPublisherSharedFailureIsNotFatal(t *testing.T) {
	tmpDir := t.TempDir()
	artifact := writeArtifact(t, tmpDir, "mymod-1.0.jar", "jar bytes")
	releaseDir := filepath.Join(tmpDir, "release")

	// A regular file where the shared directory should be makes MkdirAll fail.
	blocked := writeArtifact(t, tmpDir, "shared", "not a directory")

	publisher := NewPublisher(nil)
	outcome, err := publisher.Publish(artifact, releaseDir, blocked)
	require.NoError(t, err)

	assert.NotEmpty(t, outcome.SharedError)
	assert.Empty(t, outcome.SharedPath)
	assert.FileExists(t, outcome.ReleasedPath)
}

func TestPublisherMissingArtifact(t *testing.T) {
	tmpDir := t.TempDir()

	publisher := NewPublisher(nil)
	_, err := publisher.Publish(filepath.Join(tmpDir, "ghost.jar"), filepath.Join(tmpDir, "release"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact not found")
}

func TestPublisherRequiresReleaseDir(t *testing.T) {
	tmpDir := t.TempDir()
	artifact := writeArtifact(t, tmpDir, "mymod-1.0.jar", "jar bytes")

	publisher := NewPublisher(nil)
	_, err := publisher.Publish(artifact, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release directory is not configured")
}

func TestCopyFilePreservesMode(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "tool.sh")
	//nolint:gosec // G306: Test executable needs 0700 permissions
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\n"), 0700))

	dst := filepath.Join(tmpDir, "copy.sh")
	require.NoError(t, copyFile(src, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestCopyFileOverwritesDestination(t *testing.T) {
	tmpDir := t.TempDir()
	src := writeArtifact(t, tmpDir, "new.jar", "new")
	dst := writeArtifact(t, tmpDir, "old.jar", "something much longer than new")

	require.NoError(t, copyFile(src, dst))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}
