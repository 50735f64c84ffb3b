package gateways

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceBundlerBundle(t *testing.T) {
	tmpDir := t.TempDir()
	srcDir := filepath.Join(tmpDir, "mymod-1.2.0")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "com", "example"), 0750))

	files := map[string]string{
		filepath.Join(srcDir, "summary.txt"):                    "decompiled 3 classes",
		filepath.Join(srcDir, "com", "example", "Main.java"):    "public class Main {}",
		filepath.Join(srcDir, "com", "example", "Village.java"): "class Village {}",
	}
	for path, content := range files {
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}

	bundler := NewSourceBundler(nil)
	tarballPath, err := bundler.Bundle(srcDir)
	require.NoError(t, err)
	assert.Equal(t, srcDir+".tar.gz", tarballPath)

	entries := readBundleEntries(t, tarballPath)
	assert.Equal(t, "decompiled 3 classes", entries["summary.txt"])
	assert.Equal(t, "public class Main {}", entries[filepath.Join("com", "example", "Main.java")])
	assert.Equal(t, "class Village {}", entries[filepath.Join("com", "example", "Village.java")])

	// The source directory itself must not appear as a "." entry.
	_, hasDot := entries["."]
	assert.False(t, hasDot)
}

func TestSourceBundlerBundleWithSymlinks(t *testing.T) {
	tmpDir := t.TempDir()
	srcDir := filepath.Join(tmpDir, "linked")
	require.NoError(t, os.MkdirAll(srcDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "real.java"), []byte("content"), 0600))

	if err := os.Symlink("real.java", filepath.Join(srcDir, "alias.java")); err != nil {
		t.Skipf("Symlink creation not supported on this system: %v", err)
	}

	bundler := NewSourceBundler(nil)
	tarballPath, err := bundler.Bundle(srcDir)
	require.NoError(t, err)

	names := readBundleNames(t, tarballPath)
	assert.Contains(t, names, "real.java")
	assert.Contains(t, names, "alias.java")
}

func TestSourceBundlerBundleMissingSource(t *testing.T) {
	bundler := NewSourceBundler(nil)
	_, err := bundler.Bundle(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat bundle source")
}

func TestSourceBundlerBundleRejectsFileSource(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "not-a-dir.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0600))

	bundler := NewSourceBundler(nil)
	_, err := bundler.Bundle(filePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

// readBundleEntries maps every regular-file entry name to its content.
func readBundleEntries(t *testing.T, tarballPath string) map[string]string {
	t.Helper()

	//nolint:gosec // G304: tarballPath is test fixture path
	file, err := os.Open(tarballPath)
	require.NoError(t, err)
	//nolint:errcheck // Defer close in test
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	require.NoError(t, err)
	//nolint:errcheck // Defer close in test
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	entries := make(map[string]string)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if header.Typeflag != tar.TypeReg {
			entries[header.Name] = ""
			continue
		}
		content, err := io.ReadAll(tarReader)
		require.NoError(t, err)
		entries[header.Name] = string(content)
	}
	return entries
}

// readBundleNames lists every entry name in the tarball.
func readBundleNames(t *testing.T, tarballPath string) []string {
	t.Helper()

	names := make([]string, 0)
	for name := range readBundleEntries(t, tarballPath) {
		names = append(names, name)
	}
	return names
}
