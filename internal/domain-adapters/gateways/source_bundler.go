package gateways

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// SourceBundler archives a decompiled-output directory into a tar.gz next
// to it, so a whole decompilation result can be moved or attached as one
// file.
type SourceBundler struct {
	log interfaces.Logger
}

// NewSourceBundler creates a bundler.
func NewSourceBundler(log interfaces.Logger) *SourceBundler {
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &SourceBundler{log: log}
}

// Bundle archives srcDir into "<srcDir>.tar.gz" and returns that path.
func (b *SourceBundler) Bundle(srcDir string) (string, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return "", fmt.Errorf("failed to stat bundle source: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("bundle source %s is not a directory", srcDir)
	}

	tarballPath := filepath.Clean(srcDir) + ".tar.gz"
	if err := b.createTarball(srcDir, tarballPath); err != nil {
		//nolint:errcheck,gosec // G104: Best effort cleanup of the partial tarball
		os.Remove(tarballPath)
		return "", err
	}

	b.log.Info("bundled sources",
		interfaces.F("dir", srcDir),
		interfaces.F("tarball", tarballPath))
	return tarballPath, nil
}

// createTarball creates a gzipped tar archive from a source directory.
// Entry names are relative to the source directory.
func (b *SourceBundler) createTarball(sourceDir, tarballPath string) error {
	if err := os.MkdirAll(filepath.Dir(tarballPath), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	//nolint:gosec // G304: File path tarballPath is constructed for bundle output
	file, err := os.Create(tarballPath)
	if err != nil {
		return fmt.Errorf("failed to create tarball file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	//nolint:errcheck // Defer close
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	//nolint:errcheck // Defer close
	defer tarWriter.Close()

	return filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				// Broken symlinks in decompiler output are not worth
				// failing the bundle over.
				b.log.Warn("skipping unreadable symlink", interfaces.F("path", path))
				return nil
			}
		}

		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}

		relPath, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		if relPath == "." {
			return nil
		}
		header.Name = relPath

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}

		// Directory and symlink contents live entirely in the header.
		if info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		if info.Mode().IsRegular() {
			//nolint:gosec // G304: File path from filepath.Walk for bundling
			source, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			//nolint:errcheck // Defer close
			defer source.Close()

			if _, err := io.Copy(tarWriter, source); err != nil {
				return fmt.Errorf("failed to write file to tar: %w", err)
			}
		}

		return nil
	})
}
