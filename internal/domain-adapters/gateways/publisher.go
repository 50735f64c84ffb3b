package gateways

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// Publisher copies finished artifacts into the release directory and,
// when one is configured, into a shared external directory. The shared
// copy is best effort: its failure is recorded on the outcome, never
// returned as an error.
type Publisher struct {
	log interfaces.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(log interfaces.Logger) *Publisher {
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &Publisher{log: log}
}

// Publish copies artifactPath into releaseDir and optionally sharedDir.
func (p *Publisher) Publish(artifactPath, releaseDir, sharedDir string) (*entities.PublishOutcome, error) {
	if releaseDir == "" {
		return nil, errors.New("release directory is not configured")
	}
	if _, err := os.Stat(artifactPath); err != nil {
		return nil, fmt.Errorf("artifact not found: %w", err)
	}

	if err := os.MkdirAll(releaseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create release directory: %w", err)
	}

	releasedPath := filepath.Join(releaseDir, filepath.Base(artifactPath))
	if err := copyFile(artifactPath, releasedPath); err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", artifactPath, err)
	}

	outcome := &entities.PublishOutcome{ReleasedPath: releasedPath}
	p.log.Info("published artifact",
		interfaces.F("artifact", artifactPath),
		interfaces.F("release", releasedPath))

	if sharedDir == "" {
		return outcome, nil
	}

	sharedPath := filepath.Join(sharedDir, filepath.Base(artifactPath))
	if err := copyToShared(artifactPath, sharedDir, sharedPath); err != nil {
		outcome.SharedError = err.Error()
		p.log.Warn("shared copy failed",
			interfaces.F("artifact", artifactPath),
			interfaces.F("shared", sharedPath),
			interfaces.F("error", err.Error()))
		return outcome, nil
	}

	outcome.SharedPath = sharedPath
	p.log.Info("copied artifact to shared storage", interfaces.F("shared", sharedPath))
	return outcome, nil
}

func copyToShared(artifactPath, sharedDir, sharedPath string) error {
	if err := os.MkdirAll(sharedDir, 0750); err != nil {
		return fmt.Errorf("failed to create shared directory: %w", err)
	}
	return copyFile(artifactPath, sharedPath)
}

// copyFile copies src to dst, carrying over the source file mode.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	//nolint:gosec // G304: File path src comes from pipeline-owned locations
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer in.Close()

	//nolint:gosec // G304: File path dst comes from pipeline-owned locations
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}
