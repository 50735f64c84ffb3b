package gateways

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// guardClassEntry is where the compiled guard lands inside the archive.
const guardClassEntry = "smithy/guard/TamperSeal.class"

// guardSource is compiled at injection time so every sealed archive
// carries a unique stamp.
var guardSource = template.Must(template.New("guard").Parse(`package smithy.guard;

public final class TamperSeal {
    public static final String STAMP = "{{.Stamp}}";

    private TamperSeal() {
    }

    public static String stamp() {
        return STAMP;
    }
}
`))

// GuardInjector compiles a small guard class with javac and merges it into
// an archive. The archive is rewritten to a temp file and renamed only on
// success, so a failed injection leaves the input byte-identical.
type GuardInjector struct {
	runner *CommandRunner
	javac  string
	log    interfaces.Logger
}

// NewGuardInjector creates an injector. An empty javacProgram means "javac"
// from PATH.
func NewGuardInjector(runner *CommandRunner, javacProgram string, log interfaces.Logger) *GuardInjector {
	if javacProgram == "" {
		javacProgram = "javac"
	}
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &GuardInjector{runner: runner, javac: javacProgram, log: log}
}

// Inject compiles the guard class and adds it to the archive in place.
func (g *GuardInjector) Inject(ctx context.Context, archivePath string, timeout time.Duration) error {
	if !fileExists(archivePath) {
		return fmt.Errorf("archive %s does not exist", archivePath)
	}

	classBytes, err := g.compileGuard(ctx, timeout)
	if err != nil {
		return err
	}
	if err := injectZipEntry(archivePath, guardClassEntry, classBytes); err != nil {
		return err
	}

	g.log.Info("anti-tamper guard injected", interfaces.F("archive", archivePath))
	return nil
}

// compileGuard renders and compiles the guard source, returning the class
// file bytes.
func (g *GuardInjector) compileGuard(ctx context.Context, timeout time.Duration) ([]byte, error) {
	workDir, err := os.MkdirTemp("", "smithy-guard-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create guard work directory: %w", err)
	}
	//nolint:errcheck // Best effort cleanup of the scratch directory
	defer os.RemoveAll(workDir)

	stamp := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), uuid.NewString())
	var source bytes.Buffer
	if err := guardSource.Execute(&source, struct{ Stamp string }{Stamp: stamp}); err != nil {
		return nil, fmt.Errorf("failed to render guard source: %w", err)
	}

	srcPath := filepath.Join(workDir, "TamperSeal.java")
	if err := os.WriteFile(srcPath, source.Bytes(), 0640); err != nil {
		return nil, fmt.Errorf("failed to write guard source: %w", err)
	}

	classesDir := filepath.Join(workDir, "classes")
	result, err := g.runner.Run(ctx, Command{
		Program: g.javac,
		Args:    []string{"-d", classesDir, srcPath},
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("guard compilation failed (exit %d): %s", result.ExitCode, result.Tail(200))
	}

	classPath := filepath.Join(classesDir, filepath.FromSlash(guardClassEntry))
	classBytes, err := os.ReadFile(classPath) //nolint:gosec // G304: path derived from our own javac output dir
	if err != nil {
		return nil, fmt.Errorf("guard class missing after compilation: %w", err)
	}
	return classBytes, nil
}

// injectZipEntry rewrites the archive with the entry added (replacing any
// existing entry of the same name). Existing entries are copied raw.
func injectZipEntry(archivePath, entryName string, payload []byte) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer reader.Close()

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".inject-*")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	writer := zip.NewWriter(tmp)

	discard := func() {
		//nolint:errcheck,gosec // G104: Best effort cleanup of the temp archive
		writer.Close()
		//nolint:errcheck,gosec // G104: Best effort cleanup of the temp archive
		tmp.Close()
		//nolint:errcheck,gosec // G104: Best effort cleanup of the temp archive
		os.Remove(tmpPath)
	}

	for _, file := range reader.File {
		if file.Name == entryName {
			continue
		}
		if err := writer.Copy(file); err != nil {
			discard()
			return fmt.Errorf("failed to copy archive entry %s: %w", file.Name, err)
		}
	}

	entry, err := writer.CreateHeader(&zip.FileHeader{
		Name:     entryName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		discard()
		return fmt.Errorf("failed to add guard entry: %w", err)
	}
	if _, err := entry.Write(payload); err != nil {
		discard()
		return fmt.Errorf("failed to write guard entry: %w", err)
	}

	if err := writer.Close(); err != nil {
		discard()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		discard()
		return fmt.Errorf("failed to close temp archive: %w", err)
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		//nolint:errcheck,gosec // G104: Best effort cleanup of the temp archive
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace archive: %w", err)
	}
	return nil
}
