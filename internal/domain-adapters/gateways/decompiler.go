package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// Decompiler wraps the external decompiler tool. The output contract is a
// directory of source-like text files under the decompiled-output root.
type Decompiler struct {
	tools  *ToolCache
	runner *CommandRunner
	log    interfaces.Logger

	java string
	spec entities.ToolSpec
}

// NewDecompiler creates the decompilation gateway. An empty javaProgram
// means "java" from PATH.
func NewDecompiler(tools *ToolCache, runner *CommandRunner, javaProgram string, spec entities.ToolSpec, log interfaces.Logger) *Decompiler {
	if javaProgram == "" {
		javaProgram = "java"
	}
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &Decompiler{
		tools:  tools,
		runner: runner,
		log:    log,
		java:   javaProgram,
		spec:   spec,
	}
}

// Decompile turns one archive into a directory of sources named after the
// archive under outRoot, and returns that directory.
func (d *Decompiler) Decompile(ctx context.Context, jarPath, outRoot string, timeout time.Duration) (string, error) {
	if !fileExists(jarPath) {
		return "", fmt.Errorf("input archive %s does not exist", jarPath)
	}

	toolJar, err := d.tools.Ensure(ctx, d.spec)
	if err != nil {
		return "", fmt.Errorf("decompiler unavailable: %w", err)
	}

	base := filepath.Base(jarPath)
	outDir := filepath.Join(outRoot, strings.TrimSuffix(base, filepath.Ext(base)))
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	args := append([]string{"-jar", toolJar}, expandArgs(d.spec.Args, map[string]string{
		"{in}":     jarPath,
		"{outdir}": outDir,
	})...)

	d.log.Info("decompiling archive",
		interfaces.F("input", jarPath),
		interfaces.F("output", outDir))

	result, err := d.runner.Run(ctx, Command{Program: d.java, Args: args, Timeout: timeout})
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("decompilation failed (exit %d): %s", result.ExitCode, result.Tail(400))
	}
	return outDir, nil
}
