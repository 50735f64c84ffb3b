package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// KnownTransformers is the registry of deobfuscation passes the external
// tool understands, in application order. An empty transform-set request
// means all of them.
var KnownTransformers = []string{
	"normalize",
	"decrypt-strings",
	"inline-flow",
	"resolve-reflection",
}

// Deobfuscator wraps the external deobfuscation tool for single archives
// and whole directories.
type Deobfuscator struct {
	tools  *ToolCache
	runner *CommandRunner
	log    interfaces.Logger

	java string
	spec entities.ToolSpec
}

// NewDeobfuscator creates the deobfuscation gateway. An empty javaProgram
// means "java" from PATH.
func NewDeobfuscator(tools *ToolCache, runner *CommandRunner, javaProgram string, spec entities.ToolSpec, log interfaces.Logger) *Deobfuscator {
	if javaProgram == "" {
		javaProgram = "java"
	}
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &Deobfuscator{
		tools:  tools,
		runner: runner,
		log:    log,
		java:   javaProgram,
		spec:   spec,
	}
}

// Deobfuscate runs the selected transformers over one archive, writing the
// output under outDir with a "-deobf" suffix. An empty transformer list
// selects every known transformer.
func (d *Deobfuscator) Deobfuscate(ctx context.Context, jarPath, outDir string, transformers []string, timeout time.Duration) (string, error) {
	if !fileExists(jarPath) {
		return "", fmt.Errorf("input archive %s does not exist", jarPath)
	}
	transformers, err := resolveTransformers(transformers)
	if err != nil {
		return "", err
	}

	toolJar, err := d.tools.Ensure(ctx, d.spec)
	if err != nil {
		return "", fmt.Errorf("deobfuscator unavailable: %w", err)
	}

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outPath := filepath.Join(outDir, withSuffix(filepath.Base(jarPath), "-deobf"))

	args := append([]string{"-jar", toolJar}, expandArgs(d.spec.Args, map[string]string{
		"{in}":  jarPath,
		"{out}": outPath,
	})...)
	for _, transformer := range transformers {
		args = append(args, "--transformer", transformer)
	}

	d.log.Info("deobfuscating archive",
		interfaces.F("input", jarPath),
		interfaces.F("transformers", strings.Join(transformers, ",")))

	result, err := d.runner.Run(ctx, Command{Program: d.java, Args: args, Timeout: timeout})
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("deobfuscation failed (exit %d): %s", result.ExitCode, result.Tail(400))
	}
	if !fileExists(outPath) {
		return "", fmt.Errorf("deobfuscator reported success but %s was not produced", outPath)
	}
	return outPath, nil
}

// DeobfuscateDir applies one transform-set to every archive in a directory,
// continuing past per-file failures. The report partitions archive names by
// outcome in processing order.
func (d *Deobfuscator) DeobfuscateDir(ctx context.Context, dir, outDir string, transformers []string, timeout time.Duration) (*entities.DirectoryReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".jar") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	report := &entities.DirectoryReport{}
	for _, name := range names {
		if _, err := d.Deobfuscate(ctx, filepath.Join(dir, name), outDir, transformers, timeout); err != nil {
			d.log.Warn("archive failed to deobfuscate",
				interfaces.F("archive", name),
				interfaces.F("error", err.Error()))
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Succeeded = append(report.Succeeded, name)
	}
	return report, nil
}

// resolveTransformers validates the requested set against the registry,
// defaulting to the full registry when empty.
func resolveTransformers(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return KnownTransformers, nil
	}
	known := make(map[string]bool, len(KnownTransformers))
	for _, transformer := range KnownTransformers {
		known[transformer] = true
	}
	for _, transformer := range requested {
		if !known[transformer] {
			return nil, fmt.Errorf("unknown transformer %q; known transformers: %s",
				transformer, strings.Join(KnownTransformers, ", "))
		}
	}
	return requested, nil
}
