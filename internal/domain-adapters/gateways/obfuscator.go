package gateways

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// Obfuscator wraps the external obfuscation tool. The basic pass is a hard
// requirement of its stage; the hardened flow layers optional string
// encryption and anti-tamper injection on top, degrading to the basic
// output when an optional step cannot run.
type Obfuscator struct {
	tools    *ToolCache
	runner   *CommandRunner
	injector *GuardInjector
	log      interfaces.Logger

	java           string
	spec           entities.ToolSpec
	stringToolPath string
}

// ObfuscatorConfig carries the resolved tool settings for the obfuscator.
type ObfuscatorConfig struct {
	// JavaProgram launches tool jars; empty means "java" from PATH.
	JavaProgram string
	// Tool is the obfuscator jar spec, including its invocation template.
	Tool entities.ToolSpec
	// StringToolPath points at the optional string-encryption jar. The
	// tool is used only when the file exists; it is never downloaded.
	StringToolPath string
}

// NewObfuscator creates the obfuscation gateway. The injector may be nil
// to disable anti-tamper injection entirely.
func NewObfuscator(tools *ToolCache, runner *CommandRunner, injector *GuardInjector, cfg ObfuscatorConfig, log interfaces.Logger) *Obfuscator {
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	java := cfg.JavaProgram
	if java == "" {
		java = "java"
	}
	return &Obfuscator{
		tools:          tools,
		runner:         runner,
		injector:       injector,
		log:            log,
		java:           java,
		spec:           cfg.Tool,
		stringToolPath: cfg.StringToolPath,
	}
}

// Obfuscate runs the basic pass over one archive and returns the output
// path (input with "-obf" before the extension).
func (o *Obfuscator) Obfuscate(ctx context.Context, jarPath string, timeout time.Duration) (string, error) {
	if !fileExists(jarPath) {
		return "", fmt.Errorf("input archive %s does not exist", jarPath)
	}
	if len(o.spec.Args) == 0 {
		return "", fmt.Errorf("obfuscator %s has no invocation template configured", o.spec.Name)
	}

	toolJar, err := o.tools.Ensure(ctx, o.spec)
	if err != nil {
		return "", fmt.Errorf("obfuscator unavailable: %w", err)
	}

	outPath := withSuffix(jarPath, "-obf")
	args := append([]string{"-jar", toolJar}, expandArgs(o.spec.Args, map[string]string{
		"{in}":  jarPath,
		"{out}": outPath,
	})...)

	o.log.Info("obfuscating archive",
		interfaces.F("input", jarPath),
		interfaces.F("output", outPath))

	result, err := o.runner.Run(ctx, Command{Program: o.java, Args: args, Timeout: timeout})
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("obfuscation failed (exit %d): %s", result.ExitCode, result.Tail(400))
	}
	if !fileExists(outPath) {
		return "", fmt.Errorf("obfuscator reported success but %s was not produced", outPath)
	}
	return outPath, nil
}

// Harden runs the advanced flow: the basic pass (required), then string
// encryption when the optional tool is on disk, then anti-tamper injection.
// Optional steps degrade to warnings; the returned path always exists when
// the error is nil. Output carries the "-secure" suffix.
func (o *Obfuscator) Harden(ctx context.Context, jarPath string, timeout time.Duration) (string, []string, error) {
	var warnings []string

	obfPath, err := o.Obfuscate(ctx, jarPath, timeout)
	if err != nil {
		return "", nil, err
	}

	securePath := withSuffix(jarPath, "-secure")
	if encErr := o.encryptStrings(ctx, obfPath, securePath, timeout); encErr != nil {
		warnings = append(warnings, encErr.Error())
		if copyErr := copyFile(obfPath, securePath); copyErr != nil {
			return "", warnings, fmt.Errorf("failed to carry the obfuscated archive forward: %w", copyErr)
		}
	}

	if o.injector != nil {
		if injErr := o.injector.Inject(ctx, securePath, timeout); injErr != nil {
			warnings = append(warnings, fmt.Sprintf("anti-tamper injection skipped: %v", injErr))
		}
	}

	for _, warning := range warnings {
		o.log.Warn(warning, interfaces.F("archive", securePath))
	}
	return securePath, warnings, nil
}

// encryptStrings runs the optional string-encryption tool. Any returned
// error means "fall back to the plain obfuscated archive"; the caller
// copies forward and records the reason as a warning.
func (o *Obfuscator) encryptStrings(ctx context.Context, inPath, outPath string, timeout time.Duration) error {
	if o.stringToolPath == "" {
		return fmt.Errorf("string encryption skipped: no tool configured")
	}
	if !fileExists(o.stringToolPath) {
		return fmt.Errorf("string encryption skipped: %s not present", o.stringToolPath)
	}

	result, err := o.runner.Run(ctx, Command{
		Program: o.java,
		Args:    []string{"-jar", o.stringToolPath, "--encrypt", inPath, outPath},
		Timeout: timeout,
	})
	if err != nil {
		return fmt.Errorf("string encryption skipped: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("string encryption failed (exit %d): %s", result.ExitCode, result.Tail(200))
	}
	if !fileExists(outPath) {
		return fmt.Errorf("string encryption produced no output at %s", outPath)
	}
	return nil
}

// withSuffix inserts a suffix between a path's base name and extension.
func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// expandArgs substitutes placeholder tokens inside an invocation template.
func expandArgs(template []string, replacements map[string]string) []string {
	args := make([]string, len(template))
	for i, arg := range template {
		for placeholder, value := range replacements {
			arg = strings.ReplaceAll(arg, placeholder, value)
		}
		args[i] = arg
	}
	return args
}
