// Package gateways contains the side-effecting adapters: subprocess
// execution, artifact discovery, tool acquisition and the pipeline stage
// wrappers around external tool CLIs.
package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// Command describes one external tool invocation.
type Command struct {
	Program string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
	// LogPath, when set, receives the combined stdout+stderr verbatim.
	// The file is opened in append mode so multi-invocation stages share
	// one log.
	LogPath string
}

// RunResult contains the outcome of one invocation. The exit code is the
// sole success signal; output is never interpreted here.
type RunResult struct {
	Success  bool
	ExitCode int
	Output   string
	Duration time.Duration
	TimedOut bool
	Err      error
}

// Tail returns the last n bytes of the combined output, for error details.
func (r *RunResult) Tail(n int) string {
	out := strings.TrimSpace(r.Output)
	if len(out) <= n {
		return out
	}
	return "..." + out[len(out)-n:]
}

// CommandRunner executes external tools with a bounded runtime and
// verbatim combined-output capture.
type CommandRunner struct {
	defaultTimeout time.Duration
	log            interfaces.Logger
}

// NewCommandRunner creates a command runner. The default timeout applies
// whenever a command does not carry its own.
func NewCommandRunner(defaultTimeout time.Duration, log interfaces.Logger) *CommandRunner {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Minute
	}
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &CommandRunner{
		defaultTimeout: defaultTimeout,
		log:            log,
	}
}

// Run executes the command to completion. The returned error covers
// invocation problems (unwritable log file); process failures are reported
// through the result so callers can surface exit codes and log paths.
func (r *CommandRunner) Run(ctx context.Context, command Command) (*RunResult, error) {
	timeout := command.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: argv comes from the resolved pipeline request
	cmd := exec.CommandContext(execCtx, command.Program, command.Args...)
	if command.Dir != "" {
		cmd.Dir = command.Dir
	}

	env := os.Environ()
	for key, value := range command.Env {
		env = append(env, key+"="+value)
	}
	cmd.Env = env

	var combined bytes.Buffer
	var sink io.Writer = &combined
	if command.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(command.LogPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		//nolint:gosec // G304: log path comes from the resolved pipeline request
		logFile, err := os.OpenFile(command.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		//nolint:errcheck // Defer close on log file
		defer logFile.Close()
		sink = io.MultiWriter(&combined, logFile)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	r.log.Debug("running command",
		interfaces.F("program", command.Program),
		interfaces.F("args", strings.Join(command.Args, " ")),
		interfaces.F("dir", command.Dir))

	start := time.Now()
	err := cmd.Run()

	result := &RunResult{
		Duration: time.Since(start),
		Output:   combined.String(),
	}

	if err != nil {
		result.Err = err
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		if execCtx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.Err = fmt.Errorf("command timed out after %v", timeout)
		}
		return result, nil
	}

	result.Success = true
	return result, nil
}
