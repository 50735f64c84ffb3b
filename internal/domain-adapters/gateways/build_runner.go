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

// gradleFlags keep every Gradle invocation non-interactive and daemon-free.
var gradleFlags = []string{"--no-daemon", "--console=plain"}

// BuildRunner selects and invokes the build tool for a classified project.
// Combined output is captured verbatim to the attempt's log file; the exit
// code is the sole success signal.
type BuildRunner struct {
	runner *CommandRunner
	log    interfaces.Logger
}

// NewBuildRunner creates a build runner on top of the command runner.
func NewBuildRunner(runner *CommandRunner, log interfaces.Logger) *BuildRunner {
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &BuildRunner{runner: runner, log: log}
}

// Build runs the type-appropriate build task chain:
//   - fabric: the remap task when the task listing exposes it, else build
//   - forge: build, followed by the re-obfuscation task when exposed
//   - maven: package
//   - anything else gradle-based: build
//
// The returned attempt describes the decisive invocation (the first failing
// one, or the last on success); the log file carries every invocation.
func (b *BuildRunner) Build(ctx context.Context, project *entities.Project, logPath string, timeout time.Duration) (*entities.BuildAttempt, error) {
	switch {
	case project.Type == entities.TypeMaven:
		return b.runMaven(ctx, project, logPath, timeout)
	case project.Type.GradleBased():
		return b.runGradle(ctx, project, logPath, timeout)
	default:
		return nil, fmt.Errorf(
			"project %s has no recognizable build configuration; add a build.gradle or pom.xml and rerun",
			project.Name)
	}
}

func (b *BuildRunner) runGradle(ctx context.Context, project *entities.Project, logPath string, timeout time.Duration) (*entities.BuildAttempt, error) {
	program := gradleProgram(project.Root)

	task := "build"
	followUp := ""
	switch project.Type {
	case entities.TypeFabric:
		if b.taskAvailable(ctx, program, project.Root, "remapJar", timeout) {
			task = "remapJar"
		}
	case entities.TypeForge:
		if b.taskAvailable(ctx, program, project.Root, "reobfJar", timeout) {
			followUp = "reobfJar"
		}
	}

	b.log.Info("building project",
		interfaces.F("project", project.Name),
		interfaces.F("type", string(project.Type)),
		interfaces.F("task", task))

	attempt, err := b.invoke(ctx, program, task, project.Root, logPath, timeout)
	if err != nil {
		return nil, err
	}
	if !attempt.Succeeded() || followUp == "" {
		return attempt, nil
	}

	b.log.Info("running follow-up task",
		interfaces.F("project", project.Name),
		interfaces.F("task", followUp))
	return b.invoke(ctx, program, followUp, project.Root, logPath, timeout)
}

func (b *BuildRunner) runMaven(ctx context.Context, project *entities.Project, logPath string, timeout time.Duration) (*entities.BuildAttempt, error) {
	program := "mvn"
	if fileExists(filepath.Join(project.Root, "mvnw")) {
		program = "./mvnw"
	}

	b.log.Info("building project",
		interfaces.F("project", project.Name),
		interfaces.F("type", string(project.Type)),
		interfaces.F("task", "package"))

	argv := []string{program, "-B", "package"}
	result, err := b.runner.Run(ctx, Command{
		Program: program,
		Args:    []string{"-B", "package"},
		Dir:     project.Root,
		Timeout: timeout,
		LogPath: logPath,
	})
	if err != nil {
		return nil, err
	}
	return attemptFrom(argv, logPath, result), nil
}

func (b *BuildRunner) invoke(ctx context.Context, program, task, dir, logPath string, timeout time.Duration) (*entities.BuildAttempt, error) {
	args := append([]string{task}, gradleFlags...)
	result, err := b.runner.Run(ctx, Command{
		Program: program,
		Args:    args,
		Dir:     dir,
		Timeout: timeout,
		LogPath: logPath,
	})
	if err != nil {
		return nil, err
	}
	return attemptFrom(append([]string{program}, args...), logPath, result), nil
}

// taskAvailable probes the build tool's task listing for a named task.
// The probe is a query: its output never reaches the build log, and any
// probe failure just means the default task is used.
func (b *BuildRunner) taskAvailable(ctx context.Context, program, dir, task string, timeout time.Duration) bool {
	result, err := b.runner.Run(ctx, Command{
		Program: program,
		Args:    append([]string{"tasks", "--all"}, gradleFlags...),
		Dir:     dir,
		Timeout: timeout,
	})
	if err != nil || !result.Success {
		b.log.Debug("task listing unavailable, using default task",
			interfaces.F("dir", dir),
			interfaces.F("task", task))
		return false
	}
	for _, line := range strings.Split(result.Output, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == task {
			return true
		}
	}
	return false
}

func attemptFrom(argv []string, logPath string, result *RunResult) *entities.BuildAttempt {
	return &entities.BuildAttempt{
		Command:  argv,
		LogPath:  logPath,
		ExitCode: result.ExitCode,
		TimedOut: result.TimedOut,
		Duration: result.Duration,
	}
}

func gradleProgram(root string) string {
	if fileExists(filepath.Join(root, "gradlew")) {
		return "./gradlew"
	}
	return "gradle"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
