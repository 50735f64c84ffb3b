// Package orchestrators coordinates the multi-stage build pipeline across
// domain services and gateways.
package orchestrators

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// Classifier infers a project's build ecosystem and platform version.
type Classifier interface {
	Classify(root string) entities.ProjectType
	PlatformVersion(root string) string
}

// Builder invokes the project's build tool.
type Builder interface {
	Build(ctx context.Context, project *entities.Project, logPath string, timeout time.Duration) (*entities.BuildAttempt, error)
}

// ArtifactFinder locates the best build output for a project type.
type ArtifactFinder interface {
	Find(root string, projectType entities.ProjectType) (*entities.Artifact, error)
}

// Obfuscator runs the basic and hardened obfuscation flows.
type Obfuscator interface {
	Obfuscate(ctx context.Context, jarPath string, timeout time.Duration) (string, error)
	Harden(ctx context.Context, jarPath string, timeout time.Duration) (string, []string, error)
}

// Deobfuscator reverses obfuscation on one archive.
type Deobfuscator interface {
	Deobfuscate(ctx context.Context, jarPath, outDir string, transformers []string, timeout time.Duration) (string, error)
}

// Decompiler emits source files for one archive.
type Decompiler interface {
	Decompile(ctx context.Context, jarPath, outRoot string, timeout time.Duration) (string, error)
}

// SourceBundler archives a decompiled source tree.
type SourceBundler interface {
	Bundle(srcDir string) (string, error)
}

// Publisher copies the final artifact to release and shared storage.
type Publisher interface {
	Publish(artifactPath, releaseDir, sharedDir string) (*entities.PublishOutcome, error)
}

// Diagnostician maps build log text to failure hypotheses.
type Diagnostician interface {
	Diagnose(logText string) []string
}

// PipelineOrchestrator drives one project through the staged pipeline:
// classify → build → locate artifact → requested transformations → publish.
// Every failure is recorded in the report, never raised; one project's
// outcome must stay local to that project.
type PipelineOrchestrator struct {
	classifier    Classifier
	builder       Builder
	locator       ArtifactFinder
	obfuscator    Obfuscator
	deobfuscator  Deobfuscator
	decompiler    Decompiler
	bundler       SourceBundler
	publisher     Publisher
	diagnostician Diagnostician
	log           interfaces.Logger
}

// NewPipelineOrchestrator creates a pipeline orchestrator.
func NewPipelineOrchestrator(
	classifier Classifier,
	builder Builder,
	locator ArtifactFinder,
	obfuscator Obfuscator,
	deobfuscator Deobfuscator,
	decompiler Decompiler,
	bundler SourceBundler,
	publisher Publisher,
	diagnostician Diagnostician,
	log interfaces.Logger,
) *PipelineOrchestrator {
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &PipelineOrchestrator{
		classifier:    classifier,
		builder:       builder,
		locator:       locator,
		obfuscator:    obfuscator,
		deobfuscator:  deobfuscator,
		decompiler:    decompiler,
		bundler:       bundler,
		publisher:     publisher,
		diagnostician: diagnostician,
		log:           log,
	}
}

// Run executes the pipeline for one fully-resolved request. The returned
// report carries every stage outcome; a failed stage halts the remaining
// pipeline for this project and is never retried within the run.
func (o *PipelineOrchestrator) Run(ctx context.Context, req *entities.PipelineRequest) *entities.ProjectReport {
	start := time.Now()
	project := req.Project
	report := &entities.ProjectReport{
		RunID:   req.RunID,
		Name:    project.Name,
		Root:    project.Root,
		LogPath: req.LogPath,
	}

	// Step 1: classify. Re-derived every run; files may have changed since
	// the project was last seen.
	stageStart := time.Now()
	project.Type = o.classifier.Classify(project.Root)
	project.PlatformVersion = o.classifier.PlatformVersion(project.Root)
	report.Type = project.Type
	report.PlatformVersion = project.PlatformVersion
	report.State = entities.StateClassified
	report.Stages = append(report.Stages, entities.StageResult{
		Stage:    entities.StageClassify,
		Success:  true,
		Detail:   fmt.Sprintf("%s (platform %s)", project.Type, project.PlatformVersion),
		Duration: time.Since(stageStart),
	})

	// Step 2: build. A non-zero exit triggers the diagnosis pass over the
	// captured log before the project is marked failed.
	stageStart = time.Now()
	attempt, err := o.builder.Build(ctx, project, req.LogPath, req.BuildTimeout)
	if err != nil {
		return o.fail(report, entities.StageBuild, err.Error(), stageStart, start)
	}
	if !attempt.Succeeded() {
		report.Hypotheses = o.diagnose(req.LogPath)
		detail := fmt.Sprintf("build failed with exit code %d (see %s)", attempt.ExitCode, req.LogPath)
		if attempt.TimedOut {
			detail = fmt.Sprintf("build timed out after %s (see %s)", req.BuildTimeout, req.LogPath)
		}
		return o.fail(report, entities.StageBuild, detail, stageStart, start)
	}
	report.State = entities.StateBuilt
	report.Stages = append(report.Stages, entities.StageResult{
		Stage:    entities.StageBuild,
		Success:  true,
		Duration: attempt.Duration,
	})

	// Step 3: locate the artifact. nil is an expected outcome with a
	// user-actionable hint, not a crash.
	stageStart = time.Now()
	artifact, err := o.locator.Find(project.Root, project.Type)
	if err != nil {
		return o.fail(report, entities.StageArtifact, err.Error(), stageStart, start)
	}
	if artifact == nil {
		detail := fmt.Sprintf("no build artifact found under %s; run the build first", project.Root)
		return o.fail(report, entities.StageArtifact, detail, stageStart, start)
	}
	current := artifact.Path
	report.ArtifactPath = current
	report.State = entities.StateArtifactFound
	report.Stages = append(report.Stages, entities.StageResult{
		Stage:        entities.StageArtifact,
		Success:      true,
		ArtifactPath: current,
		Duration:     time.Since(stageStart),
	})

	// Step 4: requested transformation stages, chained on the last good
	// artifact.
	for _, stage := range req.Stages {
		next, ok := o.runStage(ctx, stage, current, req, report, start)
		if !ok {
			return report
		}
		current = next
	}
	report.ArtifactPath = current

	// Step 5: publish.
	if req.Publish {
		stageStart = time.Now()
		outcome, err := o.publisher.Publish(current, req.ReleaseDir, req.SharedDir)
		if err != nil {
			return o.fail(report, entities.StagePublish, err.Error(), stageStart, start)
		}
		result := entities.StageResult{
			Stage:        entities.StagePublish,
			Success:      true,
			ArtifactPath: outcome.ReleasedPath,
			Duration:     time.Since(stageStart),
		}
		if outcome.SharedError != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("shared copy failed: %s", outcome.SharedError))
		}
		report.ReleasedPath = outcome.ReleasedPath
		report.State = entities.StatePublished
		report.Stages = append(report.Stages, result)
	}

	report.Duration = time.Since(start)
	o.log.Info("pipeline finished",
		interfaces.F("project", report.Name),
		interfaces.F("state", string(report.State)),
		interfaces.F("artifact", report.ArtifactPath))
	return report
}

// runStage executes one requested transformation stage on the current
// artifact. It returns the artifact to carry forward and whether the
// pipeline may continue.
func (o *PipelineOrchestrator) runStage(
	ctx context.Context,
	stage entities.Stage,
	current string,
	req *entities.PipelineRequest,
	report *entities.ProjectReport,
	runStart time.Time,
) (string, bool) {
	stageStart := time.Now()

	switch stage {
	case entities.StageObfuscate:
		var (
			out      string
			warnings []string
			err      error
		)
		if req.Hardened {
			out, warnings, err = o.obfuscator.Harden(ctx, current, req.ToolTimeout)
		} else {
			out, err = o.obfuscator.Obfuscate(ctx, current, req.ToolTimeout)
		}
		if err != nil {
			o.fail(report, stage, err.Error(), stageStart, runStart)
			return "", false
		}
		report.State = entities.StateObfuscated
		report.Stages = append(report.Stages, entities.StageResult{
			Stage:        stage,
			Success:      true,
			ArtifactPath: out,
			Warnings:     warnings,
			Duration:     time.Since(stageStart),
		})
		return out, true

	case entities.StageDeobfuscate:
		out, err := o.deobfuscator.Deobfuscate(ctx, current, req.DeobfuscatedDir, req.Transformers, req.ToolTimeout)
		if err != nil {
			o.fail(report, stage, err.Error(), stageStart, runStart)
			return "", false
		}
		report.State = entities.StateDeobfuscated
		report.Stages = append(report.Stages, entities.StageResult{
			Stage:        stage,
			Success:      true,
			ArtifactPath: out,
			Duration:     time.Since(stageStart),
		})
		return out, true

	case entities.StageDecompile:
		outDir, err := o.decompiler.Decompile(ctx, current, req.DecompiledDir, req.ToolTimeout)
		if err != nil {
			o.fail(report, stage, err.Error(), stageStart, runStart)
			return "", false
		}
		result := entities.StageResult{
			Stage:        stage,
			Success:      true,
			ArtifactPath: outDir,
			Duration:     time.Since(stageStart),
		}
		if req.BundleSources {
			tarball, bundleErr := o.bundler.Bundle(outDir)
			if bundleErr != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("source bundling failed: %v", bundleErr))
			} else {
				result.Detail = fmt.Sprintf("bundled to %s", tarball)
			}
		}
		report.State = entities.StateDecompiled
		report.Stages = append(report.Stages, result)
		// Decompiled sources land in their own directory; the archive
		// carries forward to publish.
		return current, true

	default:
		o.fail(report, stage, fmt.Sprintf("stage %s cannot be requested", stage), stageStart, runStart)
		return "", false
	}
}

// diagnose reads the build log and runs the diagnostician over it. An
// unreadable log yields no hypotheses.
func (o *PipelineOrchestrator) diagnose(logPath string) []string {
	//nolint:gosec // G304: logPath is the run's own log file
	data, err := os.ReadFile(logPath)
	if err != nil {
		return nil
	}
	return o.diagnostician.Diagnose(string(data))
}

func (o *PipelineOrchestrator) fail(
	report *entities.ProjectReport,
	stage entities.Stage,
	detail string,
	stageStart, runStart time.Time,
) *entities.ProjectReport {
	o.log.Error("stage failed",
		interfaces.F("project", report.Name),
		interfaces.F("stage", string(stage)),
		interfaces.F("detail", detail))
	report.Stages = append(report.Stages, entities.StageResult{
		Stage:    stage,
		Success:  false,
		Detail:   detail,
		Duration: time.Since(stageStart),
	})
	report.State = entities.StateFailed
	report.FailedStage = stage
	report.Duration = time.Since(runStart)
	return report
}
