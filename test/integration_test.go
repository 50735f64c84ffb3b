package test_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/ochairo/smithy/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/smithy/internal/domain-orchestrators"
	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/services"
	"github.com/ochairo/smithy/internal/external-adapters/yaml"
)

// wirePipeline assembles the production gateways against the workspace, the
// same way the CLI does. No test here requests a transformation stage, so
// the tool cache never downloads anything.
func wirePipeline(t *testing.T, ws *workspace) (*orchestrators.PipelineOrchestrator, *gateways.ProjectRepository) {
	t.Helper()

	cfg := yaml.Default()
	cfg.BaseDir = ws.baseDir
	cfg.ToolsDir = ws.toolsDir
	cfg.ReleaseDir = ws.releaseDir
	cfg.LogsDir = ws.logsDir

	obfSpec, err := cfg.ToolSpec(yaml.ToolObfuscator)
	if err != nil {
		t.Fatalf("Failed to resolve obfuscator spec: %v", err)
	}
	deobSpec, err := cfg.ToolSpec(yaml.ToolDeobfuscator)
	if err != nil {
		t.Fatalf("Failed to resolve deobfuscator spec: %v", err)
	}
	decSpec, err := cfg.ToolSpec(yaml.ToolDecompiler)
	if err != nil {
		t.Fatalf("Failed to resolve decompiler spec: %v", err)
	}

	fsys := osfs.New("/")
	runner := gateways.NewCommandRunner(cfg.ToolTimeout.Std(), nil)
	tools := gateways.NewToolCache(cfg.ToolsDir, gateways.NewReleaseResolver(nil), nil, nil)
	injector := gateways.NewGuardInjector(runner, cfg.JavacProgram, nil)

	pipeline := orchestrators.NewPipelineOrchestrator(
		services.NewClassifier(fsys),
		gateways.NewBuildRunner(runner, nil),
		gateways.NewLocator(fsys, gateways.LocatorConfig{}),
		gateways.NewObfuscator(tools, runner, injector, gateways.ObfuscatorConfig{
			JavaProgram:    cfg.JavaProgram,
			Tool:           obfSpec,
			StringToolPath: cfg.StringToolPath,
		}, nil),
		gateways.NewDeobfuscator(tools, runner, cfg.JavaProgram, deobSpec, nil),
		gateways.NewDecompiler(tools, runner, cfg.JavaProgram, decSpec, nil),
		gateways.NewSourceBundler(nil),
		gateways.NewPublisher(nil),
		services.NewDiagnostician(),
		nil,
	)
	return pipeline, gateways.NewProjectRepository(fsys, cfg.BaseDir)
}

func (ws *workspace) pipelineRequest(project *entities.Project, publish bool) *entities.PipelineRequest {
	return &entities.PipelineRequest{
		RunID:           "it-" + project.Name,
		Project:         project,
		Publish:         publish,
		LogPath:         filepath.Join(ws.logsDir, project.Name+".log"),
		ReleaseDir:      ws.releaseDir,
		DeobfuscatedDir: filepath.Join(ws.root, "deobfuscated"),
		DecompiledDir:   filepath.Join(ws.root, "decompiled"),
		BuildTimeout:    2 * time.Minute,
		ToolTimeout:     time.Minute,
	}
}

// TestPipelineEndToEnd drives one fabric project through classify, build,
// artifact lookup and publish using the real gateways.
func TestPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ws := newWorkspace(t)
	ws.addProject(t, "aether", map[string]string{
		"build.gradle":    "",
		"fabric.mod.json": `{"id":"aether"}`,
	})

	pipeline, projects := wirePipeline(t, ws)
	project, err := projects.Resolve("aether")
	if err != nil {
		t.Fatalf("Failed to resolve project: %v", err)
	}
	if project.Type != entities.TypeFabric {
		t.Fatalf("Expected fabric classification, got %s", project.Type)
	}

	report := pipeline.Run(context.Background(), ws.pipelineRequest(project, true))

	if report.State != entities.StatePublished {
		t.Fatalf("Expected published state, got %s (failed stage: %s)", report.State, report.FailedStage)
	}
	if filepath.Base(report.ArtifactPath) != "aether-1.0.jar" {
		t.Errorf("Expected the built jar to be selected, got %s", report.ArtifactPath)
	}
	if strings.Contains(report.ArtifactPath, "sources") {
		t.Errorf("A sources jar must never be selected: %s", report.ArtifactPath)
	}
	if _, err := os.Stat(report.ReleasedPath); err != nil {
		t.Errorf("Expected released artifact at %s: %v", report.ReleasedPath, err)
	}
	if len(report.Stages) != 4 {
		t.Errorf("Expected classify/build/artifact/publish stages, got %d", len(report.Stages))
	}

	logData, err := os.ReadFile(report.LogPath) // #nosec G304 -- log path lives in the test temp dir
	if err != nil {
		t.Fatalf("Expected build log at %s: %v", report.LogPath, err)
	}
	if !strings.Contains(string(logData), "BUILD SUCCESSFUL") {
		t.Errorf("Expected build output in the log, got:\n%s", logData)
	}
}

// TestPipelineDiagnosesFailure checks that a failing build keeps the publish
// stage from running and yields hypotheses from the captured log.
func TestPipelineDiagnosesFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ws := newWorkspace(t)
	ws.addBrokenProject(t, "gorge")

	pipeline, projects := wirePipeline(t, ws)
	project, err := projects.Resolve("gorge")
	if err != nil {
		t.Fatalf("Failed to resolve project: %v", err)
	}

	report := pipeline.Run(context.Background(), ws.pipelineRequest(project, true))

	if report.State != entities.StateFailed || report.FailedStage != entities.StageBuild {
		t.Fatalf("Expected a build failure, got state=%s stage=%s", report.State, report.FailedStage)
	}
	if report.ReleasedPath != "" {
		t.Errorf("A failed project must not publish, got %s", report.ReleasedPath)
	}

	foundMemory := false
	for _, hypothesis := range report.Hypotheses {
		if strings.Contains(hypothesis, "ran out of memory") {
			foundMemory = true
		}
	}
	if !foundMemory {
		t.Errorf("Expected a memory hypothesis, got %v", report.Hypotheses)
	}
}

// TestBatchEndToEnd runs a mixed batch with two workers and checks that one
// failure stays local to its project.
func TestBatchEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ws := newWorkspace(t)
	ws.addProject(t, "aether", map[string]string{
		"build.gradle":    "",
		"fabric.mod.json": `{"id":"aether"}`,
	})
	ws.addMavenProject(t, "bastion")
	ws.addBrokenProject(t, "gorge")

	pipeline, projects := wirePipeline(t, ws)
	all, err := projects.List()
	if err != nil {
		t.Fatalf("Failed to list projects: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 projects, got %d", len(all))
	}

	reqs := make([]*entities.PipelineRequest, 0, len(all))
	for _, project := range all {
		reqs = append(reqs, ws.pipelineRequest(project, false))
	}

	batch := orchestrators.NewBatchOrchestrator(pipeline, 2, nil)
	report := batch.RunAll(context.Background(), reqs)

	if report.Total != 3 {
		t.Errorf("Expected 3 projects in the batch, got %d", report.Total)
	}
	if len(report.Succeeded) != 2 || report.Succeeded[0] != "aether" || report.Succeeded[1] != "bastion" {
		t.Errorf("Expected aether and bastion to succeed, got %v", report.Succeeded)
	}
	if len(report.Failed) != 1 || report.Failed[0] != "gorge" {
		t.Errorf("Expected gorge to fail, got %v", report.Failed)
	}
	for i, project := range all {
		if report.Reports[i].Name != project.Name {
			t.Errorf("Reports[%d] = %s, want %s (input order)", i, report.Reports[i].Name, project.Name)
		}
	}
}
