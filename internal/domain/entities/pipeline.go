package entities

import "time"

// Stage names one step of the transformation pipeline.
type Stage string

// Pipeline stages. Build, artifact lookup and publish always run;
// the transformation stages run only when a request asks for them.
const (
	StageClassify    Stage = "classify"
	StageBuild       Stage = "build"
	StageArtifact    Stage = "artifact"
	StageObfuscate   Stage = "obfuscate"
	StageDeobfuscate Stage = "deobfuscate"
	StageDecompile   Stage = "decompile"
	StagePublish     Stage = "publish"
)

// PipelineState is the lifecycle position of one project within a run.
type PipelineState string

// Pipeline states in transition order. StateFailed is reachable from any
// state; the failed stage is recorded next to it.
const (
	StateClassified    PipelineState = "classified"
	StateBuilt         PipelineState = "built"
	StateArtifactFound PipelineState = "artifact_found"
	StateObfuscated    PipelineState = "obfuscated"
	StateDeobfuscated  PipelineState = "deobfuscated"
	StateDecompiled    PipelineState = "decompiled"
	StatePublished     PipelineState = "published"
	StateFailed        PipelineState = "failed"
)

// StageResult is the typed outcome of one stage for one project.
// Partial success (an optional step failed but the artifact is still
// usable) is representable through Warnings on a successful result.
type StageResult struct {
	Stage        Stage         `json:"stage"`
	Success      bool          `json:"success"`
	ArtifactPath string        `json:"artifact_path,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// PipelineRequest is a fully-resolved pipeline invocation for one project.
//
// All choices that the run needs (requested stages, transformer set,
// output directories, timeouts) are settled before any stage executes;
// stages are functions of this value plus filesystem state.
type PipelineRequest struct {
	RunID   string
	Project *Project

	// Stages requested beyond build+artifact lookup, in execution order.
	Stages []Stage
	// Hardened switches the obfuscate stage to the advanced flow.
	Hardened bool
	// Transformers for the deobfuscate stage; empty means every known one.
	Transformers []string
	// Publish copies the final artifact to ReleaseDir (and SharedDir).
	Publish bool
	// BundleSources archives the decompile output directory.
	BundleSources bool

	LogPath         string
	ReleaseDir      string
	SharedDir       string
	DeobfuscatedDir string
	DecompiledDir   string

	BuildTimeout time.Duration
	ToolTimeout  time.Duration
}

// ProjectReport is the outcome of one project's pipeline run.
type ProjectReport struct {
	RunID           string        `json:"run_id"`
	Name            string        `json:"name"`
	Root            string        `json:"root"`
	Type            ProjectType   `json:"type"`
	PlatformVersion string        `json:"platform_version"`
	State           PipelineState `json:"state"`
	FailedStage     Stage         `json:"failed_stage,omitempty"`
	Stages          []StageResult `json:"stages"`
	Hypotheses      []string      `json:"hypotheses,omitempty"`
	ArtifactPath    string        `json:"artifact_path,omitempty"`
	ReleasedPath    string        `json:"released_path,omitempty"`
	LogPath         string        `json:"log_path,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Succeeded reports whether the project finished without a failed stage.
func (r *ProjectReport) Succeeded() bool {
	return r.State != StateFailed
}

// BatchReport partitions a multi-project run into succeeded and failed
// name lists. One project's failure never aborts the batch, so the
// partition always covers every requested project.
type BatchReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Total       int              `json:"total"`
	Succeeded   []string         `json:"succeeded"`
	Failed      []string         `json:"failed"`
	Reports     []*ProjectReport `json:"reports"`
	Duration    time.Duration    `json:"duration"`
}

// DirectoryReport aggregates a per-file batch (directory deobfuscation):
// which archives succeeded and which failed, in processing order.
type DirectoryReport struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// PublishOutcome records where an artifact was published. SharedError is
// non-empty when the best-effort copy to shared storage failed; that is a
// warning, never a stage failure.
type PublishOutcome struct {
	ReleasedPath string `json:"released_path"`
	SharedPath   string `json:"shared_path,omitempty"`
	SharedError  string `json:"shared_error,omitempty"`
}
