package entities

// ProjectType identifies the build ecosystem of a project directory.
// The value drives both build-task selection and artifact-search strategy.
type ProjectType string

// Supported project types, in classification priority order.
const (
	TypeFabric  ProjectType = "fabric"
	TypeForge   ProjectType = "forge"
	TypeMCP     ProjectType = "mcp"
	TypeMaven   ProjectType = "maven"
	TypeGradle  ProjectType = "gradle"
	TypeUnknown ProjectType = "unknown"
)

// AllProjectTypes lists every classifiable type in priority order.
func AllProjectTypes() []ProjectType {
	return []ProjectType{TypeFabric, TypeForge, TypeMCP, TypeMaven, TypeGradle, TypeUnknown}
}

// GradleBased reports whether the type builds through Gradle rather than Maven.
func (t ProjectType) GradleBased() bool {
	switch t {
	case TypeFabric, TypeForge, TypeMCP, TypeGradle:
		return true
	default:
		return false
	}
}

// UnknownVersion is reported when no target-platform version can be extracted.
const UnknownVersion = "unknown"

// Project is one buildable unit: a directory under the base path.
//
// Type and PlatformVersion are re-derived on demand by the classifier and
// never cached across pipeline runs; files may change between stages.
type Project struct {
	Name            string      `json:"name"`
	Root            string      `json:"root"`
	Type            ProjectType `json:"type"`
	PlatformVersion string      `json:"platform_version"`
}
