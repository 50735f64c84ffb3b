// Package entities defines core domain models and data structures.
package entities

// Artifact is a single binary build output.
//
// A nil *Artifact is the normal "nothing built yet" outcome of a locator
// query, not an error. When present, the path is the single best candidate
// for its project type per the configured filter chain.
type Artifact struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}
