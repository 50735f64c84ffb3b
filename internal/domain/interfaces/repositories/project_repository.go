// Package repositories defines interfaces for data access layers.
package repositories

import (
	"github.com/ochairo/smithy/internal/domain/entities"
)

// ProjectRepository defines the interface for discovering buildable projects
type ProjectRepository interface {
	// Resolve turns a project name (under the base directory) or an
	// explicit path into a classified Project
	Resolve(nameOrPath string) (*entities.Project, error)

	// List returns every project directory under the base directory,
	// classified, in name order
	List() ([]*entities.Project, error)
}
