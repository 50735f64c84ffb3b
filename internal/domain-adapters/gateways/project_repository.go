package gateways

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/services"
)

// ProjectRepository enumerates and resolves project directories under the
// configured base directory. Classification happens at read time so the
// repository always reflects the current on-disk state.
type ProjectRepository struct {
	fs         billy.Filesystem
	baseDir    string
	classifier *services.Classifier
}

// NewProjectRepository creates a repository rooted at baseDir.
func NewProjectRepository(fsys billy.Filesystem, baseDir string) *ProjectRepository {
	return &ProjectRepository{
		fs:         fsys,
		baseDir:    baseDir,
		classifier: services.NewClassifier(fsys),
	}
}

// BaseDir returns the directory projects are resolved against.
func (r *ProjectRepository) BaseDir() string {
	return r.baseDir
}

// Resolve maps a project name or path to a classified Project. Names are
// looked up under the base directory; anything containing a path separator
// is treated as a direct path.
func (r *ProjectRepository) Resolve(nameOrPath string) (*entities.Project, error) {
	if nameOrPath == "" {
		return nil, fmt.Errorf("project name is required")
	}

	root := nameOrPath
	if !strings.ContainsRune(nameOrPath, os.PathSeparator) {
		root = r.fs.Join(r.baseDir, nameOrPath)
	}

	info, err := r.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project %s not found under %s; clone it first (smithy clone) or check the configured base directory", nameOrPath, r.baseDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", root)
	}

	return r.describe(baseName(root), root), nil
}

// List returns every project directory under the base dir, classified and
// sorted by name. Regular files in the base dir are skipped.
func (r *ProjectRepository) List() ([]*entities.Project, error) {
	infos, err := r.fs.ReadDir(r.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read base directory %s: %w", r.baseDir, err)
	}

	projects := make([]*entities.Project, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		projects = append(projects, r.describe(info.Name(), r.fs.Join(r.baseDir, info.Name())))
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

func (r *ProjectRepository) describe(name, root string) *entities.Project {
	return &entities.Project{
		Name:            name,
		Root:            root,
		Type:            r.classifier.Classify(root),
		PlatformVersion: r.classifier.PlatformVersion(root),
	}
}

// baseName is filepath.Base over slash-or-OS-separated paths; billy joins
// with the OS separator but tests may feed slash paths on any platform.
func baseName(path string) string {
	trimmed := strings.TrimRight(path, "/"+string(os.PathSeparator))
	if trimmed == "" {
		return path
	}
	idx := strings.LastIndexAny(trimmed, "/"+string(os.PathSeparator))
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}
