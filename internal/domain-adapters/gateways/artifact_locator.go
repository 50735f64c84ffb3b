package gateways

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/ochairo/smithy/internal/domain/entities"
)

// LocatorFilter is one step of a locator chain. A candidate matches when
// its name contains any Include substring (or Include is empty) and none of
// the Exclude substrings. Matching is case-insensitive on the base name.
type LocatorFilter struct {
	Include []string
	Exclude []string
}

// LocatorChain is the ordered search strategy for one project type: which
// build-output directories to walk and which filters to try, in order.
type LocatorChain struct {
	Dirs    []string
	Filters []LocatorFilter
}

// DefaultExtensions are the binary-archive extensions considered candidates.
var DefaultExtensions = []string{".jar"}

// DefaultChains returns the built-in per-type search chains. Every filter
// excludes "sources" so a sources jar can never be selected for any type.
// The forge fallback order (reobf, then jarjar, then any non-sources jar)
// is deliberately data, not code: override it from configuration when the
// toolchain's output conventions differ.
func DefaultChains() map[entities.ProjectType]LocatorChain {
	anyBuiltJar := LocatorFilter{Exclude: []string{"dev", "sources"}}
	return map[entities.ProjectType]LocatorChain{
		entities.TypeFabric: {
			Dirs: []string{"build/libs"},
			Filters: []LocatorFilter{
				{Include: []string{"remapped", "mapped"}, Exclude: []string{"sources"}},
				anyBuiltJar,
			},
		},
		entities.TypeForge: {
			Dirs: []string{"build/libs"},
			Filters: []LocatorFilter{
				{Include: []string{"reobf"}, Exclude: []string{"sources"}},
				{Include: []string{"jarjar"}, Exclude: []string{"sources"}},
				{Exclude: []string{"sources"}},
			},
		},
		entities.TypeMCP: {
			Dirs:    []string{"reobf", "build/libs"},
			Filters: []LocatorFilter{anyBuiltJar},
		},
		entities.TypeMaven: {
			Dirs:    []string{"target"},
			Filters: []LocatorFilter{anyBuiltJar},
		},
	}
}

// DefaultFallbackChain covers project types without a dedicated chain.
func DefaultFallbackChain() LocatorChain {
	return LocatorChain{
		Dirs:    []string{"build/libs", "target"},
		Filters: []LocatorFilter{{Exclude: []string{"dev", "sources"}}},
	}
}

// LocatorConfig overrides parts of the built-in search strategy.
// Zero-value fields keep the defaults.
type LocatorConfig struct {
	Extensions []string
	Chains     map[entities.ProjectType]LocatorChain
	Fallback   *LocatorChain
}

// Locator finds the single final build output of a project. It is a pure
// read-only query; "nothing found" is an expected outcome reported as a nil
// artifact, never an error.
type Locator struct {
	fs         billy.Filesystem
	extensions []string
	chains     map[entities.ProjectType]LocatorChain
	fallback   LocatorChain
}

// NewLocator creates a locator over the given filesystem with the built-in
// chains, overridden per type by cfg.
func NewLocator(fsys billy.Filesystem, cfg LocatorConfig) *Locator {
	chains := DefaultChains()
	for projectType, chain := range cfg.Chains {
		chains[projectType] = chain
	}
	fallback := DefaultFallbackChain()
	if cfg.Fallback != nil {
		fallback = *cfg.Fallback
	}
	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Locator{
		fs:         fsys,
		extensions: extensions,
		chains:     chains,
		fallback:   fallback,
	}
}

// Find returns the best artifact for the project, or nil when no candidate
// matches any filter. The first filter yielding any match wins and matches
// are never merged across filters; ties within a filter break on the
// deterministic (sorted) traversal order.
func (l *Locator) Find(root string, projectType entities.ProjectType) (*entities.Artifact, error) {
	chain, ok := l.chains[projectType]
	if !ok {
		chain = l.fallback
	}

	candidates, err := l.collect(root, chain.Dirs)
	if err != nil {
		return nil, err
	}

	for _, filter := range chain.Filters {
		for _, c := range candidates {
			if filter.matches(c.name) {
				return &entities.Artifact{Path: c.path, Size: c.size}, nil
			}
		}
	}
	return nil, nil
}

type candidate struct {
	path string
	name string
	size int64
}

// collect walks the chain's directories in order, gathering archive files.
// Each directory's results are sorted by path so traversal order never
// depends on filesystem internals. Missing directories are a normal
// negative signal.
func (l *Locator) collect(root string, dirs []string) ([]candidate, error) {
	var all []candidate
	for _, dir := range dirs {
		searchRoot := filepath.Join(root, dir)
		var found []candidate
		err := util.Walk(l.fs, searchRoot, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if info.IsDir() || !l.isArchive(info.Name()) {
				return nil
			}
			found = append(found, candidate{
				path: path,
				name: strings.ToLower(info.Name()),
				size: info.Size(),
			})
			return nil
		})
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to scan %s: %w", searchRoot, err)
		}
		sort.Slice(found, func(i, j int) bool { return found[i].path < found[j].path })
		all = append(all, found...)
	}
	return all, nil
}

func (l *Locator) isArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range l.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (f LocatorFilter) matches(lowerName string) bool {
	if len(f.Include) > 0 && !containsAny(lowerName, f.Include) {
		return false
	}
	return !containsAny(lowerName, f.Exclude)
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}
