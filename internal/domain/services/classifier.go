// Package services contains the pure domain logic: project classification
// and build-log diagnosis. Both are read-only rule-table scans with no side
// effects, so they stay independently testable and extensible.
package services

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/ochairo/smithy/internal/domain/entities"
)

// buildConfigFiles are the build-config files scanned for marker substrings.
var buildConfigFiles = []string{"build.gradle", "build.gradle.kts"}

// fabricManifests are the places a Fabric mod manifest may live.
var fabricManifests = []string{"fabric.mod.json", "src/main/resources/fabric.mod.json"}

// typeRule describes the markers that identify one project type.
type typeRule struct {
	projectType    entities.ProjectType
	markerFiles    []string
	markerDirs     []string
	configContains []string
}

// typeRules in priority order; first match wins. Loader-specific markers
// must outrank the generic build files they sit next to, so fabric and
// forge are checked before plain gradle.
var typeRules = []typeRule{
	{
		projectType:    entities.TypeFabric,
		markerFiles:    fabricManifests,
		configContains: []string{"fabric-loom", "net.fabricmc"},
	},
	{
		projectType:    entities.TypeForge,
		markerFiles:    []string{"META-INF/mods.toml", "src/main/resources/META-INF/mods.toml"},
		configContains: []string{"minecraftforge", "forgegradle"},
	},
	{
		projectType: entities.TypeMCP,
		markerDirs:  []string{"mcp"},
		markerFiles: []string{"conf/joined.srg", "decompile.sh", "decompile.bat"},
	},
	{
		projectType: entities.TypeMaven,
		markerFiles: []string{"pom.xml"},
	},
	{
		projectType: entities.TypeGradle,
		markerFiles: []string{
			"build.gradle", "build.gradle.kts",
			"settings.gradle", "settings.gradle.kts",
			"gradlew", "gradlew.bat",
		},
	},
}

// versionKeys are the properties-file keys carrying the target platform version.
var versionKeys = []string{"minecraft_version", "mc_version"}

// Classifier infers a project's build ecosystem from marker files and
// config snippets. All checks are read-only; a missing file is a normal
// negative signal, never an error.
type Classifier struct {
	fs billy.Filesystem
}

// NewClassifier creates a classifier over the given filesystem.
func NewClassifier(fsys billy.Filesystem) *Classifier {
	return &Classifier{fs: fsys}
}

// Classify returns the project type for the directory at root.
// Rules are evaluated in priority order and the first match wins.
func (c *Classifier) Classify(root string) entities.ProjectType {
	for _, rule := range typeRules {
		if c.ruleMatches(root, rule) {
			return rule.projectType
		}
	}
	return entities.TypeUnknown
}

func (c *Classifier) ruleMatches(root string, rule typeRule) bool {
	for _, name := range rule.markerFiles {
		if c.exists(filepath.Join(root, name)) {
			return true
		}
	}
	for _, name := range rule.markerDirs {
		if c.isDir(filepath.Join(root, name)) {
			return true
		}
	}
	if len(rule.configContains) == 0 {
		return false
	}
	for _, cfg := range buildConfigFiles {
		content, ok := c.readLower(filepath.Join(root, cfg))
		if !ok {
			continue
		}
		for _, marker := range rule.configContains {
			if strings.Contains(content, marker) {
				return true
			}
		}
	}
	return false
}

// PlatformVersion extracts the target platform version for the project:
// a minecraft_version/mc_version key in gradle.properties wins, then the
// minecraft field of the Fabric manifest, otherwise UnknownVersion.
func (c *Classifier) PlatformVersion(root string) string {
	if v := c.versionFromProperties(filepath.Join(root, "gradle.properties")); v != "" {
		return v
	}
	for _, name := range fabricManifests {
		if v := c.versionFromManifest(filepath.Join(root, name)); v != "" {
			return v
		}
	}
	return entities.UnknownVersion
}

func (c *Classifier) versionFromProperties(path string) string {
	data, err := util.ReadFile(c.fs, path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		for _, want := range versionKeys {
			if key != want {
				continue
			}
			if v := strings.TrimSpace(value); v != "" {
				return v
			}
		}
	}
	return ""
}

// fabricManifest holds the two places fabric.mod.json states the target
// version; the depends entry is the documented location, a top-level field
// appears in older manifests.
type fabricManifest struct {
	Minecraft json.RawMessage            `json:"minecraft"`
	Depends   map[string]json.RawMessage `json:"depends"`
}

func (c *Classifier) versionFromManifest(path string) string {
	data, err := util.ReadFile(c.fs, path)
	if err != nil {
		return ""
	}
	var m fabricManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	if v := versionValue(m.Minecraft); v != "" {
		return v
	}
	if raw, ok := m.Depends["minecraft"]; ok {
		return versionValue(raw)
	}
	return ""
}

// versionValue accepts the string and string-list forms the manifest allows.
func versionValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	return ""
}

func (c *Classifier) exists(path string) bool {
	_, err := c.fs.Stat(path)
	return err == nil
}

func (c *Classifier) isDir(path string) bool {
	info, err := c.fs.Stat(path)
	return err == nil && info.IsDir()
}

func (c *Classifier) readLower(path string) (string, bool) {
	data, err := util.ReadFile(c.fs, path)
	if err != nil {
		return "", false
	}
	return strings.ToLower(string(data)), true
}
