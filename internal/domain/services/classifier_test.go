package services

import (
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/smithy/internal/domain/entities"
)

const testRoot = "/projects/mod"

func newProjectFS(t *testing.T, files map[string]string, dirs ...string) billy.Filesystem {
	t.Helper()
	fsys := memfs.New()
	for name, content := range files {
		path := filepath.Join(testRoot, name)
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, util.WriteFile(fsys, path, []byte(content), 0644))
	}
	for _, dir := range dirs {
		require.NoError(t, fsys.MkdirAll(filepath.Join(testRoot, dir), 0755))
	}
	return fsys
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		dirs     []string
		expected entities.ProjectType
	}{
		{
			name:     "fabric manifest at root",
			files:    map[string]string{"fabric.mod.json": `{"id":"mod"}`},
			expected: entities.TypeFabric,
		},
		{
			name:     "fabric manifest under resources",
			files:    map[string]string{"src/main/resources/fabric.mod.json": `{"id":"mod"}`},
			expected: entities.TypeFabric,
		},
		{
			name:     "fabric loom marker in build config",
			files:    map[string]string{"build.gradle": `plugins { id 'fabric-loom' version '1.5' }`},
			expected: entities.TypeFabric,
		},
		{
			name:     "fabric marker in kotlin build config",
			files:    map[string]string{"build.gradle.kts": `modImplementation("net.fabricmc:fabric-loader:0.15")`},
			expected: entities.TypeFabric,
		},
		{
			name:     "forge marker in build config",
			files:    map[string]string{"build.gradle": `apply plugin: 'net.minecraftforge.gradle'`},
			expected: entities.TypeForge,
		},
		{
			name:     "forge marker is case-insensitive",
			files:    map[string]string{"build.gradle": `classpath 'net.MinecraftForge.gradle:ForgeGradle:5.1'`},
			expected: entities.TypeForge,
		},
		{
			name:     "forge mods.toml manifest",
			files:    map[string]string{"src/main/resources/META-INF/mods.toml": `modLoader="javafml"`},
			expected: entities.TypeForge,
		},
		{
			name:     "mcp working directory",
			dirs:     []string{"mcp"},
			expected: entities.TypeMCP,
		},
		{
			name:     "mcp joined mapping file",
			files:    map[string]string{"conf/joined.srg": "PK: net/minecraft"},
			expected: entities.TypeMCP,
		},
		{
			name:     "mcp setup script",
			files:    map[string]string{"decompile.sh": "#!/bin/sh"},
			expected: entities.TypeMCP,
		},
		{
			name:     "maven pom",
			files:    map[string]string{"pom.xml": `<project/>`},
			expected: entities.TypeMaven,
		},
		{
			name:     "plain gradle build file",
			files:    map[string]string{"build.gradle": `apply plugin: 'java'`},
			expected: entities.TypeGradle,
		},
		{
			name:     "gradle wrapper only",
			files:    map[string]string{"gradlew": "#!/bin/sh"},
			expected: entities.TypeGradle,
		},
		{
			name:     "empty directory",
			expected: entities.TypeUnknown,
		},
		{
			name: "fabric outranks forge marker",
			files: map[string]string{
				"fabric.mod.json": `{"id":"mod"}`,
				"build.gradle":    `apply plugin: 'net.minecraftforge.gradle'`,
			},
			expected: entities.TypeFabric,
		},
		{
			name: "forge outranks mcp and maven",
			files: map[string]string{
				"build.gradle":    `apply plugin: 'net.minecraftforge.gradle'`,
				"conf/joined.srg": "PK: net/minecraft",
				"pom.xml":         `<project/>`,
			},
			expected: entities.TypeForge,
		},
		{
			name: "mcp outranks maven",
			files: map[string]string{
				"conf/joined.srg": "PK: net/minecraft",
				"pom.xml":         `<project/>`,
			},
			dirs:     []string{"mcp"},
			expected: entities.TypeMCP,
		},
		{
			name: "maven outranks gradle",
			files: map[string]string{
				"pom.xml": `<project/>`,
				"gradlew": "#!/bin/sh",
			},
			expected: entities.TypeMaven,
		},
		{
			name: "plain java gradle config stays gradle",
			files: map[string]string{
				"build.gradle": `dependencies { implementation 'org.slf4j:slf4j-api:2.0' }`,
				"gradlew":      "#!/bin/sh",
			},
			expected: entities.TypeGradle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(newProjectFS(t, tt.files, tt.dirs...))
			assert.Equal(t, tt.expected, c.Classify(testRoot))
		})
	}
}

func TestClassifyMissingRoot(t *testing.T) {
	c := NewClassifier(memfs.New())
	assert.Equal(t, entities.TypeUnknown, c.Classify("/does/not/exist"))
}

func TestPlatformVersion(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		expected string
	}{
		{
			name:     "minecraft_version property",
			files:    map[string]string{"gradle.properties": "minecraft_version=1.20.4\nloader_version=0.15.6\n"},
			expected: "1.20.4",
		},
		{
			name:     "mc_version property",
			files:    map[string]string{"gradle.properties": "mc_version = 1.8.9\n"},
			expected: "1.8.9",
		},
		{
			name:     "whitespace stripped",
			files:    map[string]string{"gradle.properties": "minecraft_version=  1.19.2  \n"},
			expected: "1.19.2",
		},
		{
			name:     "comments and unrelated keys skipped",
			files:    map[string]string{"gradle.properties": "# minecraft_version=9.9.9\nmod_version=2.0\nminecraft_version=1.16.5\n"},
			expected: "1.16.5",
		},
		{
			name: "properties win over manifest",
			files: map[string]string{
				"gradle.properties": "minecraft_version=1.20.1\n",
				"fabric.mod.json":   `{"depends":{"minecraft":"1.18.2"}}`,
			},
			expected: "1.20.1",
		},
		{
			name:     "manifest depends entry",
			files:    map[string]string{"fabric.mod.json": `{"depends":{"minecraft":"1.20.x","fabricloader":">=0.15"}}`},
			expected: "1.20.x",
		},
		{
			name:     "manifest top-level field",
			files:    map[string]string{"fabric.mod.json": `{"minecraft":"1.17.1"}`},
			expected: "1.17.1",
		},
		{
			name:     "manifest version list takes first entry",
			files:    map[string]string{"fabric.mod.json": `{"depends":{"minecraft":["1.19.3","1.19.4"]}}`},
			expected: "1.19.3",
		},
		{
			name:     "malformed manifest falls through",
			files:    map[string]string{"fabric.mod.json": `{"depends":`},
			expected: entities.UnknownVersion,
		},
		{
			name:     "nothing to extract",
			files:    map[string]string{"build.gradle": "apply plugin: 'java'"},
			expected: entities.UnknownVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(newProjectFS(t, tt.files))
			assert.Equal(t, tt.expected, c.PlatformVersion(testRoot))
		})
	}
}
