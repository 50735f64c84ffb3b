// Package yaml loads and persists the smithy configuration file.
package yaml

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/services"
)

// Canonical names of the shipped external tools, used as keys in the
// tools section and as cache subdirectory names.
const (
	ToolObfuscator   = "proguard"
	ToolDeobfuscator = "deobfuscator"
	ToolDecompiler   = "cfr"
)

// Duration decodes Go duration syntax ("90m", "2h") from both YAML values
// and SMITHY_* environment overrides.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the persisted smithy configuration. Precedence is defaults,
// then the YAML file, then SMITHY_* environment variables; command flags
// override all three at the call site.
type Config struct {
	// BaseDir holds one subdirectory per project.
	BaseDir string `yaml:"base_dir" envconfig:"BASE_DIR"`
	// ToolsDir caches one subdirectory per external tool.
	ToolsDir string `yaml:"tools_dir" envconfig:"TOOLS_DIR"`
	// ReleaseDir receives published artifacts; deobfuscated output lands
	// in its "deobfuscated" subdirectory.
	ReleaseDir string `yaml:"release_dir" envconfig:"RELEASE_DIR"`
	// SharedDir is the optional external storage target for best-effort
	// copies. Empty disables the copy.
	SharedDir     string `yaml:"shared_dir,omitempty" envconfig:"SHARED_DIR"`
	DecompiledDir string `yaml:"decompiled_dir" envconfig:"DECOMPILED_DIR"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR"`

	JavaProgram  string `yaml:"java_program" envconfig:"JAVA_PROGRAM"`
	JavacProgram string `yaml:"javac_program" envconfig:"JAVAC_PROGRAM"`
	// StringToolPath points at the optional string-encryption jar; the
	// hardened stage uses it only when the file exists.
	StringToolPath string `yaml:"string_tool_path,omitempty" envconfig:"STRING_TOOL_PATH"`

	// MirrorPrefix rewrites clone URLs through a mirror proxy when set,
	// e.g. "https://mirror.example.com/".
	MirrorPrefix string `yaml:"mirror_prefix,omitempty" envconfig:"MIRROR_PREFIX"`

	BuildTimeout Duration `yaml:"build_timeout" envconfig:"BUILD_TIMEOUT"`
	ToolTimeout  Duration `yaml:"tool_timeout" envconfig:"TOOL_TIMEOUT"`
	// Parallel bounds concurrent project builds in batch mode; 1 keeps
	// the batch sequential.
	Parallel int `yaml:"parallel" envconfig:"PARALLEL"`

	Tools       map[string]ToolConfig `yaml:"tools,omitempty" ignored:"true"`
	Locator     *LocatorSettings      `yaml:"locator,omitempty" ignored:"true"`
	Diagnostics []DiagnosticRule      `yaml:"diagnostics,omitempty" ignored:"true"`
}

// ToolConfig is the YAML shape of one external tool entry.
type ToolConfig struct {
	JarName          string   `yaml:"jar"`
	URL              string   `yaml:"url,omitempty"`
	ArchiveInnerPath string   `yaml:"archive_inner_path,omitempty"`
	VersionSource    string   `yaml:"version_source,omitempty"`
	SHA256           string   `yaml:"sha256,omitempty"`
	SignatureURL     string   `yaml:"signature_url,omitempty"`
	PublicKeyPath    string   `yaml:"public_key_path,omitempty"`
	Args             []string `yaml:"args,omitempty"`
}

// LocatorSettings overrides the built-in artifact search rules.
type LocatorSettings struct {
	Extensions []string               `yaml:"extensions,omitempty"`
	Chains     map[string]LocatorRule `yaml:"chains,omitempty"`
	Fallback   *LocatorRule           `yaml:"fallback,omitempty"`
}

// LocatorRule is one type's search-directory and filter-chain override.
type LocatorRule struct {
	Dirs    []string        `yaml:"dirs"`
	Filters []LocatorFilter `yaml:"filters"`
}

// LocatorFilter holds case-insensitive name substrings.
type LocatorFilter struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// DiagnosticRule is the YAML shape of one extra diagnosis rule.
type DiagnosticRule struct {
	Signatures []string `yaml:"signatures"`
	Hypothesis string   `yaml:"hypothesis"`
}

// DefaultPath returns the XDG-resolved config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "smithy", "config.yaml")
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	dataDir := filepath.Join(xdg.DataHome, "smithy")
	toolsDir := filepath.Join(xdg.CacheHome, "smithy", "tools")
	return &Config{
		BaseDir:        filepath.Join(dataDir, "projects"),
		ToolsDir:       toolsDir,
		ReleaseDir:     filepath.Join(dataDir, "release"),
		DecompiledDir:  filepath.Join(dataDir, "decompiled"),
		LogsDir:        filepath.Join(xdg.StateHome, "smithy", "logs"),
		JavaProgram:    "java",
		JavacProgram:   "javac",
		StringToolPath: filepath.Join(toolsDir, "stringcrypt", "stringcrypt.jar"),
		BuildTimeout:   Duration(30 * time.Minute),
		ToolTimeout:    Duration(10 * time.Minute),
		Parallel:       1,
		Tools:          DefaultTools(),
	}
}

// DefaultTools returns the shipped tool registry.
func DefaultTools() map[string]ToolConfig {
	return map[string]ToolConfig{
		ToolObfuscator: {
			JarName:          "proguard.jar",
			URL:              "https://github.com/Guardsquare/proguard/releases/download/v{version}/proguard-{version}.tar.gz",
			ArchiveInnerPath: "proguard-{version}/lib/proguard.jar",
			VersionSource:    "github-release:Guardsquare/proguard",
			Args: []string{
				"-injars", "{in}",
				"-outjars", "{out}",
				"-dontshrink",
				"-dontoptimize",
				"-keepattributes", "*",
				"-keep", "public class * { public protected *; }",
			},
		},
		ToolDeobfuscator: {
			JarName: "deobfuscator.jar",
			URL:     "https://github.com/java-deobfuscator/deobfuscator/releases/latest/download/deobfuscator.jar",
			Args:    []string{"{in}", "{out}"},
		},
		ToolDecompiler: {
			JarName:       "cfr.jar",
			URL:           "https://github.com/leibnitz27/cfr/releases/download/{version}/cfr-{version}.jar",
			VersionSource: "static:0.152",
			Args:          []string{"{in}", "--outputdir", "{outdir}"},
		},
	}
}

// Load reads the config file at path (or the default location when path is
// empty), fills unset fields with defaults, then applies SMITHY_* overrides.
// A missing file is a normal first run, not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	//nolint:gosec // G304: path is the user-chosen config location
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run keeps the defaults.
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process("smithy", cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML bytes over the default configuration, so fields the
// document does not mention keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration atomically (temp file + rename).
func Save(path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		//nolint:errcheck,gosec // G104: Best effort cleanup of the temp file
		tmp.Close()
		//nolint:errcheck,gosec // G104: Best effort cleanup of the temp file
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		//nolint:errcheck,gosec // G104: Best effort cleanup of the temp file
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		//nolint:errcheck,gosec // G104: Best effort cleanup of the temp file
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// DeobfuscatedDir is the batch-deobfuscation output directory, fixed as a
// subdirectory of the release directory.
func (c *Config) DeobfuscatedDir() string {
	return filepath.Join(c.ReleaseDir, "deobfuscated")
}

// ToolSpec converts the named tools entry into the domain spec consumed by
// the tool cache.
func (c *Config) ToolSpec(name string) (entities.ToolSpec, error) {
	tool, ok := c.Tools[name]
	if !ok {
		return entities.ToolSpec{}, fmt.Errorf("tool %s is not configured", name)
	}
	return entities.ToolSpec{
		Name:             name,
		JarName:          tool.JarName,
		URL:              tool.URL,
		ArchiveInnerPath: tool.ArchiveInnerPath,
		VersionSource:    tool.VersionSource,
		SHA256:           tool.SHA256,
		SignatureURL:     tool.SignatureURL,
		PublicKeyPath:    tool.PublicKeyPath,
		Args:             tool.Args,
	}, nil
}

// ExtraDiagnosticRules converts the diagnostics section into domain rules.
func (c *Config) ExtraDiagnosticRules() []services.DiagnosticRule {
	rules := make([]services.DiagnosticRule, 0, len(c.Diagnostics))
	for _, rule := range c.Diagnostics {
		rules = append(rules, services.DiagnosticRule{
			Signatures: rule.Signatures,
			Hypothesis: rule.Hypothesis,
		})
	}
	return rules
}
