package main

import (
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ochairo/smithy/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/smithy/internal/domain-orchestrators"
	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/interfaces/repositories"
	"github.com/ochairo/smithy/internal/domain/services"
	"github.com/ochairo/smithy/internal/external-adapters/gpg"
	"github.com/ochairo/smithy/internal/external-adapters/yaml"
	"github.com/ochairo/smithy/internal/external-adapters/zaplog"
)

var (
	// Global flags
	cfgFile     string
	baseDirFlag string
	verbose     bool

	// Shared runtime state, populated by PersistentPreRunE
	cfg    *yaml.Config
	logger *zaplog.Logger
)

// timeRound keeps printed durations readable.
const timeRound = 10 * time.Millisecond

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "smithy",
	Short: "smithy - build and transform Minecraft mod projects",
	Long: `smithy drives mod projects through a staged pipeline: classify the
project layout, run its own build tool, locate the final artifact, apply
optional obfuscation, deobfuscation and decompilation passes, and publish
the result into a release directory.

Projects live under a configured base directory; commands accept either a
project name or a path. External tool jars are downloaded on first use and
cached. Batch builds isolate failures: one broken project never stops the
rest.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = yaml.Load(cfgFile)
		if err != nil {
			return err
		}
		if baseDirFlag != "" {
			cfg.BaseDir = baseDirFlag
		}
		logger, err = zaplog.New(verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVarP(&baseDirFlag, "base", "b", "", "Project base directory override")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// configPath is the file config subcommands persist to.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return yaml.DefaultPath()
}

// toolchain bundles the wired gateways, services and the pipeline
// orchestrator that the commands share.
type toolchain struct {
	fs            billy.Filesystem
	runner        *gateways.CommandRunner
	tools         *gateways.ToolCache
	classifier    *services.Classifier
	projects      repositories.ProjectRepository
	locator       *gateways.Locator
	builder       *gateways.BuildRunner
	obfuscator    *gateways.Obfuscator
	deobfuscator  *gateways.Deobfuscator
	decompiler    *gateways.Decompiler
	bundler       *gateways.SourceBundler
	publisher     *gateways.Publisher
	diagnostician *services.Diagnostician
	pipeline      *orchestrators.PipelineOrchestrator
}

// newToolchain wires the full pipeline from the loaded configuration.
func newToolchain() (*toolchain, error) {
	obfSpec, err := cfg.ToolSpec(yaml.ToolObfuscator)
	if err != nil {
		return nil, err
	}
	deobSpec, err := cfg.ToolSpec(yaml.ToolDeobfuscator)
	if err != nil {
		return nil, err
	}
	decSpec, err := cfg.ToolSpec(yaml.ToolDecompiler)
	if err != nil {
		return nil, err
	}

	fsys := osfs.New("/")
	runner := gateways.NewCommandRunner(cfg.ToolTimeout.Std(), logger)
	tools := gateways.NewToolCache(cfg.ToolsDir, gateways.NewReleaseResolver(logger), gpg.NewVerifier(), logger)
	injector := gateways.NewGuardInjector(runner, cfg.JavacProgram, logger)

	tc := &toolchain{
		fs:         fsys,
		runner:     runner,
		tools:      tools,
		classifier: services.NewClassifier(fsys),
		projects:   gateways.NewProjectRepository(fsys, cfg.BaseDir),
		locator:    gateways.NewLocator(fsys, locatorConfig(cfg.Locator)),
		builder:    gateways.NewBuildRunner(runner, logger),
		obfuscator: gateways.NewObfuscator(tools, runner, injector, gateways.ObfuscatorConfig{
			JavaProgram:    cfg.JavaProgram,
			Tool:           obfSpec,
			StringToolPath: cfg.StringToolPath,
		}, logger),
		deobfuscator:  gateways.NewDeobfuscator(tools, runner, cfg.JavaProgram, deobSpec, logger),
		decompiler:    gateways.NewDecompiler(tools, runner, cfg.JavaProgram, decSpec, logger),
		bundler:       gateways.NewSourceBundler(logger),
		publisher:     gateways.NewPublisher(logger),
		diagnostician: services.NewDiagnostician(cfg.ExtraDiagnosticRules()...),
	}
	tc.pipeline = orchestrators.NewPipelineOrchestrator(
		tc.classifier,
		tc.builder,
		tc.locator,
		tc.obfuscator,
		tc.deobfuscator,
		tc.decompiler,
		tc.bundler,
		tc.publisher,
		tc.diagnostician,
		logger,
	)
	return tc, nil
}

// newPipelineRequest resolves one project's pipeline parameters from the
// configuration and the given stage selection.
func newPipelineRequest(project *entities.Project, stages []entities.Stage, hardened bool,
	transformers []string, bundle, publish bool) *entities.PipelineRequest {
	return &entities.PipelineRequest{
		RunID:           uuid.NewString(),
		Project:         project,
		Stages:          stages,
		Hardened:        hardened,
		Transformers:    transformers,
		Publish:         publish,
		BundleSources:   bundle,
		LogPath:         filepath.Join(cfg.LogsDir, project.Name+".log"),
		ReleaseDir:      cfg.ReleaseDir,
		SharedDir:       cfg.SharedDir,
		DeobfuscatedDir: cfg.DeobfuscatedDir(),
		DecompiledDir:   cfg.DecompiledDir,
		BuildTimeout:    cfg.BuildTimeout.Std(),
		ToolTimeout:     cfg.ToolTimeout.Std(),
	}
}

// requestedStages maps the stage flags onto the fixed pipeline order.
func requestedStages(obfuscate, deobfuscate, decompile bool) []entities.Stage {
	var stages []entities.Stage
	if obfuscate {
		stages = append(stages, entities.StageObfuscate)
	}
	if deobfuscate {
		stages = append(stages, entities.StageDeobfuscate)
	}
	if decompile {
		stages = append(stages, entities.StageDecompile)
	}
	return stages
}

// locatorConfig maps the YAML locator overrides onto the gateway config.
// A nil settings block keeps every built-in default.
func locatorConfig(settings *yaml.LocatorSettings) gateways.LocatorConfig {
	if settings == nil {
		return gateways.LocatorConfig{}
	}
	out := gateways.LocatorConfig{Extensions: settings.Extensions}
	if len(settings.Chains) > 0 {
		out.Chains = make(map[entities.ProjectType]gateways.LocatorChain, len(settings.Chains))
		for name, rule := range settings.Chains {
			out.Chains[entities.ProjectType(name)] = locatorChain(rule)
		}
	}
	if settings.Fallback != nil {
		chain := locatorChain(*settings.Fallback)
		out.Fallback = &chain
	}
	return out
}

func locatorChain(rule yaml.LocatorRule) gateways.LocatorChain {
	chain := gateways.LocatorChain{Dirs: rule.Dirs}
	for _, filter := range rule.Filters {
		chain.Filters = append(chain.Filters, gateways.LocatorFilter{
			Include: filter.Include,
			Exclude: filter.Exclude,
		})
	}
	return chain
}

// resolveProjects maps command arguments to classified projects, or every
// project under the base directory when all is set.
func resolveProjects(tc *toolchain, args []string, all bool) ([]*entities.Project, error) {
	if all {
		return tc.projects.List()
	}
	projects := make([]*entities.Project, 0, len(args))
	for _, name := range args {
		project, err := tc.projects.Resolve(name)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, nil
}
