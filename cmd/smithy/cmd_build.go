package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/smithy/internal/domain-orchestrators"
	"github.com/ochairo/smithy/internal/domain/entities"
)

var (
	buildAll      bool
	buildParallel int
	buildPublish  bool
	buildReport   string
	buildQuiet    bool
)

// buildCmd runs the build stage for one or more projects
var buildCmd = &cobra.Command{
	Use:   "build [projects...]",
	Short: "Build projects without transformation stages",
	Long: `Build classifies each named project (or every project under the base
directory with --all), runs its own build tool and locates the final
artifact. Transformation stages and publishing are skipped; use run for
the full pipeline.

One project's failure never aborts the batch: the summary partitions the
projects into succeeded and failed, and a build failure comes with
hypotheses extracted from the captured log.

Examples:
  smithy build mymod
  smithy build --all --parallel 4 --report build.json`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildAll, "all", false, "Build every project under the base directory")
	buildCmd.Flags().IntVar(&buildParallel, "parallel", 0, "Concurrent builds (default: configured value)")
	buildCmd.Flags().BoolVar(&buildPublish, "publish", false, "Publish each located artifact after its build")
	buildCmd.Flags().StringVar(&buildReport, "report", "", "Write the batch report as JSON to this file")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "Suppress the batch summary")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if !buildAll && len(args) == 0 {
		return fmt.Errorf("name at least one project or pass --all")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	tc, err := newToolchain()
	if err != nil {
		return err
	}
	projects, err := resolveProjects(tc, args, buildAll)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Printf("No projects under %s\n", cfg.BaseDir)
		return nil
	}

	reqs := make([]*entities.PipelineRequest, 0, len(projects))
	for _, project := range projects {
		reqs = append(reqs, newPipelineRequest(project, nil, false, nil, false, buildPublish))
	}

	parallel := cfg.Parallel
	if buildParallel > 0 {
		parallel = buildParallel
	}

	batch := orchestrators.NewBatchOrchestrator(tc.pipeline, parallel, logger)
	report := batch.RunAll(ctx, reqs)

	if buildReport != "" {
		if err := writeBatchReport(buildReport, report); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write report: %v\n", err)
		}
	}

	if !buildQuiet {
		printBatchSummary(report)
	}

	// Exit with error if every build failed
	if len(report.Succeeded) == 0 && len(report.Failed) > 0 {
		os.Exit(1)
	}
	return nil
}

func writeBatchReport(path string, report *entities.BatchReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func printBatchSummary(report *entities.BatchReport) {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 Build summary: %d projects\n", report.Total)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	fmt.Printf("✅ Succeeded: %d\n", len(report.Succeeded))
	for _, name := range report.Succeeded {
		fmt.Printf("  ✓ %s\n", name)
	}

	if len(report.Failed) > 0 {
		fmt.Printf("\n❌ Failed: %d\n", len(report.Failed))
		for _, project := range report.Reports {
			if project.Succeeded() {
				continue
			}
			fmt.Printf("  ✗ %s (%s)", project.Name, project.FailedStage)
			if project.LogPath != "" {
				fmt.Printf(" - %s", project.LogPath)
			}
			fmt.Println()
			for _, hypothesis := range project.Hypotheses {
				fmt.Printf("      💡 %s\n", hypothesis)
			}
		}
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("⏱️  Duration: %s\n", report.Duration.Round(timeRound))
}
