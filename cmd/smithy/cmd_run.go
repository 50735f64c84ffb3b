package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ochairo/smithy/internal/domain/entities"
)

var (
	runObfuscateFlag   bool
	runHardened        bool
	runDeobfuscateFlag bool
	runTransformers    []string
	runDecompileFlag   bool
	runBundle          bool
	runNoPublish       bool
	runQuiet           bool
)

// runCmd drives one project through the full pipeline
var runCmd = &cobra.Command{
	Use:   "run <project>",
	Short: "Run the full pipeline for one project",
	Long: `Run builds the project, locates its final artifact, applies the
requested transformation stages in fixed order (obfuscate, deobfuscate,
decompile) and publishes the result into the release directory.

A failed stage stops the remaining pipeline for the project; optional
sub-steps such as string encryption or source bundling degrade to
warnings instead.

Examples:
  smithy run mymod
  smithy run mymod --obfuscate --hardened
  smithy run mymod --decompile --bundle --no-publish`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().BoolVar(&runObfuscateFlag, "obfuscate", false, "Obfuscate the built artifact")
	runCmd.Flags().BoolVar(&runHardened, "hardened", false, "Use the hardened obfuscation flow (implies --obfuscate)")
	runCmd.Flags().BoolVar(&runDeobfuscateFlag, "deobfuscate", false, "Deobfuscate the carried artifact")
	runCmd.Flags().StringArrayVar(&runTransformers, "transformer", nil, "Deobfuscator transformer to apply (repeatable)")
	runCmd.Flags().BoolVar(&runDecompileFlag, "decompile", false, "Decompile the carried artifact")
	runCmd.Flags().BoolVar(&runBundle, "bundle", false, "Bundle decompiled sources into a tar.gz (implies --decompile)")
	runCmd.Flags().BoolVar(&runNoPublish, "no-publish", false, "Skip publishing to the release directory")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress the stage report")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
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
	project, err := tc.projects.Resolve(args[0])
	if err != nil {
		return err
	}

	if runHardened {
		runObfuscateFlag = true
	}
	if runBundle {
		runDecompileFlag = true
	}

	req := newPipelineRequest(project,
		requestedStages(runObfuscateFlag, runDeobfuscateFlag, runDecompileFlag),
		runHardened, runTransformers, runBundle, !runNoPublish)

	report := tc.pipeline.Run(ctx, req)
	if !runQuiet {
		printProjectReport(report)
	}
	if !report.Succeeded() {
		os.Exit(1)
	}
	return nil
}

func printProjectReport(report *entities.ProjectReport) {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	header := fmt.Sprintf("📦 %s (%s", report.Name, report.Type)
	if report.PlatformVersion != "" {
		header += " " + report.PlatformVersion
	}
	fmt.Println(header + ")")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	for _, stage := range report.Stages {
		mark := "✅"
		if !stage.Success {
			mark = "❌"
		}
		line := fmt.Sprintf("  %s %-11s", mark, stage.Stage)
		switch {
		case stage.Detail != "":
			line += " " + stage.Detail
		case stage.ArtifactPath != "":
			line += " " + stage.ArtifactPath
		}
		fmt.Println(line)
		for _, warning := range stage.Warnings {
			fmt.Printf("     ⚠️  %s\n", warning)
		}
	}

	if len(report.Hypotheses) > 0 {
		fmt.Println("\n💡 Likely causes:")
		for _, hypothesis := range report.Hypotheses {
			fmt.Printf("  - %s\n", hypothesis)
		}
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if report.Succeeded() {
		fmt.Printf("✅ %s finished in %s (state: %s)\n", report.Name, report.Duration.Round(timeRound), report.State)
		if report.ReleasedPath != "" {
			fmt.Printf("   released: %s\n", report.ReleasedPath)
		}
	} else {
		fmt.Printf("❌ %s failed at %s after %s (log: %s)\n",
			report.Name, report.FailedStage, report.Duration.Round(timeRound), report.LogPath)
	}
}
