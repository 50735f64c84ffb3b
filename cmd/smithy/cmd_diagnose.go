package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ochairo/smithy/internal/domain/services"
)

// diagnoseCmd analyzes a build log for known failure signatures
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <logfile>",
	Short: "Analyze a build log for known failure causes",
	Long: `Diagnose scans a captured build log for known failure signatures
(out-of-memory, wrong Java version, missing dependencies, ...) and prints
one hypothesis per match plus general remediation steps. Rules added in
the configuration's diagnostics section are applied after the built-in
ones.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	//nolint:gosec // G304: user names the log file to analyze
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read log %s: %w", args[0], err)
	}

	diagnostician := services.NewDiagnostician(cfg.ExtraDiagnosticRules()...)
	hypotheses := diagnostician.Diagnose(string(data))

	fmt.Printf("💡 Diagnosis for %s:\n", args[0])
	for _, hypothesis := range hypotheses {
		fmt.Printf("  - %s\n", hypothesis)
	}
	return nil
}
