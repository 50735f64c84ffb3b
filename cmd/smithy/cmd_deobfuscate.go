package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	deobfuscateBatch        bool
	deobfuscateOut          string
	deobfuscateTransformers []string
)

// deobfuscateCmd reverses obfuscation on one jar or a directory of jars
var deobfuscateCmd = &cobra.Command{
	Use:   "deobfuscate <jar|dir>",
	Short: "Deobfuscate a jar, or every jar in a directory",
	Long: `Deobfuscate runs the deobfuscation tool over one archive and prints
the output path. With --dir the argument is a directory: every archive in
it is processed independently and the summary partitions the names into
succeeded and failed, so one broken archive never stops the rest.

Transformers are passed through to the tool in the order given.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeobfuscate,
}

func init() {
	deobfuscateCmd.Flags().BoolVar(&deobfuscateBatch, "dir", false, "Treat the argument as a directory of archives")
	deobfuscateCmd.Flags().StringVar(&deobfuscateOut, "out", "", "Output directory (default: <release>/deobfuscated)")
	deobfuscateCmd.Flags().StringArrayVar(&deobfuscateTransformers, "transformer", nil, "Deobfuscator transformer to apply (repeatable)")
	rootCmd.AddCommand(deobfuscateCmd)
}

func runDeobfuscate(cmd *cobra.Command, args []string) error {
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

	out := deobfuscateOut
	if out == "" {
		out = cfg.DeobfuscatedDir()
	}

	if deobfuscateBatch {
		report, err := tc.deobfuscator.DeobfuscateDir(ctx, args[0], out, deobfuscateTransformers, cfg.ToolTimeout.Std())
		if err != nil {
			return err
		}
		fmt.Printf("✅ Deobfuscated: %d\n", len(report.Succeeded))
		for _, name := range report.Succeeded {
			fmt.Printf("  ✓ %s\n", name)
		}
		if len(report.Failed) > 0 {
			fmt.Printf("❌ Failed: %d\n", len(report.Failed))
			for _, name := range report.Failed {
				fmt.Printf("  ✗ %s\n", name)
			}
			os.Exit(1)
		}
		return nil
	}

	outPath, err := tc.deobfuscator.Deobfuscate(ctx, args[0], out, deobfuscateTransformers, cfg.ToolTimeout.Std())
	if err != nil {
		return err
	}
	fmt.Println(outPath)
	return nil
}
