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
	decompileBundle bool
	decompileOut    string
)

// decompileCmd decompiles a jar back to sources
var decompileCmd = &cobra.Command{
	Use:   "decompile <jar>",
	Short: "Decompile a jar into Java sources",
	Long: `Decompile emits the archive's sources into a directory named after
it under the decompiled-output root and prints that directory. With
--bundle the sources are additionally packed into a tar.gz next to the
directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecompile,
}

func init() {
	decompileCmd.Flags().BoolVar(&decompileBundle, "bundle", false, "Pack the decompiled sources into a tar.gz")
	decompileCmd.Flags().StringVar(&decompileOut, "out", "", "Output root (default: configured decompiled dir)")
	rootCmd.AddCommand(decompileCmd)
}

func runDecompile(cmd *cobra.Command, args []string) error {
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

	outRoot := decompileOut
	if outRoot == "" {
		outRoot = cfg.DecompiledDir
	}

	outDir, err := tc.decompiler.Decompile(ctx, args[0], outRoot, cfg.ToolTimeout.Std())
	if err != nil {
		return err
	}
	fmt.Println(outDir)

	if decompileBundle {
		tarball, err := tc.bundler.Bundle(outDir)
		if err != nil {
			return err
		}
		fmt.Println(tarball)
	}
	return nil
}
