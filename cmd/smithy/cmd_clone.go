package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ochairo/smithy/internal/external-adapters/git"
)

// cloneCmd clones a project repository into the base directory
var cloneCmd = &cobra.Command{
	Use:   "clone <url> [name]",
	Short: "Clone a repository into the base directory",
	Long: `Clone fetches a project repository into the base directory, deriving
the directory name from the URL unless one is given. When a mirror prefix
is configured the clone URL is rewritten through it; local paths bypass
the mirror.

The new checkout is classified immediately so the summary shows what
kind of project arrived.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runClone,
}

func init() {
	rootCmd.AddCommand(cloneCmd)
}

func runClone(cmd *cobra.Command, args []string) error {
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

	name := ""
	if len(args) == 2 {
		name = args[1]
	}

	fetcher := git.NewFetcher(cfg.MirrorPrefix, logger)
	path, err := fetcher.Fetch(ctx, args[0], name, cfg.BaseDir)
	if err != nil {
		return err
	}

	tc, err := newToolchain()
	if err != nil {
		return err
	}
	project, err := tc.projects.Resolve(path)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Cloned %s into %s\n", args[0], path)
	fmt.Printf("   type: %s", project.Type)
	if project.PlatformVersion != "" {
		fmt.Printf(" (platform %s)", project.PlatformVersion)
	}
	fmt.Println()
	return nil
}
