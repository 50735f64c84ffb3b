package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
)

var toolsFetch bool

// toolsCmd shows and fills the external tool cache
var toolsCmd = &cobra.Command{
	Use:   "tools [name]",
	Short: "Show the external tool cache",
	Long: `Tools lists the configured external tools and whether their jars are
cached. With --fetch every missing tool (or just the named one) is
downloaded, verified and cached; a cached tool is returned without any
network traffic.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsFetch, "fetch", false, "Acquire missing tools now")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
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

	var names []string
	if len(args) == 1 {
		names = args
	} else {
		for name := range cfg.Tools {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	failed := 0
	for _, name := range names {
		spec, err := cfg.ToolSpec(name)
		if err != nil {
			return err
		}

		if toolsFetch {
			path, err := tc.tools.Ensure(ctx, spec)
			if err != nil {
				fmt.Fprintf(os.Stderr, "❌ %s: %v\n", name, err)
				failed++
				continue
			}
			fmt.Printf("✅ %-14s %s\n", name, path)
			continue
		}

		if path, ok := tc.tools.CachedPath(spec); ok {
			fmt.Printf("✅ %-14s %s\n", name, path)
		} else {
			fmt.Printf("⬇️  %-14s not cached (run `smithy tools %s --fetch`)\n", name, name)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
	return nil
}
