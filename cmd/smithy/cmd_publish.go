package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// publishCmd copies a project's artifact into the release directories
var publishCmd = &cobra.Command{
	Use:   "publish <project>",
	Short: "Publish a project's built artifact",
	Long: `Publish locates the project's final artifact and copies it into the
release directory. When a shared directory is configured a second copy is
attempted there; that copy is best-effort and its failure is reported as
a warning, not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	tc, err := newToolchain()
	if err != nil {
		return err
	}
	project, err := tc.projects.Resolve(args[0])
	if err != nil {
		return err
	}

	artifact, err := tc.locator.Find(project.Root, project.Type)
	if err != nil {
		return err
	}
	if artifact == nil {
		fmt.Fprintf(os.Stderr, "No build artifact under %s; run `smithy build %s` first\n", project.Root, project.Name)
		os.Exit(1)
	}

	outcome, err := tc.publisher.Publish(artifact.Path, cfg.ReleaseDir, cfg.SharedDir)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Published %s\n", outcome.ReleasedPath)
	if outcome.SharedPath != "" {
		fmt.Printf("   shared copy: %s\n", outcome.SharedPath)
	}
	if outcome.SharedError != "" {
		fmt.Fprintf(os.Stderr, "⚠️  shared copy failed: %s\n", outcome.SharedError)
	}
	return nil
}
