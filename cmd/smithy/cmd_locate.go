package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// locateCmd prints the project's final build artifact
var locateCmd = &cobra.Command{
	Use:   "locate <project>",
	Short: "Print the project's final build artifact",
	Long: `Locate walks the project's build-output directories and prints the
path of the best artifact for its type. Sources and dev jars are never
selected. Prints only the path, so the output is script-friendly.`,
	Args: cobra.ExactArgs(1),
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
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
	fmt.Println(artifact.Path)
	return nil
}
