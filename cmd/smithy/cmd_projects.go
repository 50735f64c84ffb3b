package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// projectsCmd lists projects under the base directory
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects under the base directory",
	Long: `Projects lists every directory under the configured base directory
with its classified type and, where detectable, the platform version the
project targets.`,
	Args: cobra.NoArgs,
	RunE: runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	tc, err := newToolchain()
	if err != nil {
		return err
	}
	projects, err := tc.projects.List()
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Printf("No projects under %s\n", cfg.BaseDir)
		return nil
	}

	fmt.Printf("Projects under %s (%d total):\n\n", cfg.BaseDir, len(projects))
	for _, project := range projects {
		line := fmt.Sprintf("  %-24s %s", project.Name, project.Type)
		if project.PlatformVersion != "" {
			line += " " + project.PlatformVersion
		}
		fmt.Println(line)
	}
	return nil
}
