package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	goyaml "gopkg.in/yaml.v3"

	"github.com/ochairo/smithy/internal/external-adapters/yaml"
)

// configCmd groups the configuration subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and update the persisted configuration",
}

// configShowCmd prints the effective configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Show prints the configuration after defaults, the config file,
SMITHY_* environment variables and command-line overrides have been
applied, as YAML.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configSetBaseCmd persists a new project base directory
var configSetBaseCmd = &cobra.Command{
	Use:   "set-base <dir>",
	Short: "Persist a new project base directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigSetBase,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetBaseCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := goyaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Printf("# %s\n", configPath())
	fmt.Print(string(data))
	return nil
}

func runConfigSetBase(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid base directory %s: %w", args[0], err)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("base path %s is a file, not a directory", dir)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	cfg.BaseDir = dir
	if err := yaml.Save(configPath(), cfg); err != nil {
		return err
	}
	fmt.Printf("✅ Base directory set to %s\n", dir)
	return nil
}
