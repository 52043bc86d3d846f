package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration and directories",
	Long: `Write a default config file and create the directories simforge works in.

This command:
  - Creates ~/.config/simforge/config.toml if it doesn't exist
  - Creates the simulations directory
  - Creates the workspace root

Edit tool.executable in the config file to point at your Unity editor
before running load or build.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

const defaultConfig = `[paths]
simulations = "Simulations"
template = "Template"

[workspace]
root = "Workspace"
project_name = "Simulation"
product = "Simulation"

[tool]
# Full path to the Unity editor binary. Its path must contain the version.
executable = ""
version = "6000.0.32f1"

[build]
method = "BuildScript.PerformBuild"
timeout = "30m"

[prefab]
method = "PrefabMaterialCreator.CreatePrefabsAndMaterials"
timeout = "10m"

[llm]
url = "http://localhost:11434"
model = "qwen2.5-coder:7b"
validator_model = "qwen2.5:3b"
embedding_model = "nomic-embed-text"

[cache]
enabled = true
semantic = false
similarity_threshold = 0.97

[retention]
days = 90
preserve = []

[logging]
level = "info"
`

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(dir, "config.toml")

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Printf("✓ Created default config: %s\n", configPath)
	} else {
		fmt.Printf("Config already exists: %s\n", configPath)
	}

	cfg, err := config.Current()
	if err != nil {
		return err
	}
	for _, d := range []string{cfg.Paths.Simulations, cfg.Workspace.Root} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
		fmt.Printf("✓ Directory ready: %s\n", d)
	}

	if _, err := os.Stat(cfg.Paths.Template); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: template not found at %s\n", cfg.Paths.Template)
	}

	fmt.Println("\n✓ simforge initialized successfully!")
	fmt.Println("  You can now use: simforge create <name> <description>")

	return nil
}
