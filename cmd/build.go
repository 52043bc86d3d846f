package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/builder"
)

var buildPrefabs bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the loaded simulation",
	Long: `Run the Unity editor headlessly against the workspace and build the
loaded simulation for this platform.

A build only succeeds when the editor exits cleanly and the expected
executable appears in the workspace's Build directory.

Examples:
  simforge build
  simforge build --prefabs   # regenerate prefabs and materials first`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Generate prefabs and materials for the loaded simulation",
	Long: `Run the prefab and material editor method headlessly against the
workspace. No build is produced.

Example:
  simforge tool`,
	Args: cobra.NoArgs,
	RunE: runTool,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(toolCmd)

	buildCmd.Flags().BoolVar(&buildPrefabs, "prefabs", false, "Run the prefab tool before building")
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	p, cleanup, err := a.pipeline(pipelineOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := interruptContext()
	defer stop()

	if buildPrefabs {
		if _, err := p.RunTool(ctx); err != nil {
			return fmt.Errorf("failed to run prefab tool: %w", err)
		}
	}

	res, err := p.Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("\n✓ Build ready: %s\n", res.Artifact)
	fmt.Printf("  Took: %s\n", builder.FormatElapsed(res.Duration))
	fmt.Printf("  Log:  %s\n", res.LogFile)
	return nil
}

func runTool(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	p, cleanup, err := a.pipeline(pipelineOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := interruptContext()
	defer stop()

	res, err := p.RunTool(ctx)
	if err != nil {
		return fmt.Errorf("prefab tool failed: %w", err)
	}

	fmt.Printf("\n✓ Prefabs and materials generated in %s\n", builder.FormatElapsed(res.Duration))
	return nil
}
