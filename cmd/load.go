package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/builder"
	"github.com/pders01/simforge/internal/pipeline"
)

var loadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Sync a simulation into the build workspace",
	Long: `Make a simulation the active one in the build workspace.

Switching to a different simulation replaces Assets, Packages and
ProjectSettings. Reloading the active simulation only refreshes Assets.

Example:
  simforge load GreenEColi`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
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

	return loadSimulation(ctx, p, args[0])
}

func loadSimulation(ctx context.Context, p *pipeline.Pipeline, name string) error {
	fmt.Printf("Loading simulation: %s\n", name)
	res, err := p.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load simulation: %w", err)
	}
	printWarnings(res.Warnings)

	mode := "incremental"
	if res.Full {
		mode = "full"
	}
	fmt.Printf("✓ Loaded %s (%s sync of %s in %s)\n",
		res.Name, mode, strings.Join(res.Copied, ", "), builder.FormatElapsed(res.Duration))
	return nil
}
