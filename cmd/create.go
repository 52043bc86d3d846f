package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	createLoad    bool
	createNoCache bool
)

var createCmd = &cobra.Command{
	Use:   "create <name> <description>",
	Short: "Generate a new simulation from a description",
	Long: `Describe one or two cell populations and let the language model write
the simulation scripts.

The description is first checked and normalised by the validator model.
Only EColi and SCerevisiae are supported, at most two organisms per
simulation. Responses are cached by normalised description.

Examples:
  simforge create GreenEColi "a green E. coli that divides every 20 minutes"
  simforge create Mixed "red yeast and blue bacteria" --load
  simforge create Fresh "purple yeast" --no-cache`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().BoolVar(&createLoad, "load", false, "Load the simulation into the workspace afterwards")
	createCmd.Flags().BoolVar(&createNoCache, "no-cache", false, "Skip the response cache")
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	description := strings.Join(args[1:], " ")

	a, err := newApp()
	if err != nil {
		return err
	}
	p, cleanup, err := a.pipeline(pipelineOptions{models: true, cache: !createNoCache})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := interruptContext()
	defer stop()

	fmt.Printf("Creating simulation: %s\n", name)
	res, err := p.Create(ctx, name, description)
	if res != nil && res.Report != nil {
		printWarnings(res.Report.Warnings)
	}
	if err != nil {
		return fmt.Errorf("failed to create simulation: %w", err)
	}

	fmt.Printf("  Prompt: %s\n", res.Prompt)
	switch {
	case res.Cached && res.Similarity < 1:
		fmt.Printf("  Response: cached (similarity %.3f)\n", res.Similarity)
	case res.Cached:
		fmt.Println("  Response: cached")
	default:
		fmt.Printf("  Response: generated (%d prompt / %d completion tokens)\n",
			res.Usage.PromptTokens, res.Usage.CompletionTokens)
	}
	fmt.Printf("\n✓ Simulation created: %s\n", res.Report.Path)
	for _, f := range res.Report.Written {
		fmt.Printf("  - %s\n", f)
	}

	if createLoad {
		return loadSimulation(ctx, p, name)
	}
	return nil
}
