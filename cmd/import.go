package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var importLoad bool

var importCmd = &cobra.Command{
	Use:   "import <name> [file]",
	Short: "Create a simulation from a saved model response",
	Long: `Extract the numbered code blocks from a model response and import them
into a new (or existing) simulation without calling any model.

The response is read from file, or from stdin when file is omitted or "-".

Examples:
  simforge import GreenEColi response.txt
  cat response.txt | simforge import GreenEColi`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importLoad, "load", false, "Load the simulation into the workspace afterwards")
}

func runImport(cmd *cobra.Command, args []string) error {
	name := args[0]

	var (
		data []byte
		err  error
	)
	if len(args) < 2 || args[1] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	p, cleanup, err := a.pipeline(pipelineOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := p.ImportResponse(name, string(data))
	if res != nil && res.Report != nil {
		printWarnings(res.Report.Warnings)
	}
	if err != nil {
		return fmt.Errorf("failed to import response: %w", err)
	}

	fmt.Printf("✓ Imported %d file(s) into %s\n", len(res.Report.Written), res.Report.Path)
	for _, f := range res.Report.Written {
		fmt.Printf("  - %s\n", f)
	}

	if importLoad {
		ctx, stop := interruptContext()
		defer stop()
		return loadSimulation(ctx, p, name)
	}
	return nil
}
