package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a simulation",
	Long: `Remove a simulation directory. If it is the simulation loaded in the
workspace, the workspace forgets it; its files stay in place until the
next load.

Example:
  simforge delete GreenEColi`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	p, cleanup, err := a.pipeline(pipelineOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	if err := p.Delete(args[0]); err != nil {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	fmt.Printf("✓ Deleted %s\n", args[0])
	return nil
}
