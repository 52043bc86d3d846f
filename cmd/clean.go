package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/builder"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Stop leftover Unity editor processes",
	Long: `Terminate editor processes started from the configured executable,
for example after an interrupted build. Processes get five seconds to
exit before they are killed.

Example:
  simforge clean`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if a.cfg.Tool.Executable == "" {
		return fmt.Errorf("tool.executable is not set")
	}

	ctx, stop := interruptContext()
	defer stop()

	n, err := builder.NewReaper(a.cfg.Tool.Executable, logger).Reap(ctx)
	if err != nil {
		return fmt.Errorf("failed to stop editor processes: %w", err)
	}
	if n == 0 {
		fmt.Println("No editor processes running")
		return nil
	}
	fmt.Printf("✓ Stopped %d editor process(es)\n", n)
	return nil
}
