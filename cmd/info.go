package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/models"
)

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show details for a simulation",
	Long: `Display the metadata (simulation.yaml) and size of a simulation.

Example:
  simforge info GreenEColi`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	sim, err := a.store.Get(args[0])
	if err != nil {
		return err
	}
	if err := a.store.FillSizes(context.Background(), []*models.Simulation{sim}); err != nil {
		return err
	}
	loaded, _ := a.sync.Marker()

	fmt.Printf("Simulation: %s\n\n", sim.Name)
	fmt.Printf("Path:        %s\n", sim.Path)
	fmt.Printf("Created:     %s\n", sim.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Last opened: %s\n", sim.LastOpened())
	fmt.Printf("Size:        %s\n", humanize.Bytes(uint64(sim.SizeBytes)))
	fmt.Printf("Loaded:      %t\n", sim.Name == loaded)

	if meta := sim.Metadata; meta != nil {
		fmt.Printf("Cached:      %t\n", meta.Cached)
		if len(meta.Files) > 0 {
			fmt.Println("\nFiles:")
			for _, f := range meta.Files {
				fmt.Printf("  - %s\n", f)
			}
		}
		if meta.Description != "" {
			fmt.Printf("\nDescription:\n%s\n", meta.Description)
		}
	}

	return nil
}
