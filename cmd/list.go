package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alpkeskin/gotoon"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/models"
)

var (
	listJSON  bool
	listToon  bool
	listSince string
	listSizes bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all simulations",
	Long: `List all simulations with optional filtering.

The simulation currently loaded in the workspace is marked with "*".

Examples:
  simforge list
  simforge list --sizes
  simforge list --since 2025-10-01
  simforge list --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().BoolVar(&listToon, "toon", false, "Output in LLM-friendly toon format")
	listCmd.Flags().StringVar(&listSince, "since", "", "Show simulations created since date (YYYY-MM-DD)")
	listCmd.Flags().BoolVar(&listSizes, "sizes", false, "Compute the size of every simulation")
}

type simulationEntry struct {
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastOpened  *time.Time `json:"last_opened,omitempty"`
	Files       int        `json:"files"`
	SizeBytes   int64      `json:"size_bytes,omitempty"`
	Loaded      bool       `json:"loaded"`
}

func newSimulationEntry(sim *models.Simulation, loaded string) simulationEntry {
	e := simulationEntry{
		Name:       sim.Name,
		Path:       sim.Path,
		CreatedAt:  sim.CreatedAt,
		LastOpened: sim.LastOpenedAt,
		SizeBytes:  sim.SizeBytes,
		Loaded:     sim.Name == loaded,
	}
	if sim.Metadata != nil {
		e.Description = sim.Metadata.Description
		e.Files = len(sim.Metadata.Files)
	}
	return e
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	sims, err := a.store.List()
	if err != nil {
		return fmt.Errorf("failed to list simulations: %w", err)
	}

	if listSince != "" {
		since, err := time.Parse("2006-01-02", listSince)
		if err != nil {
			return fmt.Errorf("invalid --since date format (use YYYY-MM-DD): %w", err)
		}
		filtered := sims[:0]
		for _, s := range sims {
			if !s.CreatedAt.Before(since) {
				filtered = append(filtered, s)
			}
		}
		sims = filtered
	}

	if listSizes {
		if err := a.store.FillSizes(context.Background(), sims); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	loaded, err := a.sync.Marker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	entries := make([]simulationEntry, 0, len(sims))
	for _, s := range sims {
		entries = append(entries, newSimulationEntry(s, loaded))
	}

	if listJSON {
		output, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if listToon {
		output, err := gotoon.Encode(entries)
		if err != nil {
			return fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Println(output)
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No simulations found")
		return nil
	}

	fmt.Printf("Found %d simulation(s):\n\n", len(entries))
	for i, s := range sims {
		e := entries[i]
		mark := " "
		if e.Loaded {
			mark = "*"
		}
		fmt.Printf("%s %s\n", mark, e.Name)
		fmt.Printf("    Created:     %s\n", e.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("    Last opened: %s\n", s.LastOpened())
		if e.Files > 0 {
			fmt.Printf("    Files:       %d\n", e.Files)
		}
		if listSizes {
			fmt.Printf("    Size:        %s\n", humanize.Bytes(uint64(e.SizeBytes)))
		}
		if e.Description != "" {
			desc := e.Description
			if len(desc) > 60 {
				desc = desc[:60] + "..."
			}
			fmt.Printf("    Description: %s\n", desc)
		}
		fmt.Println()
	}

	return nil
}
