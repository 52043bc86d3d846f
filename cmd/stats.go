package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/alpkeskin/gotoon"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/cache"
	"github.com/pders01/simforge/internal/models"
)

var (
	statsJSON bool
	statsToon bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show simulation and cache statistics",
	Long: `Display statistics about your simulations including:
  - Total simulation count and disk usage
  - Organisms used across simulations
  - Generated files by role
  - Creation timeline
  - Response cache usage

Examples:
  simforge stats
  simforge stats --json
  simforge stats --toon`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsCmd.Flags().BoolVar(&statsToon, "toon", false, "Output in LLM-friendly toon format")
}

type simulationStats struct {
	TotalSimulations int             `json:"total_simulations"`
	TotalBytes       int64           `json:"total_bytes"`
	WorkspaceBytes   int64           `json:"workspace_bytes"`
	Loaded           string          `json:"loaded,omitempty"`
	FromCache        int             `json:"from_cache"`
	ByRole           map[string]int  `json:"by_role"`
	ByOrganism       map[string]int  `json:"by_organism"`
	OldestSimulation *time.Time      `json:"oldest_simulation,omitempty"`
	NewestSimulation *time.Time      `json:"newest_simulation,omitempty"`
	TopOrganisms     []organismStat  `json:"top_organisms"`
	DailyActivity    []dailyActivity `json:"daily_activity"`
	Cache            *cache.Stats    `json:"cache,omitempty"`
}

type organismStat struct {
	Organism string `json:"organism"`
	Count    int    `json:"count"`
}

type dailyActivity struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// collectStats aggregates sims. Sizes must already be filled in.
func collectStats(sims []*models.Simulation) *simulationStats {
	stats := &simulationStats{
		ByRole:     make(map[string]int),
		ByOrganism: make(map[string]int),
	}
	byDate := make(map[string]int)

	stats.TotalSimulations = len(sims)
	for _, s := range sims {
		stats.TotalBytes += s.SizeBytes

		if stats.OldestSimulation == nil || s.CreatedAt.Before(*stats.OldestSimulation) {
			t := s.CreatedAt
			stats.OldestSimulation = &t
		}
		if stats.NewestSimulation == nil || s.CreatedAt.After(*stats.NewestSimulation) {
			t := s.CreatedAt
			stats.NewestSimulation = &t
		}
		byDate[s.CreatedAt.Format("2006-01-02")]++

		if s.Metadata == nil {
			continue
		}
		if s.Metadata.Cached {
			stats.FromCache++
		}
		for _, f := range s.Metadata.Files {
			name := path.Base(f)
			role := models.Classify(name)
			stats.ByRole[role.String()]++
			if role == models.RoleSystem {
				organism := models.Organism(name)
				if i := strings.LastIndex(organism, "_"); i > 0 {
					organism = organism[:i]
				}
				stats.ByOrganism[organism]++
			}
		}
	}

	for organism, count := range stats.ByOrganism {
		stats.TopOrganisms = append(stats.TopOrganisms, organismStat{Organism: organism, Count: count})
	}
	sort.Slice(stats.TopOrganisms, func(i, j int) bool {
		if stats.TopOrganisms[i].Count != stats.TopOrganisms[j].Count {
			return stats.TopOrganisms[i].Count > stats.TopOrganisms[j].Count
		}
		return stats.TopOrganisms[i].Organism < stats.TopOrganisms[j].Organism
	})

	for date, count := range byDate {
		stats.DailyActivity = append(stats.DailyActivity, dailyActivity{Date: date, Count: count})
	}
	sort.Slice(stats.DailyActivity, func(i, j int) bool {
		return stats.DailyActivity[i].Date > stats.DailyActivity[j].Date
	})

	return stats
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	sims, err := a.store.List()
	if err != nil {
		return fmt.Errorf("failed to list simulations: %w", err)
	}
	ctx := context.Background()
	if err := a.store.FillSizes(ctx, sims); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	stats := collectStats(sims)
	stats.Loaded, _ = a.sync.Marker()
	if size, err := a.sync.Size(); err == nil {
		stats.WorkspaceBytes = size
	}

	if rc, err := a.openCache(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: response cache unavailable: %v\n", err)
	} else if rc != nil {
		defer rc.Close()
		cs, err := rc.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to read cache stats: %v\n", err)
		} else {
			stats.Cache = &cs
		}
	}

	if statsJSON {
		output, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if statsToon {
		output, err := gotoon.Encode(stats)
		if err != nil {
			return fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Println(output)
		return nil
	}

	fmt.Println("Simulation Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Total Simulations: %d\n", stats.TotalSimulations)
	fmt.Printf("Disk Usage:        %s\n", humanize.Bytes(uint64(stats.TotalBytes)))
	fmt.Printf("Workspace:         %s\n", humanize.Bytes(uint64(stats.WorkspaceBytes)))
	if stats.Loaded != "" {
		fmt.Printf("Loaded:            %s\n", stats.Loaded)
	}
	if stats.OldestSimulation != nil && stats.NewestSimulation != nil {
		fmt.Printf("Date Range:        %s to %s\n",
			stats.OldestSimulation.Format("2006-01-02"),
			stats.NewestSimulation.Format("2006-01-02"))
	}
	fmt.Println()

	if stats.TotalSimulations > 0 {
		fmt.Println("By Role:")
		for _, role := range []models.Role{models.RoleEditorGuard, models.RoleGeneralDriver, models.RoleComponent, models.RoleSystem, models.RoleOther} {
			if count, ok := stats.ByRole[role.String()]; ok {
				fmt.Printf("  %-15s %3d\n", role, count)
			}
		}
		fmt.Println()

		percentage := float64(stats.FromCache) / float64(stats.TotalSimulations) * 100
		fmt.Println("Generation:")
		fmt.Printf("  From cache:  %3d  (%.1f%%)\n", stats.FromCache, percentage)
		fmt.Printf("  From model:  %3d  (%.1f%%)\n", stats.TotalSimulations-stats.FromCache, 100-percentage)
		fmt.Println()
	}

	if len(stats.TopOrganisms) > 0 {
		fmt.Println("Organisms:")
		for _, o := range stats.TopOrganisms {
			fmt.Printf("  %-20s %3d\n", o.Organism, o.Count)
		}
		fmt.Println()
	}

	if stats.Cache != nil {
		fmt.Println("Response Cache:")
		fmt.Printf("  Entries:        %d (%d with embeddings)\n", stats.Cache.Entries, stats.Cache.Embedded)
		fmt.Printf("  Hits:           %d\n", stats.Cache.Hits)
		fmt.Printf("  Tokens stored:  %s in / %s out\n",
			humanize.Comma(int64(stats.Cache.InputTokens)),
			humanize.Comma(int64(stats.Cache.OutputTokens)))
		fmt.Println()
	}

	if len(stats.DailyActivity) > 0 {
		fmt.Println("Recent Activity:")
		limit := min(7, len(stats.DailyActivity))
		for i := 0; i < limit; i++ {
			da := stats.DailyActivity[i]
			bar := strings.Repeat("█", min(da.Count, 20))
			fmt.Printf("  %s  %3d  %s\n", da.Date, da.Count, bar)
		}
	}

	return nil
}
