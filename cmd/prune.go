package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/config"
	"github.com/pders01/simforge/internal/models"
)

var (
	pruneDryRun bool
	pruneForce  bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old simulations based on retention policy",
	Long: `Remove simulations that have not been opened within the retention period.
Simulations that were never loaded are aged by their creation time.

The retention policy is configured in ~/.config/simforge/config.toml:
  [retention]
  days = 90
  preserve = ["GreenEColi"]

Preserved simulations and the simulation loaded in the workspace are
never pruned.

Example:
  simforge prune              # Show what would be pruned
  simforge prune --force      # Actually prune simulations`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", true, "Show what would be pruned without deleting")
	pruneCmd.Flags().BoolVar(&pruneForce, "force", false, "Actually delete simulations (overrides dry-run)")
}

type pruneCandidate struct {
	Sim    *models.Simulation
	Age    time.Duration
	Reason string
}

func runPrune(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	retentionDays := config.GetRetentionDays()
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	fmt.Printf("Retention policy: %d days\n", retentionDays)
	fmt.Printf("Preserve: %v\n", config.GetPreserve())
	fmt.Printf("Cutoff date: %s\n\n", cutoffDate.Format("2006-01-02"))

	sims, err := a.store.List()
	if err != nil {
		return fmt.Errorf("failed to list simulations: %w", err)
	}
	if len(sims) == 0 {
		fmt.Println("No simulations found")
		return nil
	}

	loaded, _ := a.sync.Marker()
	toPrune, toPreserve := pruneCandidates(sims, loaded, cutoffDate, retentionDays)

	if len(toPrune) == 0 {
		fmt.Println("No simulations to prune")
		return nil
	}

	fmt.Printf("Simulations to prune (%d):\n\n", len(toPrune))
	for _, c := range toPrune {
		fmt.Printf("  %s\n", c.Sim.Name)
		fmt.Printf("    Age:    %s\n", formatDuration(c.Age))
		fmt.Printf("    Reason: %s\n", c.Reason)
		fmt.Println()
	}

	if len(toPreserve) > 0 {
		fmt.Printf("Simulations to preserve (%d):\n\n", len(toPreserve))
		for _, c := range toPreserve {
			fmt.Printf("  %s\n", c.Sim.Name)
			fmt.Printf("    Age:    %s\n", formatDuration(c.Age))
			fmt.Printf("    Reason: %s\n", c.Reason)
			fmt.Println()
		}
	}

	if !pruneForce {
		fmt.Println("\nThis is a dry run. Use --force to actually prune simulations.")
		return nil
	}

	p, cleanup, err := a.pipeline(pipelineOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println("Pruning simulations...")
	pruned := 0
	for _, c := range toPrune {
		fmt.Printf("  Deleting %s...\n", c.Sim.Name)
		if err := p.Delete(c.Sim.Name); err != nil {
			fmt.Printf("    Error: %v\n", err)
			continue
		}
		pruned++
		fmt.Printf("    ✓ Deleted\n")
	}
	fmt.Printf("\n✓ Pruned %d simulation(s)\n", pruned)

	return nil
}

// pruneCandidates splits sims into those past the cutoff and those kept.
func pruneCandidates(sims []*models.Simulation, loaded string, cutoff time.Time, days int) (toPrune, toPreserve []pruneCandidate) {
	for _, sim := range sims {
		last := sim.CreatedAt
		if sim.LastOpenedAt != nil {
			last = *sim.LastOpenedAt
		}
		c := pruneCandidate{Sim: sim, Age: time.Since(last)}

		switch {
		case config.ShouldPreserve(sim.Name):
			c.Reason = "preserved"
			toPreserve = append(toPreserve, c)
		case sim.Name == loaded:
			c.Reason = "loaded in workspace"
			toPreserve = append(toPreserve, c)
		case last.Before(cutoff):
			c.Reason = fmt.Sprintf("not opened in %d days", days)
			toPrune = append(toPrune, c)
		default:
			c.Reason = "within retention period"
			toPreserve = append(toPreserve, c)
		}
	}
	return toPrune, toPreserve
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days == 0 {
		return "< 1 day"
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
