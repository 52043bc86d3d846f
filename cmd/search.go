package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/cache"
	"github.com/pders01/simforge/internal/embeddings"
	"github.com/pders01/simforge/internal/models"
	"github.com/pders01/simforge/internal/ollama"
)

var (
	searchSemantic bool
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search simulations and cached responses",
	Long: `Search simulation names, descriptions and generated files, plus the
prompts stored in the response cache.

With --semantic the cache is ranked by embedding similarity instead of
keyword matching. This needs Ollama and the configured embedding model.

Examples:
  simforge search yeast
  simforge search "green bacteria" --semantic`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().BoolVar(&searchSemantic, "semantic", false, "Rank cached prompts by embedding similarity")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum cached prompts to show")
}

type searchResult struct {
	Sim   *models.Simulation
	Score int
}

type cacheResult struct {
	Entry cache.Entry
	Score float64
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	queryWords := strings.Fields(strings.ToLower(query))

	a, err := newApp()
	if err != nil {
		return err
	}

	sims, err := a.store.List()
	if err != nil {
		return fmt.Errorf("failed to list simulations: %w", err)
	}

	var results []searchResult
	for _, s := range sims {
		if score := calculateRelevance(queryWords, s); score > 0 {
			results = append(results, searchResult{Sim: s, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) == 0 {
		fmt.Println("No simulations match the search query")
	} else {
		fmt.Printf("Found %d matching simulation(s):\n\n", len(results))
		for i, r := range results {
			fmt.Printf("%d. %s [score: %d]\n", i+1, r.Sim.Name, r.Score)
			fmt.Printf("   Created: %s\n", r.Sim.CreatedAt.Format("2006-01-02 15:04"))
			if r.Sim.Metadata != nil && r.Sim.Metadata.Description != "" {
				fmt.Printf("   Description: %s\n", truncate(r.Sim.Metadata.Description, 80))
			}
			fmt.Println()
		}
	}

	rc, err := a.openCache()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: response cache unavailable: %v\n", err)
		return nil
	}
	if rc == nil {
		return nil
	}
	defer rc.Close()

	ctx := context.Background()
	var cached []cacheResult
	if searchSemantic {
		cached, err = semanticSearch(ctx, a, rc, query)
	} else {
		var entries []cache.Entry
		entries, err = rc.Search(ctx, query, searchLimit)
		for _, e := range entries {
			cached = append(cached, cacheResult{Entry: e})
		}
	}
	if err != nil {
		return fmt.Errorf("failed to search cache: %w", err)
	}

	if len(cached) == 0 {
		fmt.Println("No cached responses match the search query")
		return nil
	}

	fmt.Printf("Found %d cached response(s):\n\n", len(cached))
	for i, r := range cached {
		header := fmt.Sprintf("%d. #%d", i+1, r.Entry.ID)
		if searchSemantic {
			header += fmt.Sprintf(" [similarity: %.3f]", r.Score)
		}
		fmt.Println(header)
		fmt.Printf("   Prompt:  %s\n", truncate(r.Entry.Prompt, 80))
		fmt.Printf("   Created: %s\n", r.Entry.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("   Hits:    %d\n", r.Entry.Hits)
		fmt.Println()
	}

	return nil
}

func semanticSearch(ctx context.Context, a *app, rc *cache.Cache, query string) ([]cacheResult, error) {
	url := a.cfg.LLM.URL
	if !ollama.IsAvailable(url) {
		return nil, fmt.Errorf("ollama is not running at %s", url)
	}
	client, err := ollama.NewClient(url, a.cfg.LLM.EmbeddingModel, a.cfg.LLM.Timeout)
	if err != nil {
		return nil, err
	}
	vec, err := client.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	entries, err := rc.All(ctx)
	if err != nil {
		return nil, err
	}
	return rankEntries(vec, entries, searchLimit), nil
}

// rankEntries orders entries with embeddings by similarity to vec.
func rankEntries(vec []float64, entries []cache.Entry, limit int) []cacheResult {
	var (
		embedded   []cache.Entry
		candidates [][]float64
	)
	for _, e := range entries {
		if len(e.Embedding) > 0 {
			embedded = append(embedded, e)
			candidates = append(candidates, e.Embedding)
		}
	}

	var results []cacheResult
	for _, m := range embeddings.Rank(vec, candidates) {
		if limit > 0 && len(results) == limit {
			break
		}
		results = append(results, cacheResult{Entry: embedded[m.Index], Score: m.Score})
	}
	return results
}

func calculateRelevance(queryWords []string, sim *models.Simulation) int {
	score := 0
	name := strings.ToLower(sim.Name)
	searchableText := name
	var files []string
	if sim.Metadata != nil {
		files = sim.Metadata.Files
		searchableText += " " + strings.ToLower(sim.Metadata.Description+" "+strings.Join(files, " "))
	}

	for _, word := range queryWords {
		score += strings.Count(searchableText, word) * 10

		if strings.Contains(name, word) {
			score += 50
		}

		for _, f := range files {
			if strings.Contains(strings.ToLower(f), word) {
				score += 30
			}
		}
	}

	return score
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
