package cmd

import (
	"testing"

	"github.com/pders01/simforge/internal/cache"
	"github.com/pders01/simforge/internal/models"
)

func TestSearchNoSimulations(t *testing.T) {
	setupEnv(t)
	searchSemantic = false

	if err := runSearch(nil, []string{"yeast"}); err != nil {
		t.Fatalf("search command failed: %v", err)
	}
}

func TestSearchWithResults(t *testing.T) {
	tree := setupEnv(t)
	importTestSimulation(t, tree, "GreenEColi")
	searchSemantic = false

	if err := runSearch(nil, []string{"ecoli"}); err != nil {
		t.Fatalf("search command failed: %v", err)
	}
}

func TestCalculateRelevance(t *testing.T) {
	sim := &models.Simulation{
		Name: "GreenEColi",
		Metadata: &models.Metadata{
			Description: "a green bacterium",
			Files:       []string{"Assets/Scripts/Systems/EColiSystem.cs"},
		},
	}

	if calculateRelevance([]string{"yeast"}, sim) != 0 {
		t.Error("unrelated query should score zero")
	}

	nameScore := calculateRelevance([]string{"ecoli"}, sim)
	descScore := calculateRelevance([]string{"bacterium"}, sim)
	if nameScore <= descScore {
		t.Errorf("name match (%d) should outrank description match (%d)", nameScore, descScore)
	}
	if descScore == 0 {
		t.Error("description match should score")
	}
}

func TestRankEntries(t *testing.T) {
	entries := []cache.Entry{
		{ID: 1, Embedding: []float64{0, 1}},
		{ID: 2},
		{ID: 3, Embedding: []float64{1, 0}},
		{ID: 4, Embedding: []float64{0.9, 0.1}},
	}

	got := rankEntries([]float64{1, 0}, entries, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Entry.ID != 3 || got[1].Entry.ID != 4 {
		t.Errorf("unexpected order: %d, %d", got[0].Entry.ID, got[1].Entry.ID)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
}
