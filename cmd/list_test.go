package cmd

import (
	"testing"
	"time"

	"github.com/pders01/simforge/internal/models"
)

func resetListFlags() {
	listJSON = false
	listToon = false
	listSince = ""
	listSizes = false
}

func TestListNoSimulations(t *testing.T) {
	setupEnv(t)
	resetListFlags()

	if err := runList(nil, []string{}); err != nil {
		t.Fatalf("list command failed: %v", err)
	}
}

func TestListWithSimulations(t *testing.T) {
	tree := setupEnv(t)
	importTestSimulation(t, tree, "First")
	importTestSimulation(t, tree, "Second")

	for _, flags := range []func(){
		func() {},
		func() { listSizes = true },
		func() { listJSON = true },
		func() { listSince = "2000-01-01" },
	} {
		resetListFlags()
		flags()
		if err := runList(nil, []string{}); err != nil {
			t.Fatalf("list command failed: %v", err)
		}
	}
}

func TestListInvalidSince(t *testing.T) {
	tree := setupEnv(t)
	importTestSimulation(t, tree, "First")
	resetListFlags()
	listSince = "yesterday"

	if err := runList(nil, []string{}); err == nil {
		t.Fatal("expected an error for an invalid --since date")
	}
	resetListFlags()
}

func TestNewSimulationEntry(t *testing.T) {
	now := time.Now()
	sim := &models.Simulation{
		Name:      "EColi",
		CreatedAt: now,
		Metadata: &models.Metadata{
			Description: "green",
			Files:       []string{"a.cs", "b.cs"},
		},
	}

	e := newSimulationEntry(sim, "EColi")
	if !e.Loaded {
		t.Error("entry should be marked as loaded")
	}
	if e.Files != 2 {
		t.Errorf("files = %d, want 2", e.Files)
	}
	if e.Description != "green" {
		t.Errorf("description = %q", e.Description)
	}

	if newSimulationEntry(sim, "Other").Loaded {
		t.Error("entry should not be marked as loaded")
	}
}

func TestInfoCommand(t *testing.T) {
	tree := setupEnv(t)
	importTestSimulation(t, tree, "EColi")

	if err := runInfo(nil, []string{"EColi"}); err != nil {
		t.Fatalf("info command failed: %v", err)
	}
	if err := runInfo(nil, []string{"Nope"}); err == nil {
		t.Fatal("expected an error for a missing simulation")
	}
}
