package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/pders01/simforge/internal/testutil"
)

const testResponse = `1.PrefabMaterialCreator.cs{Debug.Log("a");}2.EColiComponent.cs{public struct EColiComponent{}}3.EColiSystem.cs{float t = 1;}`

// setupEnv points every configured path into a fresh temporary tree.
func setupEnv(t *testing.T) *testutil.Tree {
	t.Helper()
	tree := testutil.NewOsTree(t)
	tree.SeedProject("Template")
	tree.Mkdir("Simulations")
	tree.Mkdir("Workspace")

	t.Setenv("HOME", tree.Path("home"))
	viper.Set("paths.simulations", tree.Path("Simulations"))
	viper.Set("paths.template", tree.Path("Template"))
	viper.Set("workspace.root", tree.Path("Workspace"))
	viper.Set("cache.enabled", true)
	viper.Set("cache.path", tree.Path("cache", "responses.db"))
	viper.Set("tool.executable", "")
	viper.Set("retention.days", 90)
	viper.Set("retention.preserve", []string{})

	return tree
}

// importTestSimulation imports testResponse as name through the import command.
func importTestSimulation(t *testing.T, tree *testutil.Tree, name string) {
	t.Helper()
	responseFile := filepath.Join(tree.Root, name+".txt")
	if err := os.WriteFile(responseFile, []byte(testResponse), 0o644); err != nil {
		t.Fatalf("failed to write response: %v", err)
	}

	importLoad = false
	if err := runImport(nil, []string{name, responseFile}); err != nil {
		t.Fatalf("failed to import %s: %v", name, err)
	}
}
