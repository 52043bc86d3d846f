// Package testutil builds throwaway template and workspace trees for tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/pders01/simforge/internal/models"
)

// SystemBoilerplate mirrors the shape of the template's GeneralSystem.cs.
const SystemBoilerplate = `using Unity.Entities;
using Unity.Mathematics;
using Unity.Transforms;

public partial class GeneralSystem : SystemBase
{
    protected override void OnUpdate()
    {
        Entities.ForEach((ref LocalTransform transform, in GeneralComponent growth) =>
        {
            float t = growth.Progress;
            transform.Scale = math.lerp(initialScale, maxScale, t); }
        ).ScheduleParallel();
    }
}
`

// DriverBoilerplate mirrors the shape of the template's CreatePrefabsOnClick.cs.
const DriverBoilerplate = `using UnityEngine;

public class CreatePrefabsOnClick : MonoBehaviour
{
    private GameObject[] prefabs;

    private void CargarPrefabs() { prefabs = Resources.LoadAll<GameObject>("Prefabs"); }
}
`

// Tree is a directory tree on an afero filesystem.
type Tree struct {
	Fs   afero.Fs
	Root string
	T    *testing.T
}

// NewMemTree creates an in-memory tree rooted at /sim.
func NewMemTree(t *testing.T) *Tree {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/sim", 0o755); err != nil {
		t.Fatalf("failed to create root: %v", err)
	}
	return &Tree{Fs: fsys, Root: "/sim", T: t}
}

// NewOsTree creates a tree in a temporary directory on the real filesystem.
func NewOsTree(t *testing.T) *Tree {
	t.Helper()
	return &Tree{Fs: afero.NewOsFs(), Root: t.TempDir(), T: t}
}

// Path joins elem onto the tree root.
func (tr *Tree) Path(elem ...string) string {
	return filepath.Join(append([]string{tr.Root}, elem...)...)
}

// CreateFile creates a file in the tree
func (tr *Tree) CreateFile(name, content string) {
	tr.T.Helper()
	path := tr.Path(name)
	if err := tr.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tr.T.Fatalf("failed to create directory: %v", err)
	}
	if err := afero.WriteFile(tr.Fs, path, []byte(content), 0o644); err != nil {
		tr.T.Fatalf("failed to create file: %v", err)
	}
}

// Mkdir creates a directory in the tree
func (tr *Tree) Mkdir(name string) {
	tr.T.Helper()
	if err := tr.Fs.MkdirAll(tr.Path(name), 0o755); err != nil {
		tr.T.Fatalf("failed to create directory: %v", err)
	}
}

// ReadFile returns the content of a file, failing the test if it is missing.
func (tr *Tree) ReadFile(name string) string {
	tr.T.Helper()
	data, err := afero.ReadFile(tr.Fs, tr.Path(name))
	if err != nil {
		tr.T.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

// FileExists checks if a file or directory exists in the tree
func (tr *Tree) FileExists(name string) bool {
	tr.T.Helper()
	_, err := tr.Fs.Stat(tr.Path(name))
	return err == nil
}

// Files lists every regular file below dir, relative to the tree root.
func (tr *Tree) Files(dir string) []string {
	tr.T.Helper()
	var files []string
	err := afero.Walk(tr.Fs, tr.Path(dir), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(tr.Root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		tr.T.Fatalf("failed to walk %s: %v", dir, err)
	}
	return files
}

// SeedProject writes a minimal project skeleton with both boilerplates
// below dir.
func (tr *Tree) SeedProject(dir string) {
	tr.T.Helper()
	tr.CreateFile(filepath.Join(dir, models.SystemBoilerplate), SystemBoilerplate)
	tr.CreateFile(filepath.Join(dir, models.DriverBoilerplate), DriverBoilerplate)
	tr.CreateFile(filepath.Join(dir, models.AssetsDir, "Scenes", "Main.unity"), "%YAML 1.1\n")
	tr.CreateFile(filepath.Join(dir, models.PackagesDir, "manifest.json"), `{"dependencies":{}}`)
	tr.CreateFile(filepath.Join(dir, models.ProjectSettingsDir, "ProjectVersion.txt"), "m_EditorVersion: 6000.0.32f1\n")
}

// CountLines returns the number of lines containing substr.
func CountLines(content, substr string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}
