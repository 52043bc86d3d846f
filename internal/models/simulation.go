package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Well-known subtrees of a simulation project. The order is the order a
// full sync visits them.
const (
	AssetsDir          = "Assets"
	PackagesDir        = "Packages"
	ProjectSettingsDir = "ProjectSettings"
)

// Subtrees lists every project subtree copied during a full sync.
var Subtrees = []string{AssetsDir, PackagesDir, ProjectSettingsDir}

// Boilerplate files shipped with the template, relative to the project root.
var (
	SystemBoilerplate = filepath.Join(AssetsDir, "Scripts", "Systems", "GeneralSystem.cs")
	DriverBoilerplate = filepath.Join(AssetsDir, "Scripts", "General", "CreatePrefabsOnClick.cs")
)

// Content folders the importer guarantees inside a project.
var (
	EditorDir     = filepath.Join(AssetsDir, "Editor")
	ComponentsDir = filepath.Join(AssetsDir, "Scripts", "Components")
	SystemsDir    = filepath.Join(AssetsDir, "Scripts", "Systems")
	GeneralDir    = filepath.Join(AssetsDir, "Scripts", "General")
)

// Simulation is a named project derived from the template.
type Simulation struct {
	Name         string
	Path         string
	Metadata     *Metadata
	CreatedAt    time.Time
	LastOpenedAt *time.Time
	SizeBytes    int64
}

// LastOpened renders the last-opened timestamp for humans.
func (s *Simulation) LastOpened() string {
	if s.LastOpenedAt == nil {
		return "Never"
	}
	return s.LastOpenedAt.Format("2006-01-02 15:04")
}

// MetadataPath returns the path to simulation.yaml for a project root
func MetadataPath(root string) string {
	return filepath.Join(root, MetadataFile)
}

// ValidateName rejects names that cannot be used as a directory name on
// any of the supported platforms.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("simulation name cannot be empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid simulation name %q", name)
	}
	if strings.ContainsAny(name, `<>:"/\|?*`) {
		return fmt.Errorf("simulation name %q contains a forbidden character", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("simulation name %q contains a control character", name)
		}
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return fmt.Errorf("simulation name %q cannot end with a dot or space", name)
	}
	return nil
}
