package models

import "strings"

// Role decides where an artifact lands inside a project.
type Role int

const (
	RoleOther Role = iota
	RoleEditorGuard
	RoleComponent
	RoleSystem
	RoleGeneralDriver
)

const (
	editorGuardFile   = "PrefabMaterialCreator.cs"
	generalDriverFile = "CreatePrefabsOnClick.cs"
	componentSuffix   = "Component.cs"
	systemSuffix      = "System.cs"
)

func (r Role) String() string {
	switch r {
	case RoleEditorGuard:
		return "editor"
	case RoleComponent:
		return "component"
	case RoleSystem:
		return "system"
	case RoleGeneralDriver:
		return "driver"
	default:
		return "other"
	}
}

// Classify derives the role from a filename. Checks run in a fixed order so
// a name matching several rules always gets the first one.
func Classify(filename string) Role {
	switch {
	case filename == editorGuardFile:
		return RoleEditorGuard
	case strings.Contains(filename, componentSuffix):
		return RoleComponent
	case strings.Contains(filename, systemSuffix):
		return RoleSystem
	case filename == generalDriverFile:
		return RoleGeneralDriver
	default:
		return RoleOther
	}
}

// Organism returns the prefix in front of "System.cs", e.g. "EColi" for
// "EColiSystem.cs".
func Organism(filename string) string {
	return strings.ReplaceAll(filename, systemSuffix, "")
}

// CodeArtifact is one file recovered from a tagged response.
type CodeArtifact struct {
	Filename  string
	Raw       string
	Formatted string
	Role      Role
}

// Content returns the formatted body when available.
func (a CodeArtifact) Content() string {
	if a.Formatted != "" {
		return a.Formatted
	}
	return a.Raw
}

// Artifacts keeps extraction order.
type Artifacts []CodeArtifact

// Names returns the filenames in order.
func (as Artifacts) Names() []string {
	names := make([]string, len(as))
	for i, a := range as {
		names[i] = a.Filename
	}
	return names
}

// Get returns the artifact with the given filename.
func (as Artifacts) Get(filename string) (CodeArtifact, bool) {
	for _, a := range as {
		if a.Filename == filename {
			return a, true
		}
	}
	return CodeArtifact{}, false
}
