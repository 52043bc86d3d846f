package models

import "time"

// MetadataFile is stored at the root of every simulation project.
const MetadataFile = "simulation.yaml"

// Metadata represents the simulation.yaml structure for a project
type Metadata struct {
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description,omitempty"`
	CreatedAt    time.Time  `yaml:"created_at"`
	LastOpenedAt *time.Time `yaml:"last_opened_at,omitempty"`
	Files        []string   `yaml:"files,omitempty"`
	Cached       bool       `yaml:"cached,omitempty"`
}
