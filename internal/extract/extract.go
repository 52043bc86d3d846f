// Package extract recovers named source files from a tagged model response.
//
// A tagged response looks like
//
//	1.EColiComponent.cs{ ...body... }2.EColiSystem.cs{ ...body... }
//
// Each block runs from its marker up to the next marker or the end of the
// text. The closing brace that terminates a block is not part of its body.
package extract

import (
	"regexp"
	"strings"

	"github.com/pders01/simforge/internal/format"
	"github.com/pders01/simforge/internal/models"
)

var markerPattern = regexp.MustCompile(`(\d+)\.([A-Za-z_]\w*\.\w+)\{`)

// Extract returns the blocks of response in order of first appearance. A
// filename seen twice keeps its first position and takes the later body.
// No markers yields an empty result.
func Extract(response string) models.Artifacts {
	locs := markerPattern.FindAllStringSubmatchIndex(response, -1)
	if len(locs) == 0 {
		return nil
	}

	var artifacts models.Artifacts
	index := make(map[string]int, len(locs))

	for i, loc := range locs {
		filename := response[loc[4]:loc[5]]
		end := len(response)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}

		artifact := models.CodeArtifact{
			Filename: filename,
			Raw:      body(response[loc[1]:end]),
			Role:     models.Classify(filename),
		}

		if pos, ok := index[filename]; ok {
			artifacts[pos] = artifact
			continue
		}
		index[filename] = len(artifacts)
		artifacts = append(artifacts, artifact)
	}

	return artifacts
}

// Process extracts and formats every block.
func Process(response string) models.Artifacts {
	artifacts := Extract(response)
	for i := range artifacts {
		artifacts[i].Formatted = format.Format(artifacts[i].Raw)
	}
	return artifacts
}

func body(segment string) string {
	segment = strings.TrimRightFunc(segment, isSpace)
	segment = strings.TrimSuffix(segment, "}")
	return strings.TrimSpace(segment)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
