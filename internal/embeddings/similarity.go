package embeddings

import (
	"fmt"
	"math"
	"sort"
)

// CosineSimilarity calculates the cosine similarity between two vectors
// Returns a value between -1 and 1, where 1 means identical direction
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have same length: %d vs %d", len(a), len(b))
	}

	if len(a) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}

	dotProduct := 0.0
	normA := 0.0
	normB := 0.0

	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("vector norm cannot be zero")
	}

	// Clamp to [-1, 1] to handle floating point errors
	return math.Max(-1, math.Min(1, dotProduct/(normA*normB))), nil
}

// Match is a scored candidate.
type Match struct {
	Index int
	Score float64
}

// Rank scores every candidate against query, best first. Candidates that
// cannot be compared (wrong length, zero norm) are skipped.
func Rank(query []float64, candidates [][]float64) []Match {
	var matches []Match
	for i, c := range candidates {
		score, err := CosineSimilarity(query, c)
		if err != nil {
			continue
		}
		matches = append(matches, Match{Index: i, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Best returns the highest scoring candidate at or above threshold.
func Best(query []float64, candidates [][]float64, threshold float64) (Match, bool) {
	ranked := Rank(query, candidates)
	if len(ranked) == 0 || ranked[0].Score < threshold {
		return Match{}, false
	}
	return ranked[0], true
}
