// Package vector holds the similarity maths shared by the exemplar index
// backends that search in process.
package vector

import (
	"math"
	"sort"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// CosineSimilarity computes similarity between two embeddings.
// Returns 0 if the vectors differ in length or either is zero.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Candidate is a stored exemplar with its vector.
type Candidate struct {
	Exemplar domain.Exemplar
	Vector   []float32
}

// Matches reports whether the candidate passes the filter.
func (c Candidate) Matches(f driven.ExemplarFilter) bool {
	if f.Section != "" && c.Exemplar.Section != f.Section {
		return false
	}
	if f.ExcludeEpisode != "" && c.Exemplar.EpisodeID == f.ExcludeEpisode {
		return false
	}
	return true
}

// TopK scores candidates against the query and returns the k best,
// highest similarity first. Ties keep candidate order.
func TopK(query []float32, candidates []Candidate, k int, f driven.ExemplarFilter) []driven.ExemplarHit {
	if k <= 0 {
		return nil
	}
	hits := make([]driven.ExemplarHit, 0, len(candidates))
	for _, c := range candidates {
		if !c.Matches(f) {
			continue
		}
		hits = append(hits, driven.ExemplarHit{
			Exemplar:   c.Exemplar,
			Similarity: CosineSimilarity(query, c.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
