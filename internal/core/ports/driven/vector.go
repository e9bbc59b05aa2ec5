package driven

import (
	"context"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// ExemplarIndex stores exemplar vectors and answers similarity queries.
// Only this query/upsert contract is consumed; indexing internals belong
// to the backend.
type ExemplarIndex interface {
	// Upsert inserts or replaces an exemplar and its vector.
	Upsert(ctx context.Context, exemplar domain.Exemplar, vector []float32) error

	// Search finds the k exemplars nearest to the query vector.
	Search(ctx context.Context, query []float32, k int, filter ExemplarFilter) ([]ExemplarHit, error)

	// Close releases resources.
	Close() error
}

// ExemplarFilter narrows a search.
type ExemplarFilter struct {
	// Section restricts hits to one section. Empty matches all.
	Section domain.SectionName

	// ExcludeEpisode drops exemplars taken from this episode.
	ExcludeEpisode string
}

// ExemplarHit is a similarity search result.
type ExemplarHit struct {
	Exemplar domain.Exemplar

	// Similarity is the cosine similarity score.
	Similarity float32
}
