package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/epicrisis/internal/adapters/driven/vector"
	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// Ensure ExemplarIndex implements the interface.
var _ driven.ExemplarIndex = (*ExemplarIndex)(nil)

// ExemplarIndex is an in-memory brute-force exemplar index.
type ExemplarIndex struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]vector.Candidate
}

// NewExemplarIndex creates an empty index.
func NewExemplarIndex() *ExemplarIndex {
	return &ExemplarIndex{
		entries: make(map[string]vector.Candidate),
	}
}

// Upsert inserts or replaces an exemplar.
func (x *ExemplarIndex) Upsert(_ context.Context, exemplar domain.Exemplar, vec []float32) error {
	if exemplar.ID == "" || len(vec) == 0 {
		return domain.ErrInvalidInput
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.entries[exemplar.ID]; !ok {
		x.order = append(x.order, exemplar.ID)
	}
	x.entries[exemplar.ID] = vector.Candidate{
		Exemplar: exemplar,
		Vector:   append([]float32(nil), vec...),
	}
	return nil
}

// Search returns the k nearest exemplars.
func (x *ExemplarIndex) Search(_ context.Context, query []float32, k int, filter driven.ExemplarFilter) ([]driven.ExemplarHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	candidates := make([]vector.Candidate, 0, len(x.order))
	for _, id := range x.order {
		candidates = append(candidates, x.entries[id])
	}
	return vector.TopK(query, candidates, k, filter), nil
}

// Len returns the number of stored exemplars.
func (x *ExemplarIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Close is a no-op.
func (x *ExemplarIndex) Close() error {
	return nil
}
