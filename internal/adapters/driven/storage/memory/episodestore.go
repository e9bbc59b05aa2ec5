package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// Ensure EpisodeStore implements the interface.
var _ driven.EpisodeStore = (*EpisodeStore)(nil)

// EpisodeStore is an in-memory implementation of driven.EpisodeStore.
type EpisodeStore struct {
	mu       sync.RWMutex
	episodes map[string]domain.ClinicalEpisode
}

// NewEpisodeStore creates a new in-memory episode store.
func NewEpisodeStore() *EpisodeStore {
	return &EpisodeStore{
		episodes: make(map[string]domain.ClinicalEpisode),
	}
}

// SaveEpisode stores or replaces an episode.
func (s *EpisodeStore) SaveEpisode(_ context.Context, episode *domain.ClinicalEpisode) error {
	if episode == nil || episode.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ep := *episode
	ep.Raw = append([]byte(nil), episode.Raw...)
	s.episodes[ep.ID] = ep
	return nil
}

// GetEpisode retrieves an episode by ID.
func (s *EpisodeStore) GetEpisode(_ context.Context, id string) (*domain.ClinicalEpisode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.episodes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	ep.Raw = append([]byte(nil), ep.Raw...)
	return &ep, nil
}

// ListEpisodes returns all episodes, newest first.
func (s *EpisodeStore) ListEpisodes(_ context.Context) ([]domain.ClinicalEpisode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ClinicalEpisode, 0, len(s.episodes))
	for _, ep := range s.episodes {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IngestedAt.Equal(out[j].IngestedAt) {
			return out[i].IngestedAt.After(out[j].IngestedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
