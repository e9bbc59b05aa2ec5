package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interfaces.
var (
	_ driven.VersionStore  = (*HistoryStore)(nil)
	_ driven.FeedbackStore = (*HistoryStore)(nil)
	_ driven.EventStore    = (*HistoryStore)(nil)
)

// HistoryStore keeps versions, feedback and audit events in memory.
// A single lock covers all three so a version and its event land together.
type HistoryStore struct {
	mu       sync.RWMutex
	versions map[string][]domain.EPCVersion // by episode, ascending
	byID     map[string]string              // epc id -> episode id
	feedback map[string][]domain.FeedbackEntry
	events   []domain.AuditEvent
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		versions: make(map[string][]domain.EPCVersion),
		byID:     make(map[string]string),
		feedback: make(map[string][]domain.FeedbackEntry),
	}
}

// SaveVersion appends a version and its audit event.
func (s *HistoryStore) SaveVersion(_ context.Context, version *domain.EPCVersion, event domain.AuditEvent) error {
	if version == nil || version.ID == "" || version.EpisodeID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[version.ID]; ok {
		return fmt.Errorf("version %s: %w", version.ID, domain.ErrAlreadyExists)
	}
	for _, v := range s.versions[version.EpisodeID] {
		if v.Number == version.Number {
			return fmt.Errorf("version %d of %s: %w", version.Number, version.EpisodeID, domain.ErrAlreadyExists)
		}
	}

	s.versions[version.EpisodeID] = append(s.versions[version.EpisodeID], copyVersion(*version))
	sort.Slice(s.versions[version.EpisodeID], func(i, j int) bool {
		vs := s.versions[version.EpisodeID]
		return vs[i].Number < vs[j].Number
	})
	s.byID[version.ID] = version.EpisodeID
	s.events = append(s.events, event)
	return nil
}

// LatestVersion returns the highest numbered version for an episode.
func (s *HistoryStore) LatestVersion(_ context.Context, episodeID string) (*domain.EPCVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[episodeID]
	if len(vs) == 0 {
		return nil, domain.ErrNotFound
	}
	v := copyVersion(vs[len(vs)-1])
	return &v, nil
}

// GetVersion retrieves a version by EPC ID.
func (s *HistoryStore) GetVersion(_ context.Context, epcID string) (*domain.EPCVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	episodeID, ok := s.byID[epcID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for _, v := range s.versions[episodeID] {
		if v.ID == epcID {
			c := copyVersion(v)
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListVersions returns every version for an episode in ascending order.
func (s *HistoryStore) ListVersions(_ context.Context, episodeID string) ([]domain.EPCVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[episodeID]
	out := make([]domain.EPCVersion, 0, len(vs))
	for _, v := range vs {
		out = append(out, copyVersion(v))
	}
	return out, nil
}

// SaveFeedback appends a feedback entry and its audit event.
func (s *HistoryStore) SaveFeedback(_ context.Context, entry *domain.FeedbackEntry, event domain.AuditEvent) error {
	if entry == nil || entry.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[entry.EPCID]; !ok {
		return fmt.Errorf("version %s: %w", entry.EPCID, domain.ErrNotFound)
	}
	s.feedback[entry.EPCID] = append(s.feedback[entry.EPCID], *entry)
	s.events = append(s.events, event)
	return nil
}

// ListFeedback returns entries for an EPC in timestamp order.
func (s *HistoryStore) ListFeedback(_ context.Context, epcID string) ([]domain.FeedbackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.FeedbackEntry(nil), s.feedback[epcID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// AppendEvent stores a standalone audit event.
func (s *HistoryStore) AppendEvent(_ context.Context, event domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListEvents returns audit events for an episode in time order.
func (s *HistoryStore) ListEvents(_ context.Context, episodeID string) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEvent
	for _, e := range s.events {
		if e.EpisodeID == episodeID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.Before(out[j].At)
	})
	return out, nil
}

func copyVersion(v domain.EPCVersion) domain.EPCVersion {
	v.Document = v.Document.Clone()
	return v
}
