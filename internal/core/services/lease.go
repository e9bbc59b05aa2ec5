package services

import (
	"sync"
	"time"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// runLease allows at most one in-flight run per episode.
type runLease struct {
	mu     sync.RWMutex
	active map[string]*domain.RunStatus
}

func newRunLease() *runLease {
	return &runLease{active: make(map[string]*domain.RunStatus)}
}

// acquire claims the episode. It returns a release function, or
// domain.ErrConcurrentRun when a run is already in flight.
func (l *runLease) acquire(episodeID string, sections int) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[episodeID]; busy {
		return nil, domain.ErrConcurrentRun
	}
	l.active[episodeID] = &domain.RunStatus{
		EpisodeID: episodeID,
		State:     domain.StateExtracting,
		StartedAt: time.Now(),
		Sections:  sections,
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, episodeID)
			l.mu.Unlock()
		})
	}, nil
}

func (l *runLease) setState(episodeID string, state domain.RunState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.active[episodeID]; ok {
		s.State = state
	}
}

func (l *runLease) sectionDone(episodeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.active[episodeID]; ok {
		s.Completed++
	}
}

// status returns a copy of the run status.
func (l *runLease) status(episodeID string) (*domain.RunStatus, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.active[episodeID]
	if !ok {
		return nil, false
	}
	c := *s
	return &c, true
}
