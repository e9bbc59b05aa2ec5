package driven

import (
	"context"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// EpisodeReader reads ingested clinical episodes.
type EpisodeReader interface {
	// GetEpisode retrieves an episode by ID.
	// Returns domain.ErrNotFound when the episode does not exist.
	GetEpisode(ctx context.Context, id string) (*domain.ClinicalEpisode, error)

	// ListEpisodes returns all stored episodes, newest first.
	ListEpisodes(ctx context.Context) ([]domain.ClinicalEpisode, error)
}

// EpisodeWriter stores clinical episodes on ingestion.
type EpisodeWriter interface {
	// SaveEpisode stores or replaces an episode.
	SaveEpisode(ctx context.Context, episode *domain.ClinicalEpisode) error
}

// EpisodeStore combines episode reads and writes.
type EpisodeStore interface {
	EpisodeReader
	EpisodeWriter
}

// VersionStore persists EPC versions. Versions are append-only: a stored
// version is never modified.
type VersionStore interface {
	// SaveVersion commits a version together with its audit event.
	// Either both are stored or neither is.
	SaveVersion(ctx context.Context, version *domain.EPCVersion, event domain.AuditEvent) error

	// LatestVersion returns the highest numbered version for an episode.
	// Returns domain.ErrNotFound when the episode has no versions.
	LatestVersion(ctx context.Context, episodeID string) (*domain.EPCVersion, error)

	// GetVersion retrieves a version by EPC ID.
	GetVersion(ctx context.Context, epcID string) (*domain.EPCVersion, error)

	// ListVersions returns every version for an episode in ascending order.
	ListVersions(ctx context.Context, episodeID string) ([]domain.EPCVersion, error)
}

// FeedbackStore persists reviewer feedback. Entries are append-only.
type FeedbackStore interface {
	// SaveFeedback commits an entry together with its audit event.
	SaveFeedback(ctx context.Context, entry *domain.FeedbackEntry, event domain.AuditEvent) error

	// ListFeedback returns entries for an EPC in timestamp order.
	ListFeedback(ctx context.Context, epcID string) ([]domain.FeedbackEntry, error)
}

// EventStore persists the audit trail. Events are append-only.
type EventStore interface {
	// AppendEvent stores a standalone audit event.
	AppendEvent(ctx context.Context, event domain.AuditEvent) error

	// ListEvents returns audit events for an episode in time order.
	ListEvents(ctx context.Context, episodeID string) ([]domain.AuditEvent, error)
}
