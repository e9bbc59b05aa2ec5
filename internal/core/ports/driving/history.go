package driving

import (
	"context"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// HistoryService reads stored versions and records reviewer feedback.
// There is no deletion API.
type HistoryService interface {
	// Latest returns the newest version for an episode.
	Latest(ctx context.Context, episodeID string) (*domain.EPCVersion, error)

	// History returns every version for an episode, ascending by number.
	History(ctx context.Context, episodeID string) ([]domain.EPCVersion, error)

	// Version returns a version by EPC ID.
	Version(ctx context.Context, epcID string) (*domain.EPCVersion, error)

	// RecordFeedback validates and appends a feedback entry.
	RecordFeedback(ctx context.Context, entry domain.FeedbackEntry) (*domain.FeedbackEntry, error)

	// Feedback returns the feedback recorded for a version.
	Feedback(ctx context.Context, epcID string) ([]domain.FeedbackEntry, error)

	// FeedbackSummary counts feedback per section and rating.
	FeedbackSummary(ctx context.Context, epcID string) (*domain.FeedbackSummary, error)

	// Events returns the audit trail of the version's episode.
	Events(ctx context.Context, epcID string) ([]domain.AuditEvent, error)
}
