package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driving"
	"github.com/custodia-labs/epicrisis/internal/logger"
)

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// HistoryService reads versions and records reviewer feedback.
type HistoryService struct {
	versions  driven.VersionStore
	feedback  driven.FeedbackStore
	events    driven.EventStore
	retriever *Retriever
	now       func() time.Time
}

// NewHistoryService creates a history service. retriever may be nil, in
// which case ok-rated sections are not remembered as exemplars.
func NewHistoryService(
	versions driven.VersionStore,
	feedback driven.FeedbackStore,
	events driven.EventStore,
	retriever *Retriever,
) *HistoryService {
	return &HistoryService{
		versions:  versions,
		feedback:  feedback,
		events:    events,
		retriever: retriever,
		now:       time.Now,
	}
}

// Latest returns the newest version for an episode.
func (s *HistoryService) Latest(ctx context.Context, episodeID string) (*domain.EPCVersion, error) {
	return s.versions.LatestVersion(ctx, episodeID)
}

// History returns every version for an episode, ascending by number.
func (s *HistoryService) History(ctx context.Context, episodeID string) ([]domain.EPCVersion, error) {
	return s.versions.ListVersions(ctx, episodeID)
}

// Version returns a version by EPC ID.
func (s *HistoryService) Version(ctx context.Context, epcID string) (*domain.EPCVersion, error) {
	return s.versions.GetVersion(ctx, epcID)
}

// RecordFeedback validates an entry, stores it with its audit event and,
// for ok ratings, remembers the section as an exemplar.
func (s *HistoryService) RecordFeedback(ctx context.Context, entry domain.FeedbackEntry) (*domain.FeedbackEntry, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	entry.Normalize()

	version, err := s.versions.GetVersion(ctx, entry.EPCID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("version %s: %w", entry.EPCID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get version: %w", err)
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if strings.TrimSpace(entry.Author) == "" {
		entry.Author = domain.DefaultActor
	}
	section := version.Document.Section(entry.Section)
	if entry.OriginalContent == "" && section != nil {
		entry.OriginalContent = strings.Join(section.Lines(), "\n")
	}

	event := domain.AuditEvent{
		ID:        uuid.New().String(),
		EPCID:     entry.EPCID,
		EpisodeID: version.EpisodeID,
		Actor:     entry.Author,
		Action:    domain.ActionFeedbackRecorded,
		At:        entry.Timestamp,
	}
	if err := s.feedback.SaveFeedback(ctx, &entry, event); err != nil {
		return nil, fmt.Errorf("save feedback: %w", err)
	}
	logger.Info("Recorded %s feedback on %s/%s", entry.Rating, entry.EPCID, entry.Section)

	if entry.Rating == domain.RatingOK && s.retriever.Enabled() && entry.OriginalContent != "" {
		exemplar := domain.Exemplar{
			Section:      entry.Section,
			Context:      version.Inputs.Extracted.Text,
			Content:      entry.OriginalContent,
			EpisodeID:    version.EpisodeID,
			FromFeedback: true,
		}
		if err := s.retriever.Remember(ctx, exemplar); err != nil {
			logger.Warn("Could not remember exemplar from %s/%s: %v", entry.EPCID, entry.Section, err)
		}
	}
	return &entry, nil
}

// Feedback returns the feedback recorded for a version.
func (s *HistoryService) Feedback(ctx context.Context, epcID string) ([]domain.FeedbackEntry, error) {
	return s.feedback.ListFeedback(ctx, epcID)
}

// FeedbackSummary counts feedback per section and rating.
func (s *HistoryService) FeedbackSummary(ctx context.Context, epcID string) (*domain.FeedbackSummary, error) {
	entries, err := s.feedback.ListFeedback(ctx, epcID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	summary := domain.Summarize(epcID, entries)
	return &summary, nil
}

// Events returns the audit trail of the version's episode.
func (s *HistoryService) Events(ctx context.Context, epcID string) ([]domain.AuditEvent, error) {
	version, err := s.versions.GetVersion(ctx, epcID)
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return s.events.ListEvents(ctx, version.EpisodeID)
}
