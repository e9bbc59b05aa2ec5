package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driving"
	"github.com/custodia-labs/epicrisis/internal/logger"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// Ensure EpisodeService implements the interface.
var _ driving.EpisodeService = (*EpisodeService)(nil)

// EpisodeOption configures an EpisodeService.
type EpisodeOption func(*EpisodeService)

// WithNormalisers sets the registry used by Import.
func WithNormalisers(normalisers driven.NormaliserRegistry) EpisodeOption {
	return func(s *EpisodeService) {
		s.normalisers = normalisers
	}
}

// EpisodeService ingests clinical episodes and exposes their facts.
type EpisodeService struct {
	store       driven.EpisodeStore
	registry    driven.ExtractorRegistry
	rules       *rules.Engine
	normalisers driven.NormaliserRegistry
}

// NewEpisodeService creates a new episode service.
func NewEpisodeService(
	store driven.EpisodeStore,
	registry driven.ExtractorRegistry,
	engine *rules.Engine,
	opts ...EpisodeOption,
) *EpisodeService {
	s := &EpisodeService{
		store:    store,
		registry: registry,
		rules:    engine,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores a raw episode. An empty source type defaults to free text.
func (s *EpisodeService) Ingest(ctx context.Context, id string, sourceType domain.SourceType, raw []byte) (*domain.ClinicalEpisode, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: episode id is required", domain.ErrInvalidInput)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: episode %s has no content", domain.ErrInvalidInput, id)
	}
	if sourceType == "" {
		sourceType = domain.SourceFreeText
	}
	if !sourceType.IsKnown() {
		logger.Warn("Episode %s has unknown source type %q; extraction will fall back to free text", id, sourceType)
	}

	episode := &domain.ClinicalEpisode{
		ID:         id,
		SourceType: sourceType,
		Raw:        raw,
		IngestedAt: time.Now(),
	}
	if err := s.store.SaveEpisode(ctx, episode); err != nil {
		return nil, fmt.Errorf("save episode: %w", err)
	}
	logger.Info("Ingested episode %s (%s, %d bytes)", id, sourceType, len(raw))
	return episode, nil
}

// Import normalises a document file to free text and stores it. Without a
// normaliser registry the bytes are stored unchanged.
func (s *EpisodeService) Import(ctx context.Context, id, filename string, raw []byte) (*domain.ClinicalEpisode, error) {
	if s.normalisers == nil {
		return s.Ingest(ctx, id, domain.SourceFreeText, raw)
	}

	n := s.normalisers.ForFile(filename)
	text, err := n.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalise %s as %s: %w", filepath.Base(filename), n.Format(), err)
	}
	logger.Debug("Normalised %s as %s (%d -> %d bytes)", filepath.Base(filename), n.Format(), len(raw), len(text))
	return s.Ingest(ctx, id, domain.SourceFreeText, []byte(text))
}

// Get retrieves a stored episode.
func (s *EpisodeService) Get(ctx context.Context, id string) (*domain.ClinicalEpisode, error) {
	return s.store.GetEpisode(ctx, id)
}

// List returns every stored episode.
func (s *EpisodeService) List(ctx context.Context) ([]domain.ClinicalEpisode, error) {
	return s.store.ListEpisodes(ctx)
}

// Facts extracts an episode and evaluates the rule tables against it.
func (s *EpisodeService) Facts(ctx context.Context, id string) (*domain.ExtractedContent, *domain.RuleFacts, error) {
	episode, err := s.store.GetEpisode(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get episode: %w", err)
	}
	content := s.registry.Extract(ctx, episode)
	facts := s.rules.Evaluate(content)
	return content, &facts, nil
}
