package driven

import (
	"context"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// ExtractorRegistry selects the appropriate extractor for an episode.
// It never fails outright: unknown source types and extractor errors fall
// back to a free-text scan flagged as degraded.
type ExtractorRegistry interface {
	// Extract runs the best matching extractor, falling back when needed.
	Extract(ctx context.Context, episode *domain.ClinicalEpisode) *domain.ExtractedContent

	// Register adds an extractor to the registry.
	Register(extractor Extractor)

	// SourceTypes returns all source types with a dedicated extractor.
	SourceTypes() []domain.SourceType
}
