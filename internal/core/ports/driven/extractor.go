package driven

import (
	"context"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// Extractor turns a clinical episode into extracted content.
// Each extractor handles specific source types.
type Extractor interface {
	// Name identifies the extractor in logs and warnings.
	Name() string

	// SourceTypes returns the source types this extractor handles.
	SourceTypes() []domain.SourceType

	// Priority returns the selection priority (higher = preferred).
	// Structured extractors should return 60-100.
	// Generic text extractors should return 10-59.
	// Fallback extractors should return 1-9.
	Priority() int

	// Extract produces content from the raw episode. It must not mutate the episode.
	Extract(ctx context.Context, episode *domain.ClinicalEpisode) (*domain.ExtractedContent, error)
}
