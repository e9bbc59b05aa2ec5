package driving

import (
	"context"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// EpicrisisService runs the generation pipeline for an episode.
type EpicrisisService interface {
	// Generate produces, validates and stores a new EPC version.
	// Returns domain.ErrConcurrentRun when a run for the episode is in flight.
	Generate(ctx context.Context, episodeID string) (*domain.EPCDocument, error)

	// Regenerate produces a new version from the latest version's inputs,
	// skipping extraction and rule evaluation.
	Regenerate(ctx context.Context, episodeID string) (*domain.EPCDocument, error)

	// Status returns the in-flight run for an episode.
	// Returns domain.ErrNotFound when no run is in flight.
	Status(ctx context.Context, episodeID string) (*domain.RunStatus, error)
}

// EpisodeService ingests episodes and exposes their extracted facts.
type EpisodeService interface {
	// Ingest stores a raw episode.
	Ingest(ctx context.Context, id string, sourceType domain.SourceType, raw []byte) (*domain.ClinicalEpisode, error)

	// Import converts a document file (Word, HTML, text) to free text,
	// choosing the converter by the file name's extension, and stores it.
	Import(ctx context.Context, id, filename string, raw []byte) (*domain.ClinicalEpisode, error)

	// Get retrieves a stored episode.
	Get(ctx context.Context, id string) (*domain.ClinicalEpisode, error)

	// List returns every stored episode.
	List(ctx context.Context) ([]domain.ClinicalEpisode, error)

	// Facts extracts the episode and evaluates the rule tables against it.
	Facts(ctx context.Context, id string) (*domain.ExtractedContent, *domain.RuleFacts, error)
}
