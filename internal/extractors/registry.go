package extractors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps source types to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.SourceType][]driven.Extractor
	fallback   driven.Extractor
}

// NewRegistry creates a registry. The fallback runs over the raw bytes
// whenever no extractor matches or the chosen one fails.
func NewRegistry(fallback driven.Extractor) *Registry {
	return &Registry{
		extractors: make(map[domain.SourceType][]driven.Extractor),
		fallback:   fallback,
	}
}

// Register adds an extractor for each of its source types.
func (r *Registry) Register(extractor driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range extractor.SourceTypes() {
		list := append(r.extractors[st], extractor)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.extractors[st] = list
	}
}

// SourceTypes returns every source type with a registered extractor.
func (r *Registry) SourceTypes() []domain.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.SourceType, 0, len(r.extractors))
	for st := range r.extractors {
		types = append(types, st)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Extract runs the highest-priority extractor for the episode's source type.
// It always returns content; failures degrade to the fallback scan.
func (r *Registry) Extract(ctx context.Context, episode *domain.ClinicalEpisode) *domain.ExtractedContent {
	if episode == nil {
		return &domain.ExtractedContent{
			Confidence: domain.ConfidenceLow,
			Degraded:   true,
			Warnings:   []string{"no episode to extract"},
		}
	}

	r.mu.RLock()
	candidates := r.extractors[episode.SourceType]
	r.mu.RUnlock()

	var warning string
	if len(candidates) == 0 {
		warning = fmt.Sprintf("no extractor for source type %q", episode.SourceType)
	} else {
		ex := candidates[0]
		content, err := ex.Extract(ctx, episode)
		if err == nil && content != nil {
			content.EpisodeID = episode.ID
			content.SourceType = episode.SourceType
			if content.Confidence == "" {
				content.Confidence = domain.ConfidenceFull
			}
			return content
		}
		warning = fmt.Sprintf("%s extractor failed: %v", ex.Name(), err)
	}

	logger.Warn("episode %s: %s, falling back to text scan", episode.ID, warning)
	return r.degrade(ctx, episode, warning)
}

func (r *Registry) degrade(ctx context.Context, episode *domain.ClinicalEpisode, warning string) *domain.ExtractedContent {
	var content *domain.ExtractedContent
	if r.fallback != nil {
		c, err := r.fallback.Extract(ctx, episode)
		if err == nil {
			content = c
		} else {
			warning = fmt.Sprintf("%s; fallback failed: %v", warning, err)
		}
	}
	if content == nil {
		content = &domain.ExtractedContent{}
	}
	content.EpisodeID = episode.ID
	content.SourceType = episode.SourceType
	content.Confidence = domain.ConfidenceLow
	content.Degraded = true
	content.Warnings = append(content.Warnings, fmt.Sprintf("%s: %s", domain.ErrExtractionDegraded, warning))
	return content
}
