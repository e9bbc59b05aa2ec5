// Package freetext extracts clinical content from unstructured history text.
package freetext

import (
	"context"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/extractors/scan"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles free-text histories.
type Extractor struct {
	scanner *scan.Scanner
}

// New creates a free-text extractor.
func New(scanner *scan.Scanner) *Extractor {
	return &Extractor{scanner: scanner}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "freetext"
}

// SourceTypes returns the source types this extractor handles.
func (e *Extractor) SourceTypes() []domain.SourceType {
	return []domain.SourceType{domain.SourceFreeText}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract scans the raw bytes as text.
func (e *Extractor) Extract(_ context.Context, episode *domain.ClinicalEpisode) (*domain.ExtractedContent, error) {
	if episode == nil {
		return nil, domain.ErrInvalidInput
	}
	content := &domain.ExtractedContent{
		EpisodeID:  episode.ID,
		SourceType: episode.SourceType,
		Text:       normalizeText(string(episode.Raw)),
		Confidence: domain.ConfidenceFull,
	}
	e.scanner.Fill(content)
	return content, nil
}

// normalizeText unifies line endings and trims trailing spaces.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
