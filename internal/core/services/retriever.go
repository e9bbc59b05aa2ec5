package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/logger"
	"github.com/custodia-labs/epicrisis/internal/snippet"
)

// Retrieval defaults.
const (
	DefaultFewShotCount  = 3
	DefaultMinSimilarity = float32(0.35)
	FeedbackBias         = float32(0.05)

	// candidateFactor widens the index query before re-ranking.
	candidateFactor = 3
)

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithMinSimilarity sets the score below which candidates are dropped.
func WithMinSimilarity(score float32) RetrieverOption {
	return func(r *Retriever) {
		r.minSimilarity = score
	}
}

// Retriever finds prior sections similar to the current clinical text.
// Both collaborators are optional; without them every query is empty.
type Retriever struct {
	embedder      driven.EmbeddingService
	index         driven.ExemplarIndex
	windower      *snippet.Windower
	minSimilarity float32
}

// NewRetriever creates a retriever.
func NewRetriever(embedder driven.EmbeddingService, index driven.ExemplarIndex, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		embedder:      embedder,
		index:         index,
		windower:      snippet.New(),
		minSimilarity: DefaultMinSimilarity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether both collaborators are configured.
func (r *Retriever) Enabled() bool {
	return r != nil && r.embedder != nil && r.index != nil
}

// Retrieve returns up to k exemplars across all sections, best first.
// Failures are logged and yield an empty result.
func (r *Retriever) Retrieve(ctx context.Context, text string, k int) []domain.Exemplar {
	vec, ok := r.embedQuery(ctx, text)
	if !ok {
		return []domain.Exemplar{}
	}
	return r.search(ctx, vec, k, driven.ExemplarFilter{})
}

// RetrieveSections embeds the text once and returns up to k exemplars per
// section. Exemplars taken from excludeEpisode are skipped.
func (r *Retriever) RetrieveSections(
	ctx context.Context,
	text string,
	sections []domain.SectionName,
	k int,
	excludeEpisode string,
) map[domain.SectionName][]domain.Exemplar {
	out := make(map[domain.SectionName][]domain.Exemplar, len(sections))
	vec, ok := r.embedQuery(ctx, text)
	if !ok {
		return out
	}
	for _, s := range sections {
		if hits := r.search(ctx, vec, k, driven.ExemplarFilter{Section: s, ExcludeEpisode: excludeEpisode}); len(hits) > 0 {
			out[s] = hits
		}
	}
	return out
}

// Remember embeds an exemplar and adds it to the index.
func (r *Retriever) Remember(ctx context.Context, exemplar domain.Exemplar) error {
	if !r.Enabled() {
		return domain.ErrVectorIndexUnavailable
	}
	if strings.TrimSpace(exemplar.Content) == "" {
		return fmt.Errorf("%w: exemplar has no content", domain.ErrInvalidInput)
	}
	if exemplar.ID == "" {
		exemplar.ID = uuid.New().String()
	}
	if exemplar.CreatedAt.IsZero() {
		exemplar.CreatedAt = time.Now()
	}
	exemplar.Context = r.windower.First(exemplar.Context)

	source := exemplar.Context
	if source == "" {
		source = exemplar.Content
	}
	vec, err := r.embedder.Embed(ctx, source)
	if err != nil {
		return fmt.Errorf("embed exemplar: %w", err)
	}
	if err := r.index.Upsert(ctx, exemplar, vec); err != nil {
		return fmt.Errorf("upsert exemplar: %w", err)
	}
	logger.Debug("Remembered %s exemplar %s", exemplar.Section, exemplar.ID)
	return nil
}

func (r *Retriever) embedQuery(ctx context.Context, text string) ([]float32, bool) {
	if !r.Enabled() {
		return nil, false
	}
	query := r.windower.First(text)
	if strings.TrimSpace(query) == "" {
		return nil, false
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("Exemplar query embedding failed: %v", err)
		}
		return nil, false
	}
	return vec, true
}

type scored struct {
	exemplar domain.Exemplar
	score    float32
}

func (r *Retriever) search(ctx context.Context, vec []float32, k int, filter driven.ExemplarFilter) []domain.Exemplar {
	if k <= 0 {
		k = DefaultFewShotCount
	}
	hits, err := r.index.Search(ctx, vec, k*candidateFactor, filter)
	if err != nil {
		logger.Warn("Exemplar search failed: %v", err)
		return []domain.Exemplar{}
	}
	return rerank(hits, r.minSimilarity, k)
}

// rerank adds the feedback bias, drops weak candidates and keeps the k best.
func rerank(hits []driven.ExemplarHit, minSimilarity float32, k int) []domain.Exemplar {
	ranked := make([]scored, 0, len(hits))
	for _, h := range hits {
		s := h.Similarity
		if h.Exemplar.FromFeedback {
			s += FeedbackBias
		}
		if s < minSimilarity {
			continue
		}
		ranked = append(ranked, scored{exemplar: h.Exemplar, score: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]domain.Exemplar, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.exemplar)
	}
	return out
}
