package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/epicrisis/internal/adapters/driven/vector"
	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// ExemplarIndex keeps exemplar vectors in a REAL[] column. Filters run in
// SQL; cosine scoring runs in process.
type ExemplarIndex struct {
	pool *pgxpool.Pool
}

// Ensure ExemplarIndex implements the interface.
var _ driven.ExemplarIndex = (*ExemplarIndex)(nil)

// Upsert inserts or replaces an exemplar and its vector.
func (x *ExemplarIndex) Upsert(ctx context.Context, exemplar domain.Exemplar, vec []float32) error {
	if exemplar.ID == "" || len(vec) == 0 {
		return domain.ErrInvalidInput
	}
	_, err := x.pool.Exec(ctx, `
		INSERT INTO exemplars (id, section, context, content, episode_id, from_feedback, created_at, vector)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			section = EXCLUDED.section,
			context = EXCLUDED.context,
			content = EXCLUDED.content,
			episode_id = EXCLUDED.episode_id,
			from_feedback = EXCLUDED.from_feedback,
			vector = EXCLUDED.vector
	`, exemplar.ID, string(exemplar.Section), exemplar.Context, exemplar.Content, exemplar.EpisodeID,
		exemplar.FromFeedback, utc(exemplar.CreatedAt), vec)
	if err != nil {
		return fmt.Errorf("saving exemplar: %w", err)
	}
	return nil
}

// Search returns the k nearest exemplars passing the filter.
func (x *ExemplarIndex) Search(ctx context.Context, query []float32, k int, f driven.ExemplarFilter) ([]driven.ExemplarHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	q, args := exemplarQuery(f)
	rows, err := x.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exemplars: %w", err)
	}
	defer rows.Close()

	var candidates []vector.Candidate
	for rows.Next() {
		var e domain.Exemplar
		var section string
		var vec []float32
		if err := rows.Scan(&e.ID, &section, &e.Context, &e.Content, &e.EpisodeID,
			&e.FromFeedback, &e.CreatedAt, &vec); err != nil {
			return nil, fmt.Errorf("scanning exemplar: %w", err)
		}
		e.Section = domain.SectionName(section)
		candidates = append(candidates, vector.Candidate{Exemplar: e, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vector.TopK(query, candidates, k, f), nil
}

// exemplarQuery builds the filtered candidate query with numbered placeholders.
func exemplarQuery(f driven.ExemplarFilter) (string, []any) {
	q := `SELECT id, section, context, content, episode_id, from_feedback, created_at, vector FROM exemplars WHERE TRUE`
	var args []any
	if f.Section != "" {
		args = append(args, string(f.Section))
		q += ` AND section = $` + strconv.Itoa(len(args))
	}
	if f.ExcludeEpisode != "" {
		args = append(args, f.ExcludeEpisode)
		q += ` AND episode_id <> $` + strconv.Itoa(len(args))
	}
	return q + ` ORDER BY created_at, seq`, args
}

// Count returns the number of stored exemplars.
func (x *ExemplarIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := x.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exemplars`).Scan(&n)
	return n, err
}

// Close is a no-op; the Store owns the pool.
func (x *ExemplarIndex) Close() error {
	return nil
}
