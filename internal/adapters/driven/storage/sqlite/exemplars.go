package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/epicrisis/internal/adapters/driven/vector"
	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// ExemplarIndex keeps exemplar vectors in SQLite and searches them by brute force.
// Section and episode filters run in SQL; cosine scoring runs in process.
type ExemplarIndex struct {
	store *Store
}

// Ensure ExemplarIndex implements the interface.
var _ driven.ExemplarIndex = (*ExemplarIndex)(nil)

// Upsert inserts or replaces an exemplar and its vector.
func (x *ExemplarIndex) Upsert(ctx context.Context, exemplar domain.Exemplar, vec []float32) error {
	if exemplar.ID == "" || len(vec) == 0 {
		return domain.ErrInvalidInput
	}
	_, err := x.store.db.ExecContext(ctx, `
		INSERT INTO exemplars (id, section, context, content, episode_id, from_feedback, created_at, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			section = excluded.section,
			context = excluded.context,
			content = excluded.content,
			episode_id = excluded.episode_id,
			from_feedback = excluded.from_feedback,
			vector = excluded.vector
	`, exemplar.ID, string(exemplar.Section), exemplar.Context, exemplar.Content, exemplar.EpisodeID,
		exemplar.FromFeedback, utc(exemplar.CreatedAt), float32SliceToBytes(vec))
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

	q := `SELECT id, section, context, content, episode_id, from_feedback, created_at, vector FROM exemplars WHERE 1 = 1`
	var args []any
	if f.Section != "" {
		q += ` AND section = ?`
		args = append(args, string(f.Section))
	}
	if f.ExcludeEpisode != "" {
		q += ` AND episode_id <> ?`
		args = append(args, f.ExcludeEpisode)
	}
	q += ` ORDER BY created_at, rowid`

	rows, err := x.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exemplars: %w", err)
	}
	defer rows.Close()

	var candidates []vector.Candidate
	for rows.Next() {
		var e domain.Exemplar
		var section string
		var blob []byte
		if err := rows.Scan(&e.ID, &section, &e.Context, &e.Content, &e.EpisodeID,
			&e.FromFeedback, &e.CreatedAt, &blob); err != nil {
			return nil, fmt.Errorf("scanning exemplar: %w", err)
		}
		e.Section = domain.SectionName(section)
		candidates = append(candidates, vector.Candidate{Exemplar: e, Vector: bytesToFloat32Slice(blob)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vector.TopK(query, candidates, k, f), nil
}

// Count returns the number of stored exemplars.
func (x *ExemplarIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := x.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exemplars`).Scan(&n)
	return n, err
}

// Close is a no-op; the Store owns the connection.
func (x *ExemplarIndex) Close() error {
	return nil
}
