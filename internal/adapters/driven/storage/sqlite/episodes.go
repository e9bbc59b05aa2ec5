package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// episodeStore implements driven.EpisodeStore.
type episodeStore struct {
	store *Store
}

var _ driven.EpisodeStore = (*episodeStore)(nil)

// SaveEpisode stores or replaces an episode.
func (s *episodeStore) SaveEpisode(ctx context.Context, episode *domain.ClinicalEpisode) error {
	if episode == nil || episode.ID == "" {
		return domain.ErrInvalidInput
	}
	raw := episode.Raw
	if raw == nil {
		raw = []byte{}
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO episodes (id, source_type, raw, ingested_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_type = excluded.source_type,
			raw = excluded.raw,
			ingested_at = excluded.ingested_at
	`, episode.ID, string(episode.SourceType), raw, utc(episode.IngestedAt))
	if err != nil {
		return fmt.Errorf("saving episode: %w", err)
	}
	return nil
}

// GetEpisode retrieves an episode by ID.
func (s *episodeStore) GetEpisode(ctx context.Context, id string) (*domain.ClinicalEpisode, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_type, raw, ingested_at FROM episodes WHERE id = ?
	`, id)

	var ep domain.ClinicalEpisode
	var sourceType string
	if err := row.Scan(&ep.ID, &sourceType, &ep.Raw, &ep.IngestedAt); err != nil {
		if err = notFound(err); err == domain.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("scanning episode: %w", err)
	}
	ep.SourceType = domain.SourceType(sourceType)
	return &ep, nil
}

// ListEpisodes returns all episodes, newest first. Raw content is included.
func (s *episodeStore) ListEpisodes(ctx context.Context) ([]domain.ClinicalEpisode, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_type, raw, ingested_at FROM episodes
		ORDER BY ingested_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	defer rows.Close()

	var out []domain.ClinicalEpisode
	for rows.Next() {
		var ep domain.ClinicalEpisode
		var sourceType string
		if err := rows.Scan(&ep.ID, &sourceType, &ep.Raw, &ep.IngestedAt); err != nil {
			return nil, fmt.Errorf("scanning episode: %w", err)
		}
		ep.SourceType = domain.SourceType(sourceType)
		out = append(out, ep)
	}
	return out, rows.Err()
}
