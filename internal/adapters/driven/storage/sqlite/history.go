package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// HistoryStore persists versions, feedback and audit events.
type HistoryStore struct {
	store *Store
}

// Ensure HistoryStore implements the interfaces.
var (
	_ driven.VersionStore  = (*HistoryStore)(nil)
	_ driven.FeedbackStore = (*HistoryStore)(nil)
	_ driven.EventStore    = (*HistoryStore)(nil)
)

const versionColumns = `id, episode_id, number, document, inputs, created_at`

// SaveVersion inserts a version and its audit event in one transaction.
func (h *HistoryStore) SaveVersion(ctx context.Context, version *domain.EPCVersion, event domain.AuditEvent) error {
	if version == nil || version.ID == "" || version.EpisodeID == "" {
		return domain.ErrInvalidInput
	}
	doc, err := json.Marshal(version.Document)
	if err != nil {
		return fmt.Errorf("marshalling document: %w", err)
	}
	inputs, err := json.Marshal(version.Inputs)
	if err != nil {
		return fmt.Errorf("marshalling inputs: %w", err)
	}

	return h.store.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO epc_versions (`+versionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`, version.ID, version.EpisodeID, version.Number, string(doc), string(inputs), utc(version.CreatedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("version %d of %s: %w", version.Number, version.EpisodeID, domain.ErrAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("saving version: %w", err)
		}
		return insertEvent(ctx, tx, event)
	})
}

// LatestVersion returns the highest numbered version for an episode.
func (h *HistoryStore) LatestVersion(ctx context.Context, episodeID string) (*domain.EPCVersion, error) {
	row := h.store.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM epc_versions
		WHERE episode_id = ? ORDER BY number DESC LIMIT 1
	`, episodeID)
	return scanVersion(row)
}

// GetVersion retrieves a version by EPC ID.
func (h *HistoryStore) GetVersion(ctx context.Context, epcID string) (*domain.EPCVersion, error) {
	row := h.store.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM epc_versions WHERE id = ?
	`, epcID)
	return scanVersion(row)
}

// ListVersions returns every version for an episode in ascending order.
func (h *HistoryStore) ListVersions(ctx context.Context, episodeID string) ([]domain.EPCVersion, error) {
	rows, err := h.store.db.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM epc_versions
		WHERE episode_id = ? ORDER BY number
	`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	out := []domain.EPCVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// SaveFeedback inserts an entry and its audit event in one transaction.
// Returns domain.ErrNotFound when the rated version does not exist.
func (h *HistoryStore) SaveFeedback(ctx context.Context, entry *domain.FeedbackEntry, event domain.AuditEvent) error {
	if entry == nil || entry.ID == "" {
		return domain.ErrInvalidInput
	}

	return h.store.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM epc_versions WHERE id = ?`, entry.EPCID).Scan(&exists)
		if err != nil {
			if notFound(err) == domain.ErrNotFound {
				return fmt.Errorf("version %s: %w", entry.EPCID, domain.ErrNotFound)
			}
			return fmt.Errorf("checking version: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO feedback (id, epc_id, section, rating, free_text, author,
				has_omissions, has_repetitions, is_confusing, original_content, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.ID, entry.EPCID, string(entry.Section), string(entry.Rating), entry.FreeText, entry.Author,
			nullBool(entry.HasOmissions), nullBool(entry.HasRepetitions), nullBool(entry.IsConfusing),
			entry.OriginalContent, utc(entry.Timestamp))
		if isUniqueViolation(err) {
			return fmt.Errorf("feedback %s: %w", entry.ID, domain.ErrAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("saving feedback: %w", err)
		}
		return insertEvent(ctx, tx, event)
	})
}

// ListFeedback returns entries for an EPC in timestamp order.
func (h *HistoryStore) ListFeedback(ctx context.Context, epcID string) ([]domain.FeedbackEntry, error) {
	rows, err := h.store.db.QueryContext(ctx, `
		SELECT id, epc_id, section, rating, free_text, author,
			has_omissions, has_repetitions, is_confusing, original_content, created_at
		FROM feedback WHERE epc_id = ? ORDER BY created_at, rowid
	`, epcID)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	out := []domain.FeedbackEntry{}
	for rows.Next() {
		var e domain.FeedbackEntry
		var section, rating string
		var omissions, repetitions, confusing sql.NullBool
		if err := rows.Scan(&e.ID, &e.EPCID, &section, &rating, &e.FreeText, &e.Author,
			&omissions, &repetitions, &confusing, &e.OriginalContent, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		e.Section = domain.SectionName(section)
		e.Rating = domain.Rating(rating)
		e.HasOmissions = boolPtr(omissions)
		e.HasRepetitions = boolPtr(repetitions)
		e.IsConfusing = boolPtr(confusing)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendEvent stores a standalone audit event.
func (h *HistoryStore) AppendEvent(ctx context.Context, event domain.AuditEvent) error {
	return h.store.withTx(ctx, func(tx *sql.Tx) error {
		return insertEvent(ctx, tx, event)
	})
}

// ListEvents returns audit events for an episode in time order.
func (h *HistoryStore) ListEvents(ctx context.Context, episodeID string) ([]domain.AuditEvent, error) {
	rows, err := h.store.db.QueryContext(ctx, `
		SELECT id, epc_id, episode_id, actor, action, at
		FROM audit_events WHERE episode_id = ? ORDER BY at, rowid
	`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		if err := rows.Scan(&e.ID, &e.EPCID, &e.EpisodeID, &e.Actor, &e.Action, &e.At); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEvent(ctx context.Context, tx *sql.Tx, e domain.AuditEvent) error {
	if e.ID == "" {
		return fmt.Errorf("%w: audit event id is required", domain.ErrInvalidInput)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_events (id, epc_id, episode_id, actor, action, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.EPCID, e.EpisodeID, e.Actor, e.Action, utc(e.At))
	if err != nil {
		return fmt.Errorf("saving audit event: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*domain.EPCVersion, error) {
	var v domain.EPCVersion
	var doc, inputs string
	if err := row.Scan(&v.ID, &v.EpisodeID, &v.Number, &doc, &inputs, &v.CreatedAt); err != nil {
		if err = notFound(err); err == domain.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("scanning version: %w", err)
	}
	if err := json.Unmarshal([]byte(doc), &v.Document); err != nil {
		return nil, fmt.Errorf("unmarshalling document: %w", err)
	}
	if err := json.Unmarshal([]byte(inputs), &v.Inputs); err != nil {
		return nil, fmt.Errorf("unmarshalling inputs: %w", err)
	}
	return &v, nil
}
