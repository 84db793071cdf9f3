package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProgressStore = (*ProgressStore)(nil)

// ProgressStore implements driven.ProgressStore using PostgreSQL.
// Used when Redis is not configured; expired drafts are removed by the
// purge_drafts task.
type ProgressStore struct {
	db *DB
}

// NewProgressStore creates a new ProgressStore
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// SaveDraft stores or replaces a draft
func (s *ProgressStore) SaveDraft(ctx context.Context, draft *domain.Draft) error {
	annotationsJSON, err := jsonOrEmpty(draft.Annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}

	query := `
		INSERT INTO drafts (unit_id, coder_id, job_id, annotations, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unit_id, coder_id) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			annotations = EXCLUDED.annotations,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		draft.UnitID,
		draft.CoderID,
		draft.JobID,
		annotationsJSON,
		int64(draft.Version),
		draft.UpdatedAt,
	)
	return err
}

// GetDraft retrieves the draft of a coder for a unit
func (s *ProgressStore) GetDraft(ctx context.Context, unitID, coderID string) (*domain.Draft, error) {
	query := `
		SELECT unit_id, coder_id, job_id, annotations, version, updated_at
		FROM drafts
		WHERE unit_id = $1 AND coder_id = $2
	`

	draft, err := scanDraft(s.db.QueryRowContext(ctx, query, unitID, coderID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// DeleteDraft removes a draft
func (s *ProgressStore) DeleteDraft(ctx context.Context, unitID, coderID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE unit_id = $1 AND coder_id = $2`, unitID, coderID)
	return err
}

// ListByCoder lists the drafts of a coder, most recent first
func (s *ProgressStore) ListByCoder(ctx context.Context, coderID string) ([]*domain.Draft, error) {
	query := `
		SELECT unit_id, coder_id, job_id, annotations, version, updated_at
		FROM drafts
		WHERE coder_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, coderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []*domain.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, rows.Err()
}

// PurgeExpired deletes drafts not updated within maxAge
func (s *ProgressStore) PurgeExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE updated_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanDraft(row rowScanner) (*domain.Draft, error) {
	var draft domain.Draft
	var annotationsJSON []byte
	var version int64

	err := row.Scan(
		&draft.UnitID,
		&draft.CoderID,
		&draft.JobID,
		&annotationsJSON,
		&version,
		&draft.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(annotationsJSON, &draft.Annotations); err != nil {
		return nil, fmt.Errorf("unmarshal annotations: %w", err)
	}
	draft.Version = uint64(version)
	return &draft, nil
}
