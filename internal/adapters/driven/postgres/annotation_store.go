package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AnnotationStore = (*AnnotationStore)(nil)

// AnnotationStore implements driven.AnnotationStore using PostgreSQL.
// It keeps the latest submission per unit and coder.
type AnnotationStore struct {
	db *DB
}

// NewAnnotationStore creates a new AnnotationStore
func NewAnnotationStore(db *DB) *AnnotationStore {
	return &AnnotationStore{db: db}
}

// PostAnnotations upserts a submission. A retried task carrying an older
// submission does not overwrite a newer one.
func (s *AnnotationStore) PostAnnotations(ctx context.Context, sub *domain.Submission) error {
	annotationsJSON, err := jsonOrEmpty(sub.Annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}

	query := `
		INSERT INTO submissions (unit_id, coder_id, job_id, status, annotations, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unit_id, coder_id) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			status = EXCLUDED.status,
			annotations = EXCLUDED.annotations,
			submitted_at = EXCLUDED.submitted_at
		WHERE submissions.submitted_at <= EXCLUDED.submitted_at
	`

	_, err = s.db.ExecContext(ctx, query,
		sub.UnitID,
		sub.CoderID,
		sub.JobID,
		string(sub.Status),
		annotationsJSON,
		sub.SubmittedAt,
	)
	return err
}

// GetLatest retrieves the last submission of a coder for a unit
func (s *AnnotationStore) GetLatest(ctx context.Context, unitID, coderID string) (*domain.Submission, error) {
	query := `
		SELECT unit_id, coder_id, job_id, status, annotations, submitted_at
		FROM submissions
		WHERE unit_id = $1 AND coder_id = $2
	`

	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, unitID, coderID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListByUnit retrieves the submissions of all coders for a unit
func (s *AnnotationStore) ListByUnit(ctx context.Context, unitID string) ([]*domain.Submission, error) {
	query := `
		SELECT unit_id, coder_id, job_id, status, annotations, submitted_at
		FROM submissions
		WHERE unit_id = $1
		ORDER BY coder_id
	`

	rows, err := s.db.QueryContext(ctx, query, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var sub domain.Submission
	var annotationsJSON []byte

	err := row.Scan(
		&sub.UnitID,
		&sub.CoderID,
		&sub.JobID,
		&sub.Status,
		&annotationsJSON,
		&sub.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(annotationsJSON, &sub.Annotations); err != nil {
		return nil, fmt.Errorf("unmarshal annotations: %w", err)
	}
	return &sub, nil
}
