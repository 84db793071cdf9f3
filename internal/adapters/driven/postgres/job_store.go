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
var _ driven.JobStore = (*JobStore)(nil)

// JobStore implements driven.JobStore using PostgreSQL.
// Codebooks, text fields and tokens are stored as JSONB.
type JobStore struct {
	db *DB
}

// NewJobStore creates a new JobStore
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// SaveJob creates or updates a job
func (s *JobStore) SaveJob(ctx context.Context, job *domain.Job) error {
	codebookJSON, err := json.Marshal(job.Codebook)
	if err != nil {
		return fmt.Errorf("marshal codebook: %w", err)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO jobs (id, title, codebook, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			codebook = EXCLUDED.codebook
	`

	_, err = s.db.ExecContext(ctx, query, job.ID, job.Title, codebookJSON, job.CreatedAt)
	return err
}

// GetJob retrieves a job by ID
func (s *JobStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT id, title, codebook, created_at FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs retrieves all jobs, newest first
func (s *JobStore) ListJobs(ctx context.Context) ([]*domain.Job, error) {
	query := `SELECT id, title, codebook, created_at FROM jobs ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var codebookJSON []byte

	if err := row.Scan(&job.ID, &job.Title, &codebookJSON, &job.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(codebookJSON, &job.Codebook); err != nil {
		return nil, fmt.Errorf("unmarshal codebook of job %s: %w", job.ID, err)
	}
	return &job, nil
}

// SaveUnits creates or updates units in one transaction.
// Units keep their position in the slice for listing.
func (s *JobStore) SaveUnits(ctx context.Context, jobID string, units []*domain.Unit) error {
	query := `
		INSERT INTO units (job_id, id, position, fields, tokens, annotations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id, id) DO UPDATE SET
			position = EXCLUDED.position,
			fields = EXCLUDED.fields,
			tokens = EXCLUDED.tokens,
			annotations = EXCLUDED.annotations
	`

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, unit := range units {
			fieldsJSON, err := jsonOrEmpty(unit.Fields)
			if err != nil {
				return fmt.Errorf("marshal fields of unit %s: %w", unit.ID, err)
			}
			var tokensJSON any // NULL when the unit is tokenized on load
			if len(unit.Tokens) > 0 {
				b, err := json.Marshal(unit.Tokens)
				if err != nil {
					return fmt.Errorf("marshal tokens of unit %s: %w", unit.ID, err)
				}
				tokensJSON = b
			}
			annotationsJSON, err := jsonOrEmpty(unit.Annotations)
			if err != nil {
				return fmt.Errorf("marshal annotations of unit %s: %w", unit.ID, err)
			}
			if unit.CreatedAt.IsZero() {
				unit.CreatedAt = time.Now()
			}

			if _, err := stmt.ExecContext(ctx, jobID, unit.ID, i, fieldsJSON, tokensJSON, annotationsJSON, unit.CreatedAt); err != nil {
				return fmt.Errorf("insert unit %s: %w", unit.ID, err)
			}
			unit.JobID = jobID
		}
		return nil
	})
	if isForeignKeyViolation(err) {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return err
}

// GetUnit retrieves a unit of a job
func (s *JobStore) GetUnit(ctx context.Context, jobID, unitID string) (*domain.Unit, error) {
	query := `
		SELECT job_id, id, fields, tokens, annotations, created_at
		FROM units
		WHERE job_id = $1 AND id = $2
	`

	var unit domain.Unit
	var fieldsJSON, tokensJSON, annotationsJSON []byte

	err := s.db.QueryRowContext(ctx, query, jobID, unitID).Scan(
		&unit.JobID,
		&unit.ID,
		&fieldsJSON,
		&tokensJSON,
		&annotationsJSON,
		&unit.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(fieldsJSON, &unit.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if len(tokensJSON) > 0 {
		if err := json.Unmarshal(tokensJSON, &unit.Tokens); err != nil {
			return nil, fmt.Errorf("unmarshal tokens: %w", err)
		}
	}
	if err := json.Unmarshal(annotationsJSON, &unit.Annotations); err != nil {
		return nil, fmt.Errorf("unmarshal annotations: %w", err)
	}
	return &unit, nil
}

// CountUnits returns the number of units in a job
func (s *JobStore) CountUnits(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units WHERE job_id = $1`, jobID).Scan(&count)
	return count, err
}
