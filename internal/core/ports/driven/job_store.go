package driven

import (
	"context"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// JobStore handles job and unit persistence (PostgreSQL)
type JobStore interface {
	// SaveJob creates or updates a job and its codebook
	SaveJob(ctx context.Context, job *domain.Job) error

	// GetJob retrieves a job by ID
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// ListJobs retrieves all jobs, newest first
	ListJobs(ctx context.Context) ([]*domain.Job, error)

	// SaveUnits creates or updates units of a job in one transaction
	SaveUnits(ctx context.Context, jobID string, units []*domain.Unit) error

	// GetUnit retrieves a unit of a job
	GetUnit(ctx context.Context, jobID, unitID string) (*domain.Unit, error)

	// CountUnits returns the number of units in a job
	CountUnits(ctx context.Context, jobID string) (int, error)
}
