package driven

import (
	"context"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// SchedulerStore keeps the recurring task definitions, such as the hourly
// draft purge. Scheduled tasks are configuration; each run becomes a
// one-off Task on the TaskQueue.
type SchedulerStore interface {
	GetScheduledTask(ctx context.Context, id string) (*domain.ScheduledTask, error)
	ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error)
	SaveScheduledTask(ctx context.Context, task *domain.ScheduledTask) error
	DeleteScheduledTask(ctx context.Context, id string) error

	// GetDueScheduledTasks returns enabled tasks whose NextRun has passed
	GetDueScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error)

	// UpdateLastRun records a run and moves NextRun one interval ahead.
	// lastError is empty for a successful run.
	UpdateLastRun(ctx context.Context, id string, lastError string) error
}
