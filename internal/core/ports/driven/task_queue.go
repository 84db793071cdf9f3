package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// TaskQueue hands submitted units and draft purges to the workers.
// Redis streams back it when REDIS_URL is set, the tasks table otherwise.
//
// A dequeued task is PROCESSING until the worker acks or nacks it. Nack puts
// it back as PENDING with a backoff until Attempts reaches MaxAttempts, then
// marks it FAILED. GetTask returns domain.ErrNotFound for unknown or expired ids.
type TaskQueue interface {
	// Enqueue stores a PENDING task, runnable once ScheduledFor has passed
	Enqueue(ctx context.Context, task *domain.Task) error

	// Dequeue claims a runnable task, or returns nil, nil when none is ready
	Dequeue(ctx context.Context) (*domain.Task, error)

	// DequeueWithTimeout waits up to timeout seconds for a runnable task
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	Ack(ctx context.Context, taskID string) error
	Nack(ctx context.Context, taskID string, reason string) error

	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// PurgeTasks deletes COMPLETED and FAILED tasks not updated within
	// retention and returns how many were removed
	PurgeTasks(ctx context.Context, retention time.Duration) (int, error)

	// Stats backs GET /queue/stats
	Stats(ctx context.Context) (*QueueStats, error)

	Ping(ctx context.Context) error
	Close() error
}

// TaskFilter narrows ListTasks; zero fields match everything.
// Results are newest first.
type TaskFilter struct {
	JobID  string
	Status domain.TaskStatus
	Type   domain.TaskType
	Limit  int
	Offset int
}

// QueueStats counts tasks per status.
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`

	// OldestPendingAge is how long, in seconds, the oldest PENDING task has
	// waited; a growing value means submissions are not being stored
	OldestPendingAge int64 `json:"oldest_pending_age"`
}
