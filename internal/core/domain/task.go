package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypePostAnnotations persists a coder's submitted annotations
	TaskTypePostAnnotations TaskType = "post_annotations"
	// TaskTypePurgeDrafts deletes drafts not touched within the retention window
	TaskTypePurgeDrafts TaskType = "purge_drafts"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Payload keys
const (
	PayloadUnitID      = "unit_id"
	PayloadCoderID     = "coder_id"
	PayloadStatus      = "status"
	PayloadAnnotations = "annotations"
	PayloadSubmittedAt = "submitted_at"
)

// Task represents a background job to be processed by workers
type Task struct {
	ID   string   `json:"id"`
	Type TaskType `json:"type"`

	// JobID is the annotation job the task belongs to, empty for maintenance tasks
	JobID string `json:"job_id"`

	// Payload contains task-specific data.
	// For post_annotations: unit_id, coder_id, status, submitted_at and the
	// annotations as a JSON array.
	Payload map[string]string `json:"payload"`

	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Error       string `json:"error,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, jobID string, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		JobID:        jobID,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  5,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewPostAnnotationsTask wraps a submission in a queue task
func NewPostAnnotationsTask(sub *Submission) (*Task, error) {
	annotations := sub.Annotations
	if annotations == nil {
		annotations = []OffsetAnnotation{}
	}
	data, err := json.Marshal(annotations)
	if err != nil {
		return nil, fmt.Errorf("encode annotations: %w", err)
	}

	task := NewTask(TaskTypePostAnnotations, sub.JobID, map[string]string{
		PayloadUnitID:      sub.UnitID,
		PayloadCoderID:     sub.CoderID,
		PayloadStatus:      string(sub.Status),
		PayloadAnnotations: string(data),
		PayloadSubmittedAt: sub.SubmittedAt.UTC().Format(time.RFC3339Nano),
	})
	// finished units are persisted before progress saves
	if sub.Status == UnitStatusDone {
		task.Priority = 10
	}
	return task, nil
}

// Submission decodes the payload of a post_annotations task
func (t *Task) Submission() (*Submission, error) {
	if t.Type != TaskTypePostAnnotations {
		return nil, fmt.Errorf("%w: task type %s carries no submission", ErrInvalidInput, t.Type)
	}

	sub := &Submission{
		UnitID:  t.Payload[PayloadUnitID],
		JobID:   t.JobID,
		CoderID: t.Payload[PayloadCoderID],
		Status:  UnitStatus(t.Payload[PayloadStatus]),
	}
	if sub.UnitID == "" || sub.CoderID == "" {
		return nil, fmt.Errorf("%w: submission without unit or coder", ErrInvalidInput)
	}
	if !sub.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, sub.Status)
	}
	if err := json.Unmarshal([]byte(t.Payload[PayloadAnnotations]), &sub.Annotations); err != nil {
		return nil, fmt.Errorf("%w: decode annotations: %v", ErrInvalidInput, err)
	}
	if raw := t.Payload[PayloadSubmittedAt]; raw != "" {
		submittedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: submitted_at: %v", ErrInvalidInput, err)
		}
		sub.SubmittedAt = submittedAt
	}
	return sub, nil
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	t.Status = TaskStatusFailed
	t.UpdatedAt = time.Now()
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err
	t.ScheduledFor = now.Add(RetryBackoff(t.Attempts))
}

// RetryBackoff doubles from one second per attempt, capped at five minutes
func RetryBackoff(attempts int) time.Duration {
	if attempts > 9 {
		return 5 * time.Minute
	}
	backoff := time.Duration(1<<attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	return backoff
}

// TaskResult represents the outcome of processing a task
type TaskResult struct {
	TaskID     string        `json:"task_id"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	ItemsCount int           `json:"items_count,omitempty"` // e.g. annotations stored, drafts purged
}

// ScheduledTask represents a recurring task configuration
type ScheduledTask struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      TaskType      `json:"type"`
	Interval  time.Duration `json:"interval"`
	Enabled   bool          `json:"enabled"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	NextRun   time.Time     `json:"next_run"`
	LastError string        `json:"last_error,omitempty"`
}

// NewScheduledTask creates a new scheduled task
func NewScheduledTask(id, name string, taskType TaskType, interval time.Duration) *ScheduledTask {
	return &ScheduledTask{
		ID:       id,
		Name:     name,
		Type:     taskType,
		Interval: interval,
		Enabled:  true,
		NextRun:  time.Now().Add(interval),
	}
}

// IsDue returns true if the scheduled task should be triggered
func (s *ScheduledTask) IsDue() bool {
	return s.Enabled && !time.Now().Before(s.NextRun)
}

// UpdateNextRun calculates the next run time after execution
func (s *ScheduledTask) UpdateNextRun() {
	now := time.Now()
	s.LastRun = &now
	s.NextRun = now.Add(s.Interval)
}

// DefaultSchedulerConfig returns the default scheduled tasks
func DefaultSchedulerConfig() []*ScheduledTask {
	return []*ScheduledTask{
		NewScheduledTask("draft-purge", "Draft Purge", TaskTypePurgeDrafts, time.Hour),
	}
}
