package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
)

func setupTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	q, err := NewQueue(client, "worker-test")
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	return q, client
}

func submissionTask(t *testing.T, unitID string) *domain.Task {
	t.Helper()
	task, err := domain.NewPostAnnotationsTask(&domain.Submission{
		UnitID:  unitID,
		JobID:   "job-1",
		CoderID: "coder-1",
		Status:  domain.UnitStatusDone,
		Annotations: []domain.OffsetAnnotation{
			{Variable: "topic", Value: "economy", Field: "text", Offset: 4, Length: 5},
		},
		SubmittedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("NewPostAnnotationsTask: %v", err)
	}
	return task
}

func TestNewQueue_RequiresClient(t *testing.T) {
	if _, err := NewQueue(nil, "w"); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestNewQueue_GroupExists(t *testing.T) {
	_, client := setupTestQueue(t)

	// a second worker on the same stream reuses the group
	if _, err := NewQueue(client, ""); err != nil {
		t.Fatalf("expected existing group to be accepted: %v", err)
	}
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	q, client := setupTestQueue(t)
	ctx := context.Background()

	task := submissionTask(t, "unit-1")
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got == nil {
		t.Fatal("expected a task")
	}
	if got.ID != task.ID || got.JobID != "job-1" {
		t.Errorf("unexpected task: %+v", got)
	}
	if got.Status != domain.TaskStatusProcessing || got.Attempts != 1 {
		t.Errorf("expected processing on first attempt, got %s/%d", got.Status, got.Attempts)
	}

	sub, err := got.Submission()
	if err != nil {
		t.Fatalf("Submission: %v", err)
	}
	if len(sub.Annotations) != 1 || sub.Annotations[0].Value != "economy" {
		t.Errorf("payload lost in transit: %+v", sub.Annotations)
	}

	if err := q.Ack(ctx, got.ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	stored, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if stored.Status != domain.TaskStatusCompleted || stored.CompletedAt == nil {
		t.Errorf("expected completed task, got %+v", stored)
	}
	if n, _ := client.XLen(ctx, taskStream).Result(); n != 0 {
		t.Errorf("expected acked message to leave the stream, %d left", n)
	}
	if n, _ := client.Exists(ctx, msgKey(task.ID)).Result(); n != 0 {
		t.Error("expected message reference to be removed")
	}
}

func TestQueue_EnqueueNil(t *testing.T) {
	q, _ := setupTestQueue(t)
	if err := q.Enqueue(context.Background(), nil); err == nil {
		t.Error("expected error for nil task")
	}
}

func TestQueue_GetTask_NotFound(t *testing.T) {
	q, _ := setupTestQueue(t)

	_, err := q.GetTask(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueue_Ack_NotFound(t *testing.T) {
	q, _ := setupTestQueue(t)

	if err := q.Ack(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueue_Nack_SchedulesRetry(t *testing.T) {
	q, client := setupTestQueue(t)
	ctx := context.Background()

	task := submissionTask(t, "unit-1")
	q.Enqueue(ctx, task)
	got, _ := q.DequeueWithTimeout(ctx, 1)
	if got == nil {
		t.Fatal("expected a task")
	}

	if err := q.Nack(ctx, got.ID, "database down"); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	stored, _ := q.GetTask(ctx, task.ID)
	if stored.Status != domain.TaskStatusPending {
		t.Errorf("expected pending retry, got %s", stored.Status)
	}
	if stored.Error != "database down" {
		t.Errorf("expected error to be recorded, got %q", stored.Error)
	}
	if !stored.ScheduledFor.After(time.Now()) {
		t.Error("expected retry to be delayed")
	}
	if n, _ := client.ZCard(ctx, scheduledTasks).Result(); n != 1 {
		t.Errorf("expected 1 delayed task, got %d", n)
	}
	if n, _ := client.XLen(ctx, taskStream).Result(); n != 0 {
		t.Errorf("expected nacked message to leave the stream, %d left", n)
	}
}

func TestQueue_Nack_AttemptsExhausted(t *testing.T) {
	q, client := setupTestQueue(t)
	ctx := context.Background()

	task := submissionTask(t, "unit-1")
	task.MaxAttempts = 1
	q.Enqueue(ctx, task)
	got, _ := q.DequeueWithTimeout(ctx, 1)
	if got == nil {
		t.Fatal("expected a task")
	}

	if err := q.Nack(ctx, got.ID, "bad payload"); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	stored, _ := q.GetTask(ctx, task.ID)
	if stored.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed task, got %s", stored.Status)
	}
	if n, _ := client.ZCard(ctx, scheduledTasks).Result(); n != 0 {
		t.Errorf("expected no retry, got %d delayed", n)
	}
}

func TestQueue_DelayedTaskPromotedWhenDue(t *testing.T) {
	q, client := setupTestQueue(t)
	ctx := context.Background()

	task := submissionTask(t, "unit-1")
	task.ScheduledFor = time.Now().Add(time.Hour)
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if n, _ := client.XLen(ctx, taskStream).Result(); n != 0 {
		t.Fatalf("expected delayed task to stay out of the stream, got %d", n)
	}

	// make it due
	client.ZAdd(ctx, scheduledTasks, redis.Z{Score: 0, Member: task.ID})

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got == nil || got.ID != task.ID {
		t.Fatalf("expected promoted task, got %+v", got)
	}
	if n, _ := client.ZCard(ctx, scheduledTasks).Result(); n != 0 {
		t.Errorf("expected delayed set to be empty, got %d", n)
	}
}

func TestQueue_DequeueDropsOrphanMessage(t *testing.T) {
	q, client := setupTestQueue(t)
	ctx := context.Background()

	orphan := submissionTask(t, "unit-orphan")
	client.XAdd(ctx, &redis.XAddArgs{Stream: taskStream, Values: streamValues(orphan)})

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got != nil {
		t.Errorf("expected no task for a message without record, got %+v", got)
	}
	if n, _ := client.XLen(ctx, taskStream).Result(); n != 0 {
		t.Errorf("expected orphan message to be dropped, %d left", n)
	}
}

func TestQueue_ListTasks(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, submissionTask(t, "unit-1"))
	q.Enqueue(ctx, submissionTask(t, "unit-2"))
	q.Enqueue(ctx, domain.NewTask(domain.TaskTypePurgeDrafts, "", nil))

	tests := []struct {
		name   string
		filter driven.TaskFilter
		want   int
	}{
		{"all", driven.TaskFilter{}, 3},
		{"by job", driven.TaskFilter{JobID: "job-1"}, 2},
		{"by type", driven.TaskFilter{Type: domain.TaskTypePurgeDrafts}, 1},
		{"by status", driven.TaskFilter{Status: domain.TaskStatusCompleted}, 0},
		{"limit", driven.TaskFilter{Limit: 2}, 2},
		{"offset", driven.TaskFilter{JobID: "job-1", Offset: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := q.ListTasks(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if len(tasks) != tt.want {
				t.Errorf("expected %d tasks, got %d", tt.want, len(tasks))
			}
		})
	}
}

func TestQueue_PurgeTasks(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	pending := submissionTask(t, "unit-1")
	q.Enqueue(ctx, pending)

	done := submissionTask(t, "unit-2")
	done.MarkCompleted()
	done.UpdatedAt = time.Now().Add(-48 * time.Hour)
	q.Enqueue(ctx, done)

	recent := submissionTask(t, "unit-3")
	recent.MarkFailed("boom")
	q.Enqueue(ctx, recent)

	purged, err := q.PurgeTasks(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeTasks: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged task, got %d", purged)
	}
	if _, err := q.GetTask(ctx, done.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected old task to be gone, got %v", err)
	}
	if _, err := q.GetTask(ctx, recent.ID); err != nil {
		t.Errorf("expected recent failure to be kept: %v", err)
	}
}

func TestQueue_Ping(t *testing.T) {
	q, _ := setupTestQueue(t)
	if err := q.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
