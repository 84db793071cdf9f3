package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
)

const (
	taskStream     = "annotator:tasks"
	taskGroup      = "annotator:workers"
	scheduledTasks = "annotator:tasks:scheduled"

	taskKeyPrefix = "annotator:task:"
	msgKeySuffix  = ":msg"

	consumerPrefix = "worker-"

	// claimTimeout is how long a delivered message may stay unacknowledged
	// before another worker takes it over
	claimTimeout = 5 * time.Minute

	// DefaultTaskTTL is how long task records are kept for status polling
	DefaultTaskTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams and a consumer group.
// Task records live in plain keys; the stream carries task IDs only.
// Delayed tasks (retries) wait in a sorted set until they are due.
// Streams are FIFO, so task priority is not honoured here.
type Queue struct {
	client       *redis.Client
	consumerName string
	taskTTL      time.Duration
}

// NewQueue creates a new Redis-backed task queue.
// The consumerName should be unique per worker instance (e.g. hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = consumerPrefix + strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
		taskTTL:      DefaultTaskTTL,
	}

	err := q.client.XGroupCreateMkStream(context.Background(), taskStream, taskGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

func taskKey(id string) string { return taskKeyPrefix + id }

func msgKey(id string) string { return taskKeyPrefix + id + msgKeySuffix }

func streamValues(task *domain.Task) map[string]any {
	return map[string]any{
		"task_id": task.ID,
		"type":    string(task.Type),
		"job_id":  task.JobID,
	}
}

func (q *Queue) setTask(ctx context.Context, pipe redis.Pipeliner, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	pipe.Set(ctx, taskKey(task.ID), data, q.taskTTL)
	return nil
}

// Enqueue stores the task and adds it to the stream, or to the delayed set
// when it is scheduled in the future.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	pipe := q.client.TxPipeline()
	if err := q.setTask(ctx, pipe, task); err != nil {
		return err
	}

	if task.ScheduledFor.After(time.Now()) {
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
	} else {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: taskStream, Values: streamValues(task)})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Dequeue blocks until a task is available or ctx is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return q.DequeueWithTimeout(ctx, 0)
}

// DequeueWithTimeout waits up to timeout seconds for a task; 0 blocks.
// Due retries are promoted and abandoned messages reclaimed first.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	// best effort; a failed promotion is retried on the next call
	_ = q.promoteScheduledTasks(ctx)

	if task, err := q.claimAbandonedTask(ctx); err == nil && task != nil {
		return task, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    time.Duration(timeout) * time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.startMessage(ctx, streams[0].Messages[0])
}

// startMessage loads the task of a delivered message and marks it processing.
// Messages without a readable task are dropped.
func (q *Queue) startMessage(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	drop := func() {
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		q.client.XDel(ctx, taskStream, msg.ID)
	}

	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		drop()
		return nil, nil
	}

	task, err := q.GetTask(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		drop()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task data: %w", err)
	}

	task.MarkProcessing()

	pipe := q.client.TxPipeline()
	if err := q.setTask(ctx, pipe, task); err != nil {
		return nil, err
	}
	pipe.Set(ctx, msgKey(task.ID), msg.ID, q.taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark task processing: %w", err)
	}
	return task, nil
}

// Ack marks a task completed and removes its message from the stream.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	msgID, err := q.client.Get(ctx, msgKey(taskID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	task.MarkCompleted()

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}
	if err := q.setTask(ctx, pipe, task); err != nil {
		return err
	}
	pipe.Del(ctx, msgKey(taskID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Nack removes the current message and either schedules a delayed retry or
// marks the task failed.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	msgID, _ := q.client.Get(ctx, msgKey(taskID)).Result()

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}

	if task.CanRetry() {
		task.Retry(reason)
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
	} else {
		task.MarkFailed(reason)
	}
	if err := q.setTask(ctx, pipe, task); err != nil {
		return err
	}
	pipe.Del(ctx, msgKey(taskID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// forEachTask scans all task records. fn returning false stops the scan.
// SCAN is O(N); the record TTL keeps N bounded.
func (q *Queue) forEachTask(ctx context.Context, fn func(key string, task *domain.Task) bool) error {
	iter := q.client.Scan(ctx, 0, taskKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, msgKeySuffix) {
			continue
		}

		data, err := q.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var task domain.Task
		if err := json.Unmarshal(data, &task); err != nil {
			continue
		}
		if !fn(key, &task) {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan tasks: %w", err)
	}
	return nil
}

// ListTasks retrieves tasks matching the filter. Order is unspecified.
func (q *Queue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	tasks := []*domain.Task{}
	skipped := 0

	err := q.forEachTask(ctx, func(_ string, task *domain.Task) bool {
		if filter.JobID != "" && task.JobID != filter.JobID {
			return true
		}
		if filter.Status != "" && task.Status != filter.Status {
			return true
		}
		if filter.Type != "" && task.Type != filter.Type {
			return true
		}
		if skipped < filter.Offset {
			skipped++
			return true
		}
		tasks = append(tasks, task)
		return filter.Limit <= 0 || len(tasks) < filter.Limit
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// PurgeTasks removes completed and failed tasks not updated within retention.
func (q *Queue) PurgeTasks(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)

	var stale []string
	err := q.forEachTask(ctx, func(key string, task *domain.Task) bool {
		finished := task.Status == domain.TaskStatusCompleted || task.Status == domain.TaskStatusFailed
		if finished && task.UpdatedAt.Before(cutoff) {
			stale = append(stale, key)
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	n, err := q.client.Del(ctx, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return int(n), nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	info, err := q.client.XInfoStream(ctx, taskStream).Result()
	switch {
	case err == nil:
		stats.PendingCount = info.Length
	case !errors.Is(err, redis.Nil) && !isStreamNotExistsError(err):
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	scheduledCount, err := q.client.ZCard(ctx, scheduledTasks).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get scheduled count: %w", err)
	}
	stats.PendingCount += scheduledCount

	if groups, err := q.client.XInfoGroups(ctx, taskStream).Result(); err == nil {
		for _, group := range groups {
			if group.Name == taskGroup {
				stats.ProcessingCount = group.Pending
				// delivered but unacknowledged messages are still in the stream
				stats.PendingCount -= group.Pending
				break
			}
		}
	}

	oldest := time.Now()
	err = q.forEachTask(ctx, func(_ string, task *domain.Task) bool {
		switch task.Status {
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		case domain.TaskStatusPending:
			if task.CreatedAt.Before(oldest) {
				oldest = task.CreatedAt
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	stats.OldestPendingAge = int64(time.Since(oldest).Seconds())

	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the Redis client is shared.
func (q *Queue) Close() error {
	return nil
}

// promoteScheduledTasks moves due delayed tasks to the stream.
func (q *Queue) promoteScheduledTasks(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledTasks, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}

	pipe := q.client.TxPipeline()
	for _, taskID := range due {
		task, err := q.GetTask(ctx, taskID)
		if err == nil {
			pipe.XAdd(ctx, &redis.XAddArgs{Stream: taskStream, Values: streamValues(task)})
		}
		pipe.ZRem(ctx, scheduledTasks, taskID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandonedTask takes over a message another worker left unacknowledged
// for longer than claimTimeout.
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: taskStream,
		Group:  taskGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   taskStream,
			Group:    taskGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		task, err := q.startMessage(ctx, claimed[0])
		if err != nil || task == nil {
			continue
		}
		return task, nil
	}

	return nil, nil
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func isStreamNotExistsError(err error) bool {
	return err != nil && (err.Error() == "ERR no such key" ||
		err.Error() == "ERR The XINFO subcommand requires the key to exist")
}
