package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
	"github.com/custodia-labs/annotator-core/internal/metrics"
)

// SubmissionProcessor executes queue tasks on worker nodes: it delivers
// submitted annotations to the annotation store and purges stale drafts.
type SubmissionProcessor struct {
	annotationStore driven.AnnotationStore
	progressStore   driven.ProgressStore
	taskQueue       driven.TaskQueue
	lock            driven.DistributedLock
	metrics         *metrics.Metrics
	logger          *slog.Logger

	lockTTL       time.Duration
	draftMaxAge   time.Duration
	taskRetention time.Duration
}

// SubmissionProcessorConfig holds configuration for the processor.
type SubmissionProcessorConfig struct {
	AnnotationStore driven.AnnotationStore
	ProgressStore   driven.ProgressStore   // Optional: drafts are left alone when nil
	TaskQueue       driven.TaskQueue       // Optional: used to purge finished tasks
	Lock            driven.DistributedLock // Optional: per unit and coder lock while posting
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	LockTTL         time.Duration // Default: 30s
	DraftMaxAge     time.Duration // Default: 7 days
	TaskRetention   time.Duration // Default: 24h
}

// NewSubmissionProcessor creates a new SubmissionProcessor.
func NewSubmissionProcessor(cfg SubmissionProcessorConfig) *SubmissionProcessor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 30 * time.Second
	}
	draftMaxAge := cfg.DraftMaxAge
	if draftMaxAge == 0 {
		draftMaxAge = 7 * 24 * time.Hour
	}
	taskRetention := cfg.TaskRetention
	if taskRetention == 0 {
		taskRetention = 24 * time.Hour
	}

	return &SubmissionProcessor{
		annotationStore: cfg.AnnotationStore,
		progressStore:   cfg.ProgressStore,
		taskQueue:       cfg.TaskQueue,
		lock:            cfg.Lock,
		metrics:         cfg.Metrics,
		logger:          logger,
		lockTTL:         lockTTL,
		draftMaxAge:     draftMaxAge,
		taskRetention:   taskRetention,
	}
}

// Process runs a task and reports its outcome.
// A returned error means the task should be retried.
func (p *SubmissionProcessor) Process(ctx context.Context, task *domain.Task) (*domain.TaskResult, error) {
	start := time.Now()
	var (
		count int
		err   error
	)

	switch task.Type {
	case domain.TaskTypePostAnnotations:
		count, err = p.postAnnotations(ctx, task)
	case domain.TaskTypePurgeDrafts:
		count, err = p.purgeDrafts(ctx)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(start)
	p.metrics.RecordTask(string(task.Type), err, duration)

	result := &domain.TaskResult{
		TaskID:     task.ID,
		Success:    err == nil,
		Duration:   duration,
		ItemsCount: count,
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result, err
}

func (p *SubmissionProcessor) postAnnotations(ctx context.Context, task *domain.Task) (int, error) {
	sub, err := task.Submission()
	if err != nil {
		return 0, err
	}

	if p.lock != nil {
		name := driven.UnitLockName(sub.UnitID, sub.CoderID)
		acquired, err := p.lock.Acquire(ctx, name, p.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire %s: %w", name, err)
		}
		if !acquired {
			return 0, fmt.Errorf("%s: %w", name, domain.ErrLockHeld)
		}
		defer func() {
			if err := p.lock.Release(ctx, name); err != nil {
				p.logger.Warn("failed to release submission lock", "lock", name, "error", err)
			}
		}()
	}

	if err := p.annotationStore.PostAnnotations(ctx, sub); err != nil {
		return 0, fmt.Errorf("post annotations: %w", err)
	}

	if sub.Status == domain.UnitStatusDone && p.progressStore != nil {
		if err := p.progressStore.DeleteDraft(ctx, sub.UnitID, sub.CoderID); err != nil {
			p.logger.Warn("failed to delete draft of finished unit",
				"unit_id", sub.UnitID,
				"coder_id", sub.CoderID,
				"error", err,
			)
		}
	}

	p.logger.Info("annotations posted",
		"unit_id", sub.UnitID,
		"coder_id", sub.CoderID,
		"status", sub.Status,
		"annotations", len(sub.Annotations),
	)
	return len(sub.Annotations), nil
}

func (p *SubmissionProcessor) purgeDrafts(ctx context.Context) (int, error) {
	purged := 0
	var errs []error

	if p.progressStore != nil {
		n, err := p.progressStore.PurgeExpired(ctx, p.draftMaxAge)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge drafts: %w", err))
		}
		purged = n
		p.metrics.RecordDraftsPurged(n)
	}

	if p.taskQueue != nil {
		n, err := p.taskQueue.PurgeTasks(ctx, p.taskRetention)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge tasks: %w", err))
		} else if n > 0 {
			p.logger.Info("finished tasks purged", "count", n)
		}
	}

	if purged > 0 {
		p.logger.Info("expired drafts purged", "count", purged, "max_age", p.draftMaxAge)
	}
	return purged, errors.Join(errs...)
}
