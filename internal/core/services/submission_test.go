package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven/mocks"
)

func newTestSubmission(status domain.UnitStatus) *domain.Submission {
	return &domain.Submission{
		UnitID:  "unit-1",
		JobID:   "job-1",
		CoderID: "coder-1",
		Status:  status,
		Annotations: []domain.OffsetAnnotation{
			{Variable: "topic", Value: "economy", Field: "text", Offset: 4, Length: 11},
		},
		SubmittedAt: time.Now(),
	}
}

func TestSubmissionProcessor_PostAnnotations(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockAnnotationStore()
	progress := mocks.NewMockProgressStore()
	lock := mocks.NewMockDistributedLock()

	require.NoError(t, progress.SaveDraft(ctx, &domain.Draft{UnitID: "unit-1", CoderID: "coder-1", UpdatedAt: time.Now()}))

	p := NewSubmissionProcessor(SubmissionProcessorConfig{
		AnnotationStore: store,
		ProgressStore:   progress,
		Lock:            lock,
	})

	task, err := domain.NewPostAnnotationsTask(newTestSubmission(domain.UnitStatusInProgress))
	require.NoError(t, err)

	result, err := p.Process(ctx, task)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ItemsCount)
	assert.Equal(t, task.ID, result.TaskID)

	posted := store.Posted()
	require.Len(t, posted, 1)
	assert.Equal(t, "coder-1", posted[0].CoderID)
	assert.Equal(t, 1, progress.Count(), "in-progress submissions keep the draft")
	assert.Equal(t, []string{"unit:unit-1:coder-1"}, lock.Acquisitions())
	assert.False(t, lock.IsHeld(driven.UnitLockName("unit-1", "coder-1")), "lock must be released")

	task, err = domain.NewPostAnnotationsTask(newTestSubmission(domain.UnitStatusDone))
	require.NoError(t, err)
	_, err = p.Process(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.Count(), "finished units drop the draft")
}

func TestSubmissionProcessor_LockHeld(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld(driven.UnitLockName("unit-1", "coder-1"), time.Minute)
	store := mocks.NewMockAnnotationStore()

	p := NewSubmissionProcessor(SubmissionProcessorConfig{AnnotationStore: store, Lock: lock})
	task, err := domain.NewPostAnnotationsTask(newTestSubmission(domain.UnitStatusDone))
	require.NoError(t, err)

	result, err := p.Process(context.Background(), task)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, store.Posted())
	assert.Empty(t, lock.Acquisitions())
	assert.True(t, lock.IsHeld(driven.UnitLockName("unit-1", "coder-1")), "the other worker keeps its lock")
}

func TestSubmissionProcessor_LocksPerUnitAndCoder(t *testing.T) {
	ctx := context.Background()
	lock := mocks.NewMockDistributedLock()
	p := NewSubmissionProcessor(SubmissionProcessorConfig{AnnotationStore: mocks.NewMockAnnotationStore(), Lock: lock})

	for _, coder := range []string{"coder-1", "coder-2", "coder-1"} {
		sub := newTestSubmission(domain.UnitStatusInProgress)
		sub.CoderID = coder
		task, err := domain.NewPostAnnotationsTask(sub)
		require.NoError(t, err)
		_, err = p.Process(ctx, task)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"unit:unit-1:coder-1",
		"unit:unit-1:coder-2",
		"unit:unit-1:coder-1",
	}, lock.Acquisitions())
}

func TestSubmissionProcessor_StoreFailure(t *testing.T) {
	store := mocks.NewMockAnnotationStore()
	store.PostFn = func(*domain.Submission) error { return errors.New("connection refused") }
	progress := mocks.NewMockProgressStore()
	ctx := context.Background()
	require.NoError(t, progress.SaveDraft(ctx, &domain.Draft{UnitID: "unit-1", CoderID: "coder-1", UpdatedAt: time.Now()}))

	p := NewSubmissionProcessor(SubmissionProcessorConfig{AnnotationStore: store, ProgressStore: progress})
	task, err := domain.NewPostAnnotationsTask(newTestSubmission(domain.UnitStatusDone))
	require.NoError(t, err)

	_, err = p.Process(ctx, task)
	assert.Error(t, err)
	assert.Equal(t, 1, progress.Count(), "draft survives a failed delivery")
}

func TestSubmissionProcessor_InvalidPayload(t *testing.T) {
	p := NewSubmissionProcessor(SubmissionProcessorConfig{AnnotationStore: mocks.NewMockAnnotationStore()})

	task := domain.NewTask(domain.TaskTypePostAnnotations, "job-1", map[string]string{"unit_id": "unit-1"})
	_, err := p.Process(context.Background(), task)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = p.Process(context.Background(), domain.NewTask("reindex", "", nil))
	assert.Error(t, err)
}

func TestSubmissionProcessor_PurgeDrafts(t *testing.T) {
	ctx := context.Background()
	progress := mocks.NewMockProgressStore()
	require.NoError(t, progress.SaveDraft(ctx, &domain.Draft{UnitID: "old", CoderID: "c", UpdatedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, progress.SaveDraft(ctx, &domain.Draft{UnitID: "new", CoderID: "c", UpdatedAt: time.Now()}))

	queue := mocks.NewMockTaskQueue()
	finished := domain.NewTask(domain.TaskTypePurgeDrafts, "", nil)
	require.NoError(t, queue.Enqueue(ctx, finished))
	finished.MarkCompleted()
	finished.UpdatedAt = time.Now().Add(-48 * time.Hour)
	recent := domain.NewTask(domain.TaskTypePurgeDrafts, "", nil)
	require.NoError(t, queue.Enqueue(ctx, recent))
	recent.MarkCompleted()

	p := NewSubmissionProcessor(SubmissionProcessorConfig{
		AnnotationStore: mocks.NewMockAnnotationStore(),
		ProgressStore:   progress,
		TaskQueue:       queue,
		DraftMaxAge:     24 * time.Hour,
		TaskRetention:   24 * time.Hour,
	})

	result, err := p.Process(ctx, domain.NewTask(domain.TaskTypePurgeDrafts, "", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsCount)
	assert.Equal(t, 1, progress.Count())

	_, err = progress.GetDraft(ctx, "new", "c")
	assert.NoError(t, err)

	_, err = queue.GetTask(ctx, finished.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "finished tasks past retention are purged")
	_, err = queue.GetTask(ctx, recent.ID)
	assert.NoError(t, err)
}
