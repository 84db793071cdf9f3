package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// MockAnnotationStore is a mock implementation of AnnotationStore for testing
type MockAnnotationStore struct {
	mu          sync.RWMutex
	submissions map[string]*domain.Submission
	posted      []*domain.Submission

	// PostFn overrides PostAnnotations when set
	PostFn func(sub *domain.Submission) error
}

// NewMockAnnotationStore creates a new MockAnnotationStore
func NewMockAnnotationStore() *MockAnnotationStore {
	return &MockAnnotationStore{
		submissions: make(map[string]*domain.Submission),
	}
}

func submissionKey(unitID, coderID string) string {
	return unitID + ":" + coderID
}

func (m *MockAnnotationStore) PostAnnotations(ctx context.Context, sub *domain.Submission) error {
	if m.PostFn != nil {
		if err := m.PostFn(sub); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[submissionKey(sub.UnitID, sub.CoderID)] = sub
	m.posted = append(m.posted, sub)
	return nil
}

func (m *MockAnnotationStore) GetLatest(ctx context.Context, unitID, coderID string) (*domain.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.submissions[submissionKey(unitID, coderID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (m *MockAnnotationStore) ListByUnit(ctx context.Context, unitID string) ([]*domain.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Submission
	for _, sub := range m.submissions {
		if sub.UnitID == unitID {
			result = append(result, sub)
		}
	}
	return result, nil
}

// Posted returns every submission passed to PostAnnotations, in order
func (m *MockAnnotationStore) Posted() []*domain.Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Submission, len(m.posted))
	copy(out, m.posted)
	return out
}
