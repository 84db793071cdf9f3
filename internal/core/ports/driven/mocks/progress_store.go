package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// MockProgressStore is a mock implementation of ProgressStore for testing
type MockProgressStore struct {
	mu     sync.RWMutex
	drafts map[string]*domain.Draft

	// SaveFn overrides SaveDraft when set
	SaveFn func(draft *domain.Draft) error
}

// NewMockProgressStore creates a new MockProgressStore
func NewMockProgressStore() *MockProgressStore {
	return &MockProgressStore{
		drafts: make(map[string]*domain.Draft),
	}
}

func (m *MockProgressStore) SaveDraft(ctx context.Context, draft *domain.Draft) error {
	if m.SaveFn != nil {
		return m.SaveFn(draft)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *draft
	m.drafts[submissionKey(draft.UnitID, draft.CoderID)] = &copied
	return nil
}

func (m *MockProgressStore) GetDraft(ctx context.Context, unitID, coderID string) (*domain.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	draft, ok := m.drafts[submissionKey(unitID, coderID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *draft
	return &copied, nil
}

func (m *MockProgressStore) DeleteDraft(ctx context.Context, unitID, coderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, submissionKey(unitID, coderID))
	return nil
}

func (m *MockProgressStore) ListByCoder(ctx context.Context, coderID string) ([]*domain.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Draft
	for _, draft := range m.drafts {
		if draft.CoderID == coderID {
			copied := *draft
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockProgressStore) PurgeExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	purged := 0
	for key, draft := range m.drafts {
		if draft.UpdatedAt.Before(cutoff) {
			delete(m.drafts, key)
			purged++
		}
	}
	return purged, nil
}

// Count returns the number of stored drafts
func (m *MockProgressStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.drafts)
}
