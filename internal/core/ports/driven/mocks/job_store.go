package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// MockJobStore is a mock implementation of JobStore for testing
type MockJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*domain.Job
	units map[string]map[string]*domain.Unit

	// GetUnitFn overrides GetUnit when set
	GetUnitFn func(jobID, unitID string) (*domain.Unit, error)
}

// NewMockJobStore creates a new MockJobStore
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{
		jobs:  make(map[string]*domain.Job),
		units: make(map[string]map[string]*domain.Unit),
	}
}

func (m *MockJobStore) SaveJob(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MockJobStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (m *MockJobStore) ListJobs(ctx context.Context) ([]*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		result = append(result, job)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockJobStore) SaveUnits(ctx context.Context, jobID string, units []*domain.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[jobID]; !ok {
		return domain.ErrNotFound
	}
	byID, ok := m.units[jobID]
	if !ok {
		byID = make(map[string]*domain.Unit)
		m.units[jobID] = byID
	}
	for _, unit := range units {
		unit.JobID = jobID
		byID[unit.ID] = unit
	}
	return nil
}

func (m *MockJobStore) GetUnit(ctx context.Context, jobID, unitID string) (*domain.Unit, error) {
	if m.GetUnitFn != nil {
		return m.GetUnitFn(jobID, unitID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	unit, ok := m.units[jobID][unitID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return unit, nil
}

func (m *MockJobStore) CountUnits(ctx context.Context, jobID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.units[jobID]), nil
}
