package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

const (
	mockOwner     = "mock-owner"
	externalOwner = "other-worker"
)

// MockDistributedLock is an in-memory DistributedLock owned by one instance.
// It records every successful acquisition so tests can assert which unit and
// coder locks a worker took.
type MockDistributedLock struct {
	mu       sync.Mutex
	held     map[string]heldLock
	acquired []string

	// AcquireFn overrides Acquire when set
	AcquireFn func(name string, ttl time.Duration) (bool, error)
	// PingFn overrides Ping when set
	PingFn func() error
}

type heldLock struct {
	owner   string
	expires time.Time
}

func (h heldLock) live() bool {
	return time.Now().Before(h.expires)
}

// NewMockDistributedLock creates an empty lock table
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]heldLock)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.held[name]; ok && h.live() {
		return false, nil
	}
	m.held[name] = heldLock{owner: mockOwner, expires: time.Now().Add(ttl)}
	m.acquired = append(m.acquired, name)
	return true, nil
}

// Release leaves locks held by other owners in place
func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.held[name]; ok && h.owner == mockOwner {
		delete(m.held, name)
	}
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.held[name]
	if !ok || !h.live() || h.owner != mockOwner {
		return fmt.Errorf("%w: %s", domain.ErrLockHeld, name)
	}
	h.expires = time.Now().Add(ttl)
	m.held[name] = h
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// IsHeld reports whether anyone holds a live lock on name
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.held[name]
	return ok && h.live()
}

// SetLockHeld makes another worker hold name for ttl
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[name] = heldLock{owner: externalOwner, expires: time.Now().Add(ttl)}
}

// Acquisitions returns the names acquired by this instance, in order
func (m *MockDistributedLock) Acquisitions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...)
}

// Reset drops every held lock and the acquisition history
func (m *MockDistributedLock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held = make(map[string]heldLock)
	m.acquired = nil
}
