package driven

import (
	"context"
	"time"
)

// SchedulerLockName is held by the one worker enqueueing due scheduled tasks.
const SchedulerLockName = "scheduler"

// UnitLockName names the lock a worker holds while storing one coder's
// submission for a unit, so retried or duplicate tasks never interleave.
func UnitLockName(unitID, coderID string) string {
	return "unit:" + unitID + ":" + coderID
}

// DistributedLock serializes work between worker processes. Locks are owned
// by the instance that acquired them and lapse after their TTL.
type DistributedLock interface {
	// Acquire reports false, without error, when another owner holds name
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release is a no-op for locks this instance does not hold
	Release(ctx context.Context, name string) error

	// Extend renews a held lock; it returns domain.ErrLockHeld when the lock
	// lapsed or belongs to another owner. Advisory locks have no TTL and
	// only check ownership.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
