package driven

import (
	"context"
	"time"
)

// DistributedLock guards against two workers processing the same document
// concurrently (e.g. a duplicate enqueue racing a live attempt).
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if acquired, false if already held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release releases a named lock if held by this instance.
	Release(ctx context.Context, name string) error
}
