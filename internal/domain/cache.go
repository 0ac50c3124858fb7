package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking so a double-fired scheduler cannot
// start two collection runs for the same day.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
