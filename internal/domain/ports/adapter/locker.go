package adapter

import (
	"context"
	"time"
)

// Locker is a best-effort distributed mutex keyed by string.
// TryLock returns a token that must be handed back to Unlock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
