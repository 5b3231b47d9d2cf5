package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/example/dispatch/internal/ports/secondary"
)

// Locker hands out locks shared by every process using the same Redis.
type Locker struct {
	client *redislock.Client
	prefix string
}

// NewLocker creates a locker whose keys are namespaced by prefix.
func NewLocker(client goredis.UniversalClient, prefix string) *Locker {
	return &Locker{client: redislock.New(client), prefix: prefix}
}

// Obtain takes the lock on key for ttl without retrying.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (secondary.Lock, error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, secondary.ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return &redisLock{lock: lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

// Release frees the lock. A lock that already expired is not an error.
func (k *redisLock) Release(ctx context.Context) error {
	err := k.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

var _ secondary.Locker = (*Locker)(nil)
