package events

import (
	"context"
	"sync"
	"time"

	"github.com/example/dispatch/internal/ports/secondary"
)

// LocalLocker hands out exclusive locks within one process.
// Expired locks are taken over by the next Obtain.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	now   func() time.Time
	nonce uint64
}

type localEntry struct {
	token   uint64
	expires time.Time
}

// NewLocalLocker creates an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

// Obtain takes the lock on key for ttl, or returns secondary.ErrLockNotObtained.
func (l *LocalLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (secondary.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, secondary.ErrLockNotObtained
	}
	l.nonce++
	l.held[key] = localEntry{token: l.nonce, expires: now.Add(ttl)}
	return &localLock{locker: l, key: key, token: l.nonce}, nil
}

type localLock struct {
	locker *LocalLocker
	key    string
	token  uint64
}

// Release frees the lock unless it already expired and was taken over.
func (k *localLock) Release(context.Context) error {
	k.locker.mu.Lock()
	defer k.locker.mu.Unlock()

	if e, ok := k.locker.held[k.key]; ok && e.token == k.token {
		delete(k.locker.held, k.key)
	}
	return nil
}

var _ secondary.Locker = (*LocalLocker)(nil)
