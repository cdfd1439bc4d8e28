// Package lease provides optional per-key advisory leases placed in front of the
// non-transactional row store. A lease narrows, but does not close, the lost-update
// window: holders that outlive the TTL lose exclusivity.
package lease

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/errs"
)

// Lease is a named, expiring advisory lock.
type Lease interface {
	// TryAcquire takes key for ttl if nobody holds it; the returned token identifies the holder.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees key if it is still held with token.
	Release(ctx context.Context, key, token string) error
}

const (
	defaultPoll     = 50 * time.Millisecond
	releaseTimeout  = 2 * time.Second
	DefaultTTL      = 10 * time.Second
	DefaultWait     = 2 * time.Second
	UserKeyPrefix   = "user:"
	DialogKeyPrefix = "dialog:"
)

// Locker acquires leases with a bounded wait. A nil Locker, or one without a backend,
// grants every lock immediately.
type Locker struct {
	lease Lease
	ttl   time.Duration
	wait  time.Duration
	poll  time.Duration
	log   *zap.Logger
}

// NewLocker wraps a lease backend; non-positive durations fall back to defaults.
func NewLocker(l Lease, ttl, wait time.Duration, log *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Locker{lease: l, ttl: ttl, wait: wait, poll: defaultPoll, log: log}
}

func noop() {}

// Lock waits up to the configured wait for key. On failure it returns a no-op release
// func together with the error (errs.ErrLeaseHeld on timeout), so callers may proceed
// unlocked.
func (k *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if k == nil || k.lease == nil {
		return noop, nil
	}
	deadline := time.Now().Add(k.wait)
	for {
		token, ok, err := k.lease.TryAcquire(ctx, key, k.ttl)
		if err != nil {
			return noop, err
		}
		if ok {
			return func() { k.release(ctx, key, token) }, nil
		}
		if time.Now().After(deadline) {
			return noop, errs.ErrLeaseHeld
		}
		t := time.NewTimer(k.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return noop, ctx.Err()
		case <-t.C:
		}
	}
}

func (k *Locker) release(ctx context.Context, key, token string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := k.lease.Release(rctx, key, token); err != nil && !errors.Is(err, context.Canceled) {
		k.log.Warn("lease release", zap.String("key", key), zap.Error(err))
	}
}
