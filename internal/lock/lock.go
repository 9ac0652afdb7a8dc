// Package lock implements the advisory departure lock: a short-TTL Redis
// mutex keyed by departure id that serializes booking attempts across
// process instances before they reach the database transaction.  It is a
// latency and fairness optimisation in front of the authoritative
// SELECT ... FOR UPDATE row lock — correctness never depends on it alone.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrContended is returned when the lock could not be acquired within the
// configured maximum wait.  It maps to a retryable 409 at the HTTP
// boundary: the caller is told to retry shortly, unlike a hard capacity
// conflict which will not self-resolve.
var ErrContended = errors.New("departure is being booked by another user, retry shortly")

// releaseScript deletes the lock key only when the stored value still
// equals the caller's owner token.  This prevents a slow holder from
// releasing a lock it no longer owns after TTL expiry and re-acquisition
// by another actor.  GET+DEL as two round trips would reopen that race.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Store is the minimal Redis surface the lock needs.  *redis.Client
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// DepartureLock acquires and releases per-departure advisory locks.  A nil
// Store degrades to no-op acquisition so the service keeps working (on the
// row lock alone) when Redis is unavailable at startup.
type DepartureLock struct {
	store   Store
	ttl     time.Duration // key expiry; safety net against crashed holders
	retry   time.Duration // delay between acquisition attempts
	maxWait time.Duration // total time to keep retrying before ErrContended
}

// New returns a DepartureLock with the given tuning.  Non-positive values
// fall back to the defaults (300s TTL, 100ms retry, 5s max wait).
func New(store Store, ttl, retry, maxWait time.Duration) *DepartureLock {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &DepartureLock{store: store, ttl: ttl, retry: retry, maxWait: maxWait}
}

// Handle represents an acquired lock.  Release must be called on every
// exit path; callers defer it immediately after a successful Acquire.
type Handle struct {
	store Store
	key   string
	token string
}

// Acquire attempts SET key token NX EX ttl on lock:dep:{id}, retrying
// every retry interval until maxWait elapses.  It returns ErrContended on
// timeout and the context error if ctx is cancelled first.  No database
// work has started at this point, so a failed acquisition leaves no
// partial state behind.
func (l *DepartureLock) Acquire(ctx context.Context, departureID uint64) (*Handle, error) {
	h := &Handle{
		store: l.store,
		key:   fmt.Sprintf("lock:dep:%d", departureID),
		token: uuid.NewString(),
	}
	if l.store == nil {
		return h, nil
	}
	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.store.SetNX(ctx, h.key, h.token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return h, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrContended
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// Release deletes the lock if this handle still owns it.  Errors are
// swallowed: the TTL guarantees eventual expiry and the row lock carries
// correctness, so a failed release only costs another caller some waiting.
func (h *Handle) Release(ctx context.Context) {
	if h == nil || h.store == nil {
		return
	}
	_ = h.store.Eval(ctx, releaseScript, []string{h.key}, h.token).Err()
}
