package ledger

import (
    "context"
    "sync"
    "time"
)

// keyedLocks provides mutual exclusion scoped to a string key.  Each
// occurrence gets its own lock, so bookings for unrelated classes never
// contend; entries are reference counted and removed once the last
// waiter leaves, keeping the map bounded by live contention rather than
// by the number of occurrences ever seen.
type keyedLocks struct {
    mu      sync.Mutex
    entries map[string]*lockEntry
}

type lockEntry struct {
    sem  chan struct{} // capacity 1; holding the token means holding the lock
    refs int
}

func newKeyedLocks() *keyedLocks {
    return &keyedLocks{entries: make(map[string]*lockEntry)}
}

// Acquire takes the lock for key, waiting at most timeout.  It returns
// a release function on success and ErrBusy when the wait times out, so
// booking requests stay responsive when many members race for one
// class.  Context cancellation is honored while waiting.
func (k *keyedLocks) Acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
    k.mu.Lock()
    e, ok := k.entries[key]
    if !ok {
        e = &lockEntry{sem: make(chan struct{}, 1)}
        k.entries[key] = e
    }
    e.refs++
    k.mu.Unlock()

    timer := time.NewTimer(timeout)
    defer timer.Stop()

    select {
    case e.sem <- struct{}{}:
        return func() {
            <-e.sem
            k.release(key, e)
        }, nil
    case <-timer.C:
        k.release(key, e)
        return nil, ErrBusy
    case <-ctx.Done():
        k.release(key, e)
        return nil, ctx.Err()
    }
}

// release drops one reference and deletes the entry when unused.
func (k *keyedLocks) release(key string, e *lockEntry) {
    k.mu.Lock()
    e.refs--
    if e.refs == 0 {
        delete(k.entries, key)
    }
    k.mu.Unlock()
}
