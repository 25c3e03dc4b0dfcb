package state

import (
	"sync"
	"time"
)

// timedLock wraps a mutex with last-access tracking for cleanup.
type timedLock struct {
	lastUsed time.Time
	mu       sync.Mutex
	stamp    sync.Mutex
}

func (tl *timedLock) touch(now time.Time) {
	tl.stamp.Lock()
	tl.lastUsed = now
	tl.stamp.Unlock()
}

func (tl *timedLock) idle(now time.Time) time.Duration {
	tl.stamp.Lock()
	defer tl.stamp.Unlock()
	return now.Sub(tl.lastUsed)
}

// lockMap manages per-guild locks with cleanup of idle entries.
type lockMap struct {
	locks sync.Map // guild ID -> *timedLock
}

func (lm *lockMap) get(key string) *sync.Mutex {
	now := time.Now()
	val, _ := lm.locks.LoadOrStore(key, &timedLock{lastUsed: now})
	tl := val.(*timedLock) //nolint:errcheck,forcetypeassert,revive // type assertion always succeeds - we control what's stored
	tl.touch(now)
	return &tl.mu
}

func (lm *lockMap) cleanup(idleTimeout time.Duration) int {
	now := time.Now()
	removed := 0
	lm.locks.Range(func(key, val any) bool {
		tl := val.(*timedLock) //nolint:errcheck,forcetypeassert,revive // type assertion always succeeds
		if tl.idle(now) > idleTimeout {
			// Only delete if the lock is not currently held.
			if tl.mu.TryLock() {
				lm.locks.Delete(key)
				tl.mu.Unlock()
				removed++
			}
		}
		return true
	})
	return removed
}
