package state

import (
	"context"
	"testing"
	"time"
)

func TestLockMap_CleanupSkipsHeldLocks(t *testing.T) {
	var lm lockMap
	held := lm.get("held")
	lm.get("idle")

	held.Lock()
	defer held.Unlock()

	if removed := lm.cleanup(-time.Second); removed != 1 {
		t.Errorf("cleanup() removed %d, want 1", removed)
	}
	if _, ok := lm.locks.Load("held"); !ok {
		t.Error("held lock should survive cleanup")
	}
	if _, ok := lm.locks.Load("idle"); ok {
		t.Error("idle lock should be removed")
	}
}

func TestLockMap_SameKeySameMutex(t *testing.T) {
	var lm lockMap
	if lm.get("g1") != lm.get("g1") {
		t.Error("get() should return the same mutex for a key")
	}
	if lm.get("g1") == lm.get("g2") {
		t.Error("get() should return distinct mutexes per key")
	}
}

func TestManager_CleanupLocks(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	ctx := context.Background()
	m.AppendLog(ctx, "g1", LogModule, map[string]string{"module": ModuleAntiMute})

	if removed := m.CleanupLocks(time.Hour); removed != 0 {
		t.Errorf("CleanupLocks(1h) removed %d recently used locks", removed)
	}
	if removed := m.CleanupLocks(-time.Second); removed != 1 {
		t.Errorf("CleanupLocks(0) removed %d, want 1", removed)
	}
	// State survives lock cleanup.
	if n := len(m.Snapshot(ctx, "g1").Logs); n != 1 {
		t.Errorf("logs = %d, want 1", n)
	}
}
