package markers

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistry_ConsumeOnce(t *testing.T) {
	r := New(time.Minute, 0)
	k := Key{Kind: "anti_move", GuildID: "g1", SubjectID: "u1"}

	if r.Consume(k, "c1") {
		t.Fatal("Consume() on unarmed key should be false")
	}

	r.Arm(k, "c1")
	if !r.Consume(k, "c1") {
		t.Fatal("first Consume() should be true")
	}
	if r.Consume(k, "c1") {
		t.Error("second Consume() should be false")
	}
}

func TestRegistry_ExpectationMismatch(t *testing.T) {
	r := New(time.Minute, 0)
	k := Key{Kind: "anti_move", GuildID: "g1", SubjectID: "u1"}

	r.Arm(k, "home")
	if r.Consume(k, "elsewhere") {
		t.Fatal("Consume() with mismatching state should be false")
	}
	if !r.Armed(k) {
		t.Fatal("mismatch should leave marker armed")
	}
	if !r.Consume(k, "home") {
		t.Error("Consume() with expected state should be true")
	}
}

func TestRegistry_EmptyExpectMatchesAny(t *testing.T) {
	r := New(time.Minute, 0)
	k := Key{Kind: "anti_rename", GuildID: "g1", SubjectID: "u1"}

	r.Arm(k, "")
	if !r.Consume(k, "whatever") {
		t.Error("empty expectation should match any observation")
	}
}

func TestRegistry_KeysAreIndependent(t *testing.T) {
	r := New(time.Minute, 0)
	mute := Key{Kind: "anti_mute", GuildID: "g1", SubjectID: "u1", AuxID: "mute"}
	deaf := Key{Kind: "anti_mute", GuildID: "g1", SubjectID: "u1", AuxID: "deaf"}
	otherGuild := Key{Kind: "anti_mute", GuildID: "g2", SubjectID: "u1", AuxID: "mute"}

	r.Arm(mute, "false")
	if r.Consume(deaf, "false") {
		t.Error("deaf key should not consume mute marker")
	}
	if r.Consume(otherGuild, "false") {
		t.Error("other guild should not consume marker")
	}
	if !r.Consume(mute, "false") {
		t.Error("mute key should consume its marker")
	}
}

func TestRegistry_Disarm(t *testing.T) {
	r := New(time.Minute, 0)
	k := Key{Kind: "anti_role", GuildID: "g1", SubjectID: "u1", AuxID: "r1"}

	id := r.Arm(k, "present")
	r.Disarm(k, id)
	if r.Armed(k) {
		t.Fatal("Disarm() should remove marker")
	}

	old := r.Arm(k, "present")
	r.Arm(k, "present")
	r.Disarm(k, old)
	if !r.Armed(k) {
		t.Error("Disarm() with stale id should keep newer marker")
	}
}

func TestRegistry_Expiry(t *testing.T) {
	r := New(20*time.Millisecond, 0)
	k := Key{Kind: "lock_name", GuildID: "g1", SubjectID: "c1"}

	r.Arm(k, "general")
	time.Sleep(60 * time.Millisecond)
	if r.Consume(k, "general") {
		t.Error("expired marker should not be consumed")
	}
}

func TestRegistry_Bounded(t *testing.T) {
	r := New(time.Minute, 2)
	for _, id := range []string{"a", "b", "c"} {
		r.Arm(Key{Kind: "anti_move", GuildID: "g1", SubjectID: id}, "")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if r.Armed(Key{Kind: "anti_move", GuildID: "g1", SubjectID: "a"}) {
		t.Error("oldest marker should be evicted")
	}
}

func TestRegistry_CorrelationIDsUnique(t *testing.T) {
	r := New(time.Minute, 0)
	k := Key{Kind: "anti_move", GuildID: "g1", SubjectID: "u1"}
	a := r.Arm(k, "")
	b := r.Arm(k, "")
	if a == "" || a == b {
		t.Errorf("correlation ids %q and %q should be unique and non-empty", a, b)
	}
}

func TestRegistry_ConcurrentConsumeExactlyOnce(t *testing.T) {
	r := New(time.Minute, 0)
	k := Key{Kind: "anti_move", GuildID: "g1", SubjectID: "u1"}
	r.Arm(k, "c1")

	var consumed atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			if r.Consume(k, "c1") {
				consumed.Add(1)
			}
		})
	}
	wg.Wait()

	if consumed.Load() != 1 {
		t.Errorf("marker consumed %d times, want 1", consumed.Load())
	}
}
