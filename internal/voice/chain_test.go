package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/codeGROOVE-dev/warden/internal/platform"
)

func TestChains_Toggle(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := NewChains(h.deps())

	active, err := c.Toggle(ctx, testGuild, "f1")
	if err != nil || !active {
		t.Fatalf("Toggle() = %v, %v; want active", active, err)
	}
	link := h.snapshot().ChainLinks["f1"]
	if !link.Active || link.MasterID != testProtected || link.EndedAt != nil {
		t.Errorf("link = %+v", link)
	}

	active, err = c.Toggle(ctx, testGuild, "f1")
	if err != nil || active {
		t.Fatalf("second Toggle() = %v, %v; want inactive", active, err)
	}
	link = h.snapshot().ChainLinks["f1"]
	if link.Active || link.EndedAt == nil {
		t.Errorf("deactivated link = %+v, want ended", link)
	}

	active, err = c.Toggle(ctx, testGuild, "f1")
	if err != nil || !active {
		t.Fatalf("third Toggle() = %v, %v; want active", active, err)
	}
	if n := len(h.snapshot().ChainLinks); n != 1 {
		t.Errorf("links = %d, want at most one per follower", n)
	}

	if _, err := c.Toggle(ctx, testGuild, testProtected); !errors.Is(err, ErrProtectedTarget) {
		t.Errorf("Toggle(protected) error = %v", err)
	}
}

func chainMove(before, after string) platform.VoiceTransition {
	return platform.VoiceTransition{
		GuildID:   testGuild,
		UserID:    testProtected,
		Before:    platform.VoiceState{ChannelID: before},
		After:     platform.VoiceState{ChannelID: after},
		HasBefore: true,
	}
}

func TestChainFollower_MovesConnectedFollowers(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := NewChains(h.deps())
	for _, id := range []string{"f1", "f2", "f3"} {
		if _, err := c.Toggle(ctx, testGuild, id); err != nil {
			t.Fatal(err)
		}
	}
	h.voice.Positions["f1"] = "a"
	h.voice.Positions["f2"] = "b"
	h.voice.MoveErr["f2"] = errors.New("gone")
	// f3 is not connected.

	f := NewChainFollower(h.deps())
	if err := f.Handle(ctx, h.snapshot(), chainMove("a", "b2")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if h.voice.Positions["f1"] != "b2" {
		t.Errorf("f1 in %q, want b2", h.voice.Positions["f1"])
	}
	if _, ok := h.voice.Positions["f3"]; ok {
		t.Error("disconnected follower should not be moved")
	}
	if !h.markers.Armed(admitKey(testGuild, "f1")) {
		t.Error("follower move should be admitted through private gates")
	}
	if !h.snapshot().ChainLinks["f1"].Active {
		t.Error("links stay active while the master is connected")
	}
}

func TestChainFollower_MasterDisconnectEndsLinks(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := NewChains(h.deps())
	for _, id := range []string{"f1", "f2"} {
		if _, err := c.Toggle(ctx, testGuild, id); err != nil {
			t.Fatal(err)
		}
	}
	h.voice.Positions["f1"] = "a"

	f := NewChainFollower(h.deps())
	if err := f.Handle(ctx, h.snapshot(), chainMove("a", "")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if _, ok := h.voice.Positions["f1"]; ok {
		t.Error("connected follower should be disconnected")
	}
	for id, link := range h.snapshot().ChainLinks {
		if link.Active || link.EndedAt == nil {
			t.Errorf("link %s = %+v, want ended", id, link)
		}
	}
}

func TestChainFollower_IgnoresOthersAndNoFollowers(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	f := NewChainFollower(h.deps())

	if err := f.Handle(ctx, h.snapshot(), chainMove("a", "b")); err != nil {
		t.Fatal(err)
	}
	other := chainMove("a", "b")
	other.UserID = "u9"
	if err := f.Handle(ctx, h.snapshot(), other); err != nil {
		t.Fatal(err)
	}
	if moves := h.voice.Moves(); len(moves) != 0 {
		t.Errorf("moves = %v, want none", moves)
	}
}

func TestChainFollower_HoldsWhileRelocationReverted(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := NewChains(h.deps())
	if _, err := c.Toggle(ctx, testGuild, "f1"); err != nil {
		t.Fatal(err)
	}
	h.voice.Positions["f1"] = "home"
	h.markers.Arm(revertKey(testGuild, testProtected), "home")

	f := NewChainFollower(h.deps())
	if err := f.Handle(ctx, h.snapshot(), chainMove("home", "attacker")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if moves := h.voice.Moves(); len(moves) != 0 {
		t.Errorf("moves = %v, want none while the revert is pending", moves)
	}
	if !h.snapshot().ChainLinks["f1"].Active {
		t.Error("link should stay active")
	}
}
