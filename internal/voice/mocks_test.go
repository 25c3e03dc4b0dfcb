package voice

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/warden/internal/markers"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

const (
	testGuild     = "g1"
	testProtected = "p1"
)

type move struct {
	UserID    string
	ChannelID string
}

// fakeVoice tracks member positions and records moves.
type fakeVoice struct {
	Positions map[string]string
	Targets   []string
	MoveErr   map[string]error // keyed by user id
	// OnMove runs after each successful move with the move count so far.
	OnMove  func(n int)
	moves   []move
	lookups int
	mu      sync.Mutex
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{
		Positions: make(map[string]string),
		MoveErr:   make(map[string]error),
	}
}

func (f *fakeVoice) Move(_ context.Context, _, userID, channelID, _ string) error {
	f.mu.Lock()
	if err := f.MoveErr[userID]; err != nil {
		f.mu.Unlock()
		return err
	}
	f.moves = append(f.moves, move{UserID: userID, ChannelID: channelID})
	if channelID == "" {
		delete(f.Positions, userID)
	} else {
		f.Positions[userID] = channelID
	}
	n := len(f.moves)
	hook := f.OnMove
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (f *fakeVoice) VoiceChannelOf(_ context.Context, _, userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	return f.Positions[userID]
}

func (f *fakeVoice) VoiceMembers(_ context.Context, _, channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, ch := range f.Positions {
		if ch == channelID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeVoice) MoveTargets(context.Context, string) ([]string, error) {
	return f.Targets, nil
}

func (f *fakeVoice) Moves() []move {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]move(nil), f.moves...)
}

func (f *fakeVoice) disconnect(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Positions, userID)
}

type harness struct {
	voice   *fakeVoice
	state   *state.Manager
	markers *markers.Registry
	now     time.Time
}

func newHarness() *harness {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &harness{
		voice:   newFakeVoice(),
		markers: markers.New(time.Minute, 0),
		now:     now,
		state: state.NewManager(state.ManagerConfig{
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
			Now:    func() time.Time { return now },
			Template: state.GuildState{
				Modules: map[string]bool{
					state.ModuleChain:        true,
					state.ModuleWakeup:       true,
					state.ModulePrivateVoice: true,
				},
				Wakeup: state.WakeupSettings{MovesCount: 10, MoveDelay: time.Second},
			},
		}),
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Platform:    h.voice,
		State:       h.state,
		Markers:     h.markers,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		ProtectedID: testProtected,
	}
}

func (h *harness) snapshot() state.GuildState {
	return h.state.Snapshot(context.Background(), testGuild)
}

func noSleep(context.Context, time.Duration) error { return nil }
