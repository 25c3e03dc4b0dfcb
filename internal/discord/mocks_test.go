package discord

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/warden/internal/protect"
	"github.com/codeGROOVE-dev/warden/internal/state"
	"github.com/codeGROOVE-dev/warden/internal/voice"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCommander records calls and returns canned results.
type fakeCommander struct {
	mu sync.Mutex

	status    Status
	toggle    bool
	changed   bool
	err       error
	strip     protect.StripResult
	logs      []state.LogEntry
	wakeup    voice.WakeupResult
	calls     []string
	lastNotif state.Notifications
	lastN     int
	lastDur   time.Duration
}

func (f *fakeCommander) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCommander) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeCommander) Status(context.Context, string) Status {
	f.record("Status")
	return f.status
}

func (f *fakeCommander) SetModule(_ context.Context, _, module string, enabled bool) error {
	f.record("SetModule " + module)
	if enabled {
		f.record("enabled")
	}
	return f.err
}

func (f *fakeCommander) ProtectRole(_ context.Context, _, roleID string, _ bool) (bool, error) {
	f.record("ProtectRole " + roleID)
	return f.changed, f.err
}

func (f *fakeCommander) ToggleLock(_ context.Context, _, channelID, _ string) (bool, error) {
	f.record("ToggleLock " + channelID)
	return f.toggle, f.err
}

func (f *fakeCommander) ToggleChain(_ context.Context, _, userID string) (bool, error) {
	f.record("ToggleChain " + userID)
	return f.toggle, f.err
}

func (f *fakeCommander) Wakeup(_ context.Context, _, userID string, progress func(voice.Progress)) (voice.WakeupResult, error) {
	f.record("Wakeup " + userID)
	if progress != nil {
		progress(voice.Progress{Step: 1, Total: 1})
	}
	return f.wakeup, f.err
}

func (f *fakeCommander) TogglePrivate(_ context.Context, _, channelID, _ string) (bool, error) {
	f.record("TogglePrivate " + channelID)
	return f.toggle, f.err
}

func (f *fakeCommander) Allow(_ context.Context, _, channelID, userID string) error {
	f.record("Allow " + channelID + " " + userID)
	return f.err
}

func (f *fakeCommander) Revoke(_ context.Context, _, channelID, userID string) error {
	f.record("Revoke " + channelID + " " + userID)
	return f.err
}

func (f *fakeCommander) Strip(_ context.Context, _, userID, _ string) (protect.StripResult, error) {
	f.record("Strip " + userID)
	return f.strip, f.err
}

func (f *fakeCommander) Restore(_ context.Context, _, userID, _ string) (protect.StripResult, error) {
	f.record("Restore " + userID)
	return f.strip, f.err
}

func (f *fakeCommander) Logs(_ context.Context, _ string, n int) []state.LogEntry {
	f.record("Logs")
	f.mu.Lock()
	f.lastN = n
	f.mu.Unlock()
	return f.logs
}

func (f *fakeCommander) SetAntiMove(_ context.Context, _ string, maxAttempts int, d time.Duration) error {
	f.record("SetAntiMove")
	f.mu.Lock()
	f.lastN, f.lastDur = maxAttempts, d
	f.mu.Unlock()
	return f.err
}

func (f *fakeCommander) SetWakeup(_ context.Context, _ string, moves int, delay time.Duration) error {
	f.record("SetWakeup")
	f.mu.Lock()
	f.lastN, f.lastDur = moves, delay
	f.mu.Unlock()
	return f.err
}

func (f *fakeCommander) SetNotifications(_ context.Context, _ string, n state.Notifications) error {
	f.record("SetNotifications")
	f.mu.Lock()
	f.lastNotif = n
	f.mu.Unlock()
	return f.err
}
