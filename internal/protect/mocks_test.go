package protect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/warden/internal/audit"
	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/markers"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

const (
	testGuild     = "g1"
	testProtected = "p1"
	testBot       = "bot1"
)

// fakePlatform records every mutation as "Method arg arg ...".
type fakePlatform struct {
	Errors   map[string]error // keyed by method name
	Members  map[string]platform.MemberState
	Roles    map[string]platform.Role
	Banned   bool
	Invite   string
	NextRole string
	calls    []string
	reasons  []string
	until    []*time.Time
	mu       sync.Mutex
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		Errors:   make(map[string]error),
		Members:  make(map[string]platform.MemberState),
		Roles:    make(map[string]platform.Role),
		Invite:   "https://discord.gg/abc",
		NextRole: "r-new",
	}
}

func (f *fakePlatform) record(method, reason string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := []string{method}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	f.calls = append(f.calls, strings.Join(parts, " "))
	f.reasons = append(f.reasons, reason)
	return f.Errors[method]
}

func (f *fakePlatform) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlatform) Reasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reasons...)
}

func (f *fakePlatform) SetMute(_ context.Context, g, u string, mute bool, reason string) error {
	return f.record("SetMute", reason, g, u, mute)
}

func (f *fakePlatform) SetDeaf(_ context.Context, g, u string, deaf bool, reason string) error {
	return f.record("SetDeaf", reason, g, u, deaf)
}

func (f *fakePlatform) Timeout(_ context.Context, g, u string, until *time.Time, reason string) error {
	f.mu.Lock()
	f.until = append(f.until, until)
	f.mu.Unlock()
	return f.record("Timeout", reason, g, u, until != nil)
}

func (f *fakePlatform) AddRole(_ context.Context, g, u, r, reason string) error {
	return f.record("AddRole", reason, g, u, r)
}

func (f *fakePlatform) RemoveRole(_ context.Context, g, u, r, reason string) error {
	return f.record("RemoveRole", reason, g, u, r)
}

func (f *fakePlatform) SetNickname(_ context.Context, g, u, nick, reason string) error {
	return f.record("SetNickname", reason, g, u, nick)
}

func (f *fakePlatform) Move(_ context.Context, g, u, ch, reason string) error {
	return f.record("Move", reason, g, u, ch)
}

func (f *fakePlatform) RenameChannel(_ context.Context, ch, name, reason string) error {
	return f.record("RenameChannel", reason, ch, name)
}

func (f *fakePlatform) SetRolePermissions(_ context.Context, g, r string, perms int64, reason string) error {
	return f.record("SetRolePermissions", reason, g, r, perms)
}

func (f *fakePlatform) CreateRole(_ context.Context, g string, role platform.Role, reason string) (string, error) {
	if err := f.record("CreateRole", reason, g, role.Name); err != nil {
		return "", err
	}
	return f.NextRole, nil
}

func (f *fakePlatform) IsBanned(_ context.Context, g, u string) (bool, error) {
	if err := f.record("IsBanned", "", g, u); err != nil {
		return false, err
	}
	return f.Banned, nil
}

func (f *fakePlatform) Unban(_ context.Context, g, u, reason string) error {
	return f.record("Unban", reason, g, u)
}

func (f *fakePlatform) CreateInvite(_ context.Context, g, reason string) (string, error) {
	if err := f.record("CreateInvite", reason, g); err != nil {
		return "", err
	}
	return f.Invite, nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, ch, msg, reason string) error {
	return f.record("DeleteMessage", reason, ch, msg)
}

func (f *fakePlatform) Member(_ context.Context, _, u string) (platform.MemberState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.Members[u]
	if !ok {
		return platform.MemberState{}, platform.ErrNotFound
	}
	return m, nil
}

func (f *fakePlatform) Role(_ context.Context, _, r string) (platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.Roles[r]
	if !ok {
		return platform.Role{}, platform.ErrNotFound
	}
	return role, nil
}

// fakeAttributor returns a fixed actor and records queries.
type fakeAttributor struct {
	Actor   audit.Actor
	queries []audit.Query
	mu      sync.Mutex
}

func (f *fakeAttributor) Resolve(_ context.Context, q audit.Query) audit.Actor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.Actor
}

// fakeAlerter collects alerts.
type fakeAlerter struct {
	alerts []format.Alert
	mu     sync.Mutex
}

func (f *fakeAlerter) Alert(_ context.Context, _ string, a format.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
}

func (f *fakeAlerter) Titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.alerts))
	for _, a := range f.alerts {
		out = append(out, a.Title)
	}
	return out
}

type harness struct {
	platform *fakePlatform
	audit    *fakeAttributor
	alerts   *fakeAlerter
	state    *state.Manager
	markers  *markers.Registry
	now      time.Time
}

func testState() state.GuildState {
	return state.GuildState{
		Modules: map[string]bool{
			state.ModuleAntiMute:        true,
			state.ModuleAntiTimeout:     true,
			state.ModuleAntiRole:        true,
			state.ModuleAntiKickBan:     true,
			state.ModuleAntiRename:      true,
			state.ModuleAntiPermissions: true,
			state.ModuleLockName:        true,
			state.ModuleAntiMove:        true,
			state.ModuleAntiPing:        true,
		},
		AntiMove: state.AntiMoveSettings{
			PunishmentType:     state.PunishmentTimeout,
			MaxAttempts:        3,
			PunishmentDuration: 10 * time.Minute,
		},
		Notifications: state.Notifications{
			DMAlerts:           true,
			AdminRoleAlert:     true,
			ProtectedRoleAlert: true,
		},
	}
}

func newHarness() *harness {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h := &harness{
		platform: newFakePlatform(),
		audit:    &fakeAttributor{},
		alerts:   &fakeAlerter{},
		markers:  markers.New(time.Minute, 0),
		now:      now,
	}
	h.state = state.NewManager(state.ManagerConfig{
		Store:    state.NewMemoryStore(),
		Logger:   discardLogger(),
		Now:      func() time.Time { return now },
		Template: testState(),
	})
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Platform:    h.platform,
		State:       h.state,
		Markers:     h.markers,
		Audit:       h.audit,
		Alerts:      h.alerts,
		Logger:      discardLogger(),
		ProtectedID: testProtected,
		BotID:       func() string { return testBot },
	}
}

func (h *harness) snapshot() state.GuildState {
	return h.state.Snapshot(context.Background(), testGuild)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
