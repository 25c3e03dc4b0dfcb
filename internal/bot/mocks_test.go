package bot

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
)

// mockPlatform records mutations as "Method arg arg ...".
type mockPlatform struct {
	Errors   map[string]error
	Channels map[string]string // channel ID -> name
	Voice    map[string]string // user ID -> channel ID
	calls    []string
	mu       sync.Mutex
}

func newMockPlatform() *mockPlatform {
	return &mockPlatform{
		Errors:   make(map[string]error),
		Channels: make(map[string]string),
		Voice:    make(map[string]string),
	}
}

func (m *mockPlatform) record(method string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := []string{method}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	m.calls = append(m.calls, strings.Join(parts, " "))
	return m.Errors[method]
}

func (m *mockPlatform) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockPlatform) SetMute(_ context.Context, g, u string, v bool, _ string) error {
	return m.record("SetMute", g, u, v)
}

func (m *mockPlatform) SetDeaf(_ context.Context, g, u string, v bool, _ string) error {
	return m.record("SetDeaf", g, u, v)
}

func (m *mockPlatform) Timeout(_ context.Context, g, u string, until *time.Time, _ string) error {
	return m.record("Timeout", g, u, until != nil)
}

func (m *mockPlatform) AddRole(_ context.Context, g, u, r, _ string) error {
	return m.record("AddRole", g, u, r)
}

func (m *mockPlatform) RemoveRole(_ context.Context, g, u, r, _ string) error {
	return m.record("RemoveRole", g, u, r)
}

func (m *mockPlatform) SetNickname(_ context.Context, g, u, nick, _ string) error {
	return m.record("SetNickname", g, u, nick)
}

func (m *mockPlatform) Move(_ context.Context, g, u, ch, _ string) error {
	if err := m.record("Move", g, u, ch); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch == "" {
		delete(m.Voice, u)
	} else {
		m.Voice[u] = ch
	}
	return nil
}

func (m *mockPlatform) RenameChannel(_ context.Context, ch, name, _ string) error {
	return m.record("RenameChannel", ch, name)
}

func (m *mockPlatform) SetRolePermissions(_ context.Context, g, r string, perms int64, _ string) error {
	return m.record("SetRolePermissions", g, r, perms)
}

func (m *mockPlatform) CreateRole(_ context.Context, g string, r platform.Role, _ string) (string, error) {
	return "r-new", m.record("CreateRole", g, r.Name)
}

func (m *mockPlatform) IsBanned(context.Context, string, string) (bool, error) {
	return false, nil
}

func (m *mockPlatform) Unban(_ context.Context, g, u, _ string) error {
	return m.record("Unban", g, u)
}

func (m *mockPlatform) CreateInvite(_ context.Context, g, _ string) (string, error) {
	return "https://discord.gg/abc", m.record("CreateInvite", g)
}

func (m *mockPlatform) DeleteMessage(_ context.Context, ch, msg, _ string) error {
	return m.record("DeleteMessage", ch, msg)
}

func (m *mockPlatform) Member(context.Context, string, string) (platform.MemberState, error) {
	return platform.MemberState{}, nil
}

func (m *mockPlatform) Role(_ context.Context, _, roleID string) (platform.Role, error) {
	return platform.Role{ID: roleID}, nil
}

func (m *mockPlatform) VoiceChannelOf(_ context.Context, _, u string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Voice[u]
}

func (m *mockPlatform) VoiceMembers(_ context.Context, _, ch string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for u, c := range m.Voice {
		if c == ch {
			ids = append(ids, u)
		}
	}
	return ids
}

func (m *mockPlatform) MoveTargets(context.Context, string) ([]string, error) {
	return []string{"v0", "v1"}, nil
}

func (m *mockPlatform) ChannelName(_ context.Context, ch string) (string, error) {
	if err := m.record("ChannelName", ch); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Channels[ch], nil
}

// mockAttributor attributes every change to Actor.
type mockAttributor struct {
	Actor string
}

func (m *mockAttributor) Resolve(context.Context, audit.Query) audit.Actor {
	return audit.Actor{ID: m.Actor}
}

// mockAlerter collects alerts.
type mockAlerter struct {
	alerts []format.Alert
	mu     sync.Mutex
}

func (m *mockAlerter) Alert(_ context.Context, _ string, a format.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
}

func (m *mockAlerter) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEngine struct {
	*Engine
	platform *mockPlatform
	state    *state.Manager
	alerts   *mockAlerter
}

func newTestEngine() *testEngine {
	modules := make(map[string]bool, len(state.Modules))
	for _, m := range state.Modules {
		modules[m] = true
	}
	st := state.NewManager(state.ManagerConfig{
		Logger: discardLogger(),
		Template: state.GuildState{
			Modules:       modules,
			AntiMove:      state.AntiMoveSettings{MaxAttempts: 3, PunishmentDuration: 10 * time.Minute, PunishmentType: state.PunishmentTimeout},
			Wakeup:        state.WakeupSettings{MovesCount: 4},
			Notifications: state.Notifications{DMAlerts: true, AdminRoleAlert: true, ProtectedRoleAlert: true},
		},
	})
	p := newMockPlatform()
	alerts := &mockAlerter{}
	e := NewEngine(EngineConfig{
		Platform:    p,
		State:       st,
		Markers:     markers.New(time.Minute, 0),
		Audit:       &mockAttributor{Actor: "mover"},
		Alerts:      alerts,
		Logger:      discardLogger(),
		BotID:       func() string { return "bot" },
		ProtectedID: testProtected,
	})
	return &testEngine{Engine: e, platform: p, state: st, alerts: alerts}
}

// stubHandler is a programmable handler for registry tests.
type stubHandler struct {
	name   string
	module string
	fn     func() error
	calls  int
	mu     sync.Mutex
}

func (s *stubHandler) Name() string        { return s.name }
func (s *stubHandler) Kind() platform.Kind { return platform.KindMessage }
func (s *stubHandler) Module() string      { return s.module }

func (s *stubHandler) Handle(context.Context, state.GuildState, platform.Notification) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fn == nil {
		return nil
	}
	return s.fn()
}

func (s *stubHandler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
