package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/codeGROOVE-dev/warden/internal/platform"
)

func restError(status, code int) error {
	e := &discordgo.RESTError{Response: &http.Response{StatusCode: status, Status: http.StatusText(status)}}
	if code != 0 {
		e.Message = &discordgo.APIErrorMessage{Code: code}
	}
	return e
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "forbidden status", err: restError(http.StatusForbidden, 0), wantErr: platform.ErrPermissionDenied},
		{name: "missing permissions code", err: restError(http.StatusBadRequest, codeMissingPermissions), wantErr: platform.ErrPermissionDenied},
		{name: "not found status", err: restError(http.StatusNotFound, 0), wantErr: platform.ErrNotFound},
		{name: "unknown member", err: restError(http.StatusBadRequest, codeUnknownMember), wantErr: platform.ErrNotFound},
		{name: "unknown ban", err: restError(http.StatusBadRequest, codeUnknownBan), wantErr: platform.ErrNotFound},
		{name: "unknown role", err: restError(http.StatusBadRequest, codeUnknownRole), wantErr: platform.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.wantErr) {
				t.Errorf("classify() = %v, want %v", got, tt.wantErr)
			}
			var restErr *discordgo.RESTError
			if !errors.As(got, &restErr) {
				t.Error("classify() should keep the REST error in the chain")
			}
		})
	}
}

func TestClassify_Passthrough(t *testing.T) {
	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
	plain := errors.New("boom")
	if got := classify(plain); got != plain {
		t.Errorf("classify(plain) = %v, want unchanged", got)
	}
	server := restError(http.StatusInternalServerError, 0)
	got := classify(server)
	if errors.Is(got, platform.ErrNotFound) || errors.Is(got, platform.ErrPermissionDenied) {
		t.Errorf("classify(500) = %v, want unclassified", got)
	}
}

func TestRetryableCtx_StopsOnPermanentErrors(t *testing.T) {
	calls := 0
	err := retryableCtx(context.Background(), func() error {
		calls++
		return restError(http.StatusForbidden, codeMissingPermissions)
	})
	if err == nil {
		t.Fatal("retryableCtx() should fail")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAuditEntry(t *testing.T) {
	key := discordgo.AuditLogChangeKeyPermissions
	e := &discordgo.AuditLogEntry{
		ID:       "175928847299117063",
		UserID:   "actor",
		TargetID: "target",
		Reason:   "warden:abc restore",
		Options:  &discordgo.AuditLogOptions{ChannelID: "vc"},
		Changes:  []*discordgo.AuditLogChange{{Key: &key}, nil, {}},
	}

	got := auditEntry(e)
	if got.ActorID != "actor" || got.TargetID != "target" || got.ChannelID != "vc" {
		t.Errorf("auditEntry() = %+v", got)
	}
	want := time.Date(2016, 4, 30, 11, 18, 25, 796*int(time.Millisecond), time.UTC)
	if !got.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want)
	}
	if !got.HasChange("permissions") || len(got.Changes) != 1 {
		t.Errorf("Changes = %v, want [permissions]", got.Changes)
	}
	if !platform.IsOwnReason(got.Reason) {
		t.Error("reason should be carried through")
	}
}

func TestSortedChannels(t *testing.T) {
	channels := []*discordgo.Channel{
		{ID: "text", Type: discordgo.ChannelTypeGuildText, Position: 0},
		{ID: "v2", Type: discordgo.ChannelTypeGuildVoice, Position: 2},
		{ID: "v0", Type: discordgo.ChannelTypeGuildVoice, Position: 0},
		{ID: "v1", Type: discordgo.ChannelTypeGuildVoice, Position: 1},
	}
	got := sortedChannels(channels, discordgo.ChannelTypeGuildVoice)
	if len(got) != 3 {
		t.Fatalf("sortedChannels() returned %d channels, want 3", len(got))
	}
	for i, id := range []string{"v0", "v1", "v2"} {
		if got[i].ID != id {
			t.Errorf("sortedChannels()[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return &Client{
		session: &discordgo.Session{State: discordgo.NewState()},
		logger:  discardLogger(),
		roles:   make(map[string]map[string]platform.Role),
	}
}

func TestClient_VoiceLookups(t *testing.T) {
	c := newTestClient(t)
	err := c.session.State.GuildAdd(&discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", UserID: "u2", ChannelID: "vc"},
			{GuildID: "g1", UserID: "u1", ChannelID: "vc"},
			{GuildID: "g1", UserID: "u3", ChannelID: "other"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if got := c.VoiceChannelOf(ctx, "g1", "u3"); got != "other" {
		t.Errorf("VoiceChannelOf(u3) = %q, want other", got)
	}
	if got := c.VoiceChannelOf(ctx, "g1", "nobody"); got != "" {
		t.Errorf("VoiceChannelOf(nobody) = %q, want empty", got)
	}
	if got := c.VoiceChannelOf(ctx, "missing", "u1"); got != "" {
		t.Errorf("VoiceChannelOf(missing guild) = %q, want empty", got)
	}

	got := c.VoiceMembers(ctx, "g1", "vc")
	if len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Errorf("VoiceMembers(vc) = %v, want [u1 u2]", got)
	}
	if got := c.VoiceMembers(ctx, "missing", "vc"); got != nil {
		t.Errorf("VoiceMembers(missing guild) = %v, want nil", got)
	}
}

func TestClient_BotUserIDBeforeReady(t *testing.T) {
	c := newTestClient(t)
	if got := c.BotUserID(); got != "" {
		t.Errorf("BotUserID() = %q, want empty before ready", got)
	}
	c.session.State.User = &discordgo.User{ID: "bot"}
	if got := c.BotUserID(); got != "bot" {
		t.Errorf("BotUserID() = %q, want bot", got)
	}
}

func TestClient_RoleCache(t *testing.T) {
	c := newTestClient(t)
	c.cacheRoles("g1", []*discordgo.Role{
		{ID: "r1", Name: "Mods", Permissions: 8},
		nil,
	})

	r, ok := c.cachedRole("g1", "r1")
	if !ok || r.Name != "Mods" || !r.Admin() {
		t.Fatalf("cachedRole(r1) = %+v, %v", r, ok)
	}

	prev, had := c.cacheRole("g1", platform.Role{ID: "r1", Name: "Mods", Permissions: 0})
	if !had || prev.Permissions != 8 {
		t.Errorf("cacheRole() previous = %+v, %v; want the admin snapshot", prev, had)
	}
	if _, had := c.cacheRole("g2", platform.Role{ID: "r9"}); had {
		t.Error("cacheRole() in a new guild should report no previous snapshot")
	}

	gone, known := c.forgetRole("g1", "r1")
	if !known || gone.Name != "Mods" {
		t.Errorf("forgetRole() = %+v, %v", gone, known)
	}
	if _, known := c.forgetRole("g1", "r1"); known {
		t.Error("forgetRole() twice should report unknown")
	}
	if _, known := c.forgetRole("nope", "r1"); known {
		t.Error("forgetRole() for an uncached guild should report unknown")
	}
}

func TestOpts(t *testing.T) {
	if got := len(opts(context.Background(), "")); got != 1 {
		t.Errorf("opts() without reason = %d options, want 1", got)
	}
	if got := len(opts(context.Background(), "why")); got != 2 {
		t.Errorf("opts() with reason = %d options, want 2", got)
	}
}
