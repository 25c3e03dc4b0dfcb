// Package protect implements the reactive protection handlers that revert
// unauthorized changes to the protected account and its guild resources.
package protect

import (
	"context"
	"time"

	"github.com/codeGROOVE-dev/warden/internal/audit"
	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/markers"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// Platform defines the Discord mutations and lookups the handlers need.
// Mutations take an audit-log reason.
type Platform interface {
	SetMute(ctx context.Context, guildID, userID string, mute bool, reason string) error
	SetDeaf(ctx context.Context, guildID, userID string, deaf bool, reason string) error
	Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error
	AddRole(ctx context.Context, guildID, userID, roleID, reason string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error
	SetNickname(ctx context.Context, guildID, userID, nick, reason string) error
	Move(ctx context.Context, guildID, userID, channelID, reason string) error
	RenameChannel(ctx context.Context, channelID, name, reason string) error
	SetRolePermissions(ctx context.Context, guildID, roleID string, perms int64, reason string) error
	CreateRole(ctx context.Context, guildID string, role platform.Role, reason string) (string, error)
	IsBanned(ctx context.Context, guildID, userID string) (bool, error)
	Unban(ctx context.Context, guildID, userID, reason string) error
	CreateInvite(ctx context.Context, guildID, reason string) (string, error)
	DeleteMessage(ctx context.Context, channelID, messageID, reason string) error

	Member(ctx context.Context, guildID, userID string) (platform.MemberState, error)
	Role(ctx context.Context, guildID, roleID string) (platform.Role, error)
}

// StateManager defines guild state operations.
type StateManager interface {
	Snapshot(ctx context.Context, guildID string) state.GuildState
	Update(ctx context.Context, guildID string, fn func(*state.GuildState) error) (state.GuildState, error)
	AppendLog(ctx context.Context, guildID, typ string, details map[string]string)
	ReplaceProtectedRole(ctx context.Context, guildID, oldID, newID string) error
	SetBaselineNickname(ctx context.Context, guildID, nick string) error
	Now() time.Time
}

// Markers defines loop-prevention operations.
type Markers interface {
	Arm(k markers.Key, expect string) string
	Consume(k markers.Key, observed string) bool
	Disarm(k markers.Key, id string)
}

// Attributor resolves who made a change.
type Attributor interface {
	Resolve(ctx context.Context, q audit.Query) audit.Actor
}

// Alerter delivers alerts to the protected account.
type Alerter interface {
	Alert(ctx context.Context, guildID string, a format.Alert)
}
