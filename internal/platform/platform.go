// Package platform defines the notifications, handler contract and error
// taxonomy shared between the Discord transport and the protection handlers.
package platform

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/warden/internal/state"
)

var (
	// ErrPermissionDenied is returned when the bot lacks permission for a mutation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound is returned when the target of a mutation no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrModuleDisabled is returned when an operation's module is switched off.
	ErrModuleDisabled = errors.New("module disabled")
)

// ReasonPrefix marks audit-log reasons written by the engine's own corrections.
const ReasonPrefix = "warden:"

// Reason builds an audit-log reason carrying a correlation id.
func Reason(correlationID, text string) string {
	return ReasonPrefix + correlationID + " " + text
}

// IsOwnReason reports whether an audit-log reason was written by the engine.
func IsOwnReason(reason string) bool {
	return strings.HasPrefix(reason, ReasonPrefix)
}

// Kind identifies the notification category.
type Kind int

// Notification kinds.
const (
	KindVoice Kind = iota + 1
	KindMember
	KindRoleUpdate
	KindRoleDelete
	KindChannelUpdate
	KindMemberRemove
	KindMemberJoin
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindVoice:
		return "voice"
	case KindMember:
		return "member"
	case KindRoleUpdate:
		return "role_update"
	case KindRoleDelete:
		return "role_delete"
	case KindChannelUpdate:
		return "channel_update"
	case KindMemberRemove:
		return "member_remove"
	case KindMemberJoin:
		return "member_join"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Notification is a gateway event translated into old/new snapshots.
type Notification interface {
	Kind() Kind
	Guild() string
}

// Handler reacts to one kind of notification.
type Handler interface {
	Name() string
	Kind() Kind
	// Module is the gate flag, or "" for handlers that always run.
	Module() string
	Handle(ctx context.Context, gs state.GuildState, n Notification) error
}

// VoiceState is the voice-relevant part of a member's state.
// An empty ChannelID means disconnected.
type VoiceState struct {
	ChannelID string
	Mute      bool
	Deaf      bool
}

// VoiceTransition is a change in a member's voice state.
type VoiceTransition struct {
	GuildID   string
	UserID    string
	Before    VoiceState
	After     VoiceState
	HasBefore bool
}

func (VoiceTransition) Kind() Kind        { return KindVoice }
func (v VoiceTransition) Guild() string   { return v.GuildID }
func (v VoiceTransition) Moved() bool     { return v.Before.ChannelID != v.After.ChannelID }
func (v VoiceTransition) Relocated() bool { return v.Moved() && v.Before.ChannelID != "" && v.After.ChannelID != "" }

// MemberState is the protection-relevant part of a guild member.
type MemberState struct {
	TimeoutUntil *time.Time
	Nick         string
	Roles        []string
}

// HasRole reports whether the member holds roleID.
func (m MemberState) HasRole(roleID string) bool {
	return slices.Contains(m.Roles, roleID)
}

// TimedOut reports whether the member is timed out at now.
func (m MemberState) TimedOut(now time.Time) bool {
	return m.TimeoutUntil != nil && m.TimeoutUntil.After(now)
}

// MemberTransition is a change in a guild member.
type MemberTransition struct {
	GuildID   string
	UserID    string
	Before    MemberState
	After     MemberState
	HasBefore bool
}

func (MemberTransition) Kind() Kind      { return KindMember }
func (m MemberTransition) Guild() string { return m.GuildID }

// PermissionAdministrator is the Administrator permission bit.
const PermissionAdministrator int64 = 1 << 3

// Role is a guild role's attributes.
type Role struct {
	ID          string
	Name        string
	Color       int
	Permissions int64
	Position    int
	Hoist       bool
	Mentionable bool
	Managed     bool
}

// Admin reports whether the role grants Administrator.
func (r Role) Admin() bool {
	return r.Permissions&PermissionAdministrator != 0
}

// RoleTransition is a change to a role.
type RoleTransition struct {
	GuildID   string
	Before    Role
	After     Role
	HasBefore bool
}

func (RoleTransition) Kind() Kind      { return KindRoleUpdate }
func (r RoleTransition) Guild() string { return r.GuildID }

// RoleDeletion is a deleted role. Known is false when no snapshot was cached.
type RoleDeletion struct {
	GuildID string
	Role    Role
	Known   bool
}

func (RoleDeletion) Kind() Kind      { return KindRoleDelete }
func (r RoleDeletion) Guild() string { return r.GuildID }

// ChannelTransition is a change to a channel's name.
type ChannelTransition struct {
	GuildID    string
	ChannelID  string
	BeforeName string
	AfterName  string
}

func (ChannelTransition) Kind() Kind      { return KindChannelUpdate }
func (c ChannelTransition) Guild() string { return c.GuildID }

// MemberRemoval is a member leaving the guild by kick, ban or departure.
type MemberRemoval struct {
	GuildID string
	UserID  string
}

func (MemberRemoval) Kind() Kind      { return KindMemberRemove }
func (m MemberRemoval) Guild() string { return m.GuildID }

// MemberJoin is a member (re)joining the guild.
type MemberJoin struct {
	GuildID string
	UserID  string
}

func (MemberJoin) Kind() Kind      { return KindMemberJoin }
func (m MemberJoin) Guild() string { return m.GuildID }

// Message is a new guild message with its mentions.
type Message struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
	Mentions  []string
	AuthorBot bool
}

func (Message) Kind() Kind      { return KindMessage }
func (m Message) Guild() string { return m.GuildID }

// Mentioned reports whether the message mentions userID.
func (m Message) Mentioned(userID string) bool {
	return slices.Contains(m.Mentions, userID)
}

// Audit-log action types used for attribution.
const (
	AuditChannelUpdate    = 11
	AuditMemberKick       = 20
	AuditMemberUpdate     = 24
	AuditMemberRoleUpdate = 25
	AuditMemberMove       = 26
	AuditMemberDisconnect = 27
	AuditBanAdd           = 22
	AuditRoleUpdate       = 31
	AuditRoleDelete       = 32
)

// AuditEntry is one audit-log record.
type AuditEntry struct {
	CreatedAt time.Time
	ID        string
	ActorID   string
	TargetID  string
	ChannelID string
	Reason    string
	Changes   []string
}

// HasChange reports whether the entry touched key.
func (e AuditEntry) HasChange(key string) bool {
	return slices.Contains(e.Changes, key)
}
