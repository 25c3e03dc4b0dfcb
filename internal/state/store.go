// Package state provides per-guild protection state and its persistence.
package state

import (
	"context"
	"maps"
	"slices"
	"time"
)

// Module names gate the reactive handlers.
const (
	ModuleAntiMute        = "anti_mute"
	ModuleAntiTimeout     = "anti_timeout"
	ModuleAntiRole        = "anti_role"
	ModuleAntiKickBan     = "anti_kick_ban"
	ModuleAntiRename      = "anti_rename"
	ModuleAntiPermissions = "anti_permissions"
	ModuleLockName        = "lock_name"
	ModulePrivateVoice    = "private_voice"
	ModuleAntiMove        = "anti_move"
	ModuleChain           = "chain_system"
	ModuleWakeup          = "wakeup_system"
	ModuleAntiPing        = "anti_ping"
)

// Modules lists every module name in display order.
var Modules = []string{
	ModuleAntiMute,
	ModuleAntiTimeout,
	ModuleAntiRole,
	ModuleAntiKickBan,
	ModuleAntiRename,
	ModuleAntiPermissions,
	ModuleLockName,
	ModulePrivateVoice,
	ModuleAntiMove,
	ModuleChain,
	ModuleWakeup,
	ModuleAntiPing,
}

// IsModule reports whether name is a known module.
func IsModule(name string) bool {
	return slices.Contains(Modules, name)
}

// PunishmentTimeout is the only implemented punishment type.
const PunishmentTimeout = "timeout"

// LockedChannel records a channel whose name is pinned.
type LockedChannel struct {
	LockedAt     time.Time `json:"locked_at"`
	ChannelID    string    `json:"channel_id"`
	OriginalName string    `json:"original_name"`
	LockedBy     string    `json:"locked_by"`
}

// AntiMoveSettings configures the relocation punishment.
type AntiMoveSettings struct {
	PunishmentType     string        `json:"punishment_type"`
	MaxAttempts        int           `json:"max_attempts"`
	PunishmentDuration time.Duration `json:"punishment_duration"`
}

// Threshold returns the attempt count that triggers punishment.
func (s AntiMoveSettings) Threshold() int {
	return max(s.MaxAttempts, 1)
}

// MinWakeupMoves is the smallest moves count that still visits two channels.
const MinWakeupMoves = 2

// WakeupSettings configures the wakeup sequence.
type WakeupSettings struct {
	MovesCount int           `json:"moves_count"`
	MoveDelay  time.Duration `json:"move_delay"`
}

// Notifications holds alert toggles.
type Notifications struct {
	DMAlerts           bool `json:"dm_alerts"`
	AdminRoleAlert     bool `json:"admin_role_alert"`
	ProtectedRoleAlert bool `json:"protected_role_alert"`
}

// LogEntry is one audit trail record. Newest entries come first.
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
	ID        string            `json:"id"`
	Type      string            `json:"type"`
}

// PrivateVoiceSpace is an access-restricted voice channel.
type PrivateVoiceSpace struct {
	CreatedAt      time.Time       `json:"created_at"`
	AllowedMembers map[string]bool `json:"allowed_members"`
	PresentMembers map[string]bool `json:"present_members"`
	CreatedBy      string          `json:"created_by"`
}

// Admits reports whether userID may join the space.
func (p PrivateVoiceSpace) Admits(userID string) bool {
	return p.AllowedMembers[userID] || p.PresentMembers[userID]
}

// ChainLink binds a follower to the protected account.
type ChainLink struct {
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	MasterID  string     `json:"master_id"`
	Active    bool       `json:"active"`
}

// RoleSnapshot captures a role's attributes at the time it was stripped.
type RoleSnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Permissions int64  `json:"permissions"`
	Position    int    `json:"position"`
	Hoist       bool   `json:"hoist"`
	Mentionable bool   `json:"mentionable"`
}

// RemovedUserSnapshot records a bulk role strip so it can be undone.
type RemovedUserSnapshot struct {
	RemovedAt    time.Time      `json:"removed_at"`
	Nickname     string         `json:"nickname"`
	RemovedBy    string         `json:"removed_by"`
	Roles        []RoleSnapshot `json:"roles"`
	RemovedRoles []string       `json:"removed_roles"`
	FailedRoles  []string       `json:"failed_roles"`
}

// GuildState is the complete protection state for one guild.
type GuildState struct {
	Modules          map[string]bool                `json:"modules"`
	PrivateVoice     map[string]PrivateVoiceSpace   `json:"private_voice"`
	ChainLinks       map[string]ChainLink           `json:"chain_links"`
	AttemptCounters  map[string]int                 `json:"attempt_counters"`
	RemovedUsers     map[string]RemovedUserSnapshot `json:"removed_users"`
	BaselineNickname *string                        `json:"baseline_nickname,omitempty"`
	ProtectedRoles   []string                       `json:"protected_roles"`
	LockedChannels   []LockedChannel                `json:"locked_channels"`
	Logs             []LogEntry                     `json:"logs"`
	Wakeup           WakeupSettings                 `json:"wakeup"`
	AntiMove         AntiMoveSettings               `json:"anti_move"`
	Notifications    Notifications                  `json:"notifications"`
}

// Enabled reports whether a module is switched on. The empty module is always on.
func (g GuildState) Enabled(module string) bool {
	return module == "" || g.Modules[module]
}

// IsProtectedRole reports whether roleID is in the protected set.
func (g GuildState) IsProtectedRole(roleID string) bool {
	return slices.Contains(g.ProtectedRoles, roleID)
}

// LockedChannel returns the lock entry for a channel.
func (g GuildState) LockedChannel(channelID string) (LockedChannel, bool) {
	for _, lc := range g.LockedChannels {
		if lc.ChannelID == channelID {
			return lc, true
		}
	}
	return LockedChannel{}, false
}

// ActiveFollowers returns follower ids with an active chain link, sorted.
func (g GuildState) ActiveFollowers() []string {
	var ids []string
	for id, link := range g.ChainLinks {
		if link.Active {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Clone returns a deep copy.
func (g GuildState) Clone() GuildState {
	c := g
	c.Modules = maps.Clone(g.Modules)
	c.AttemptCounters = maps.Clone(g.AttemptCounters)
	c.ProtectedRoles = slices.Clone(g.ProtectedRoles)
	c.LockedChannels = slices.Clone(g.LockedChannels)

	if g.BaselineNickname != nil {
		nick := *g.BaselineNickname
		c.BaselineNickname = &nick
	}

	if g.Logs != nil {
		c.Logs = make([]LogEntry, len(g.Logs))
		for i, e := range g.Logs {
			e.Details = maps.Clone(e.Details)
			c.Logs[i] = e
		}
	}

	if g.PrivateVoice != nil {
		c.PrivateVoice = make(map[string]PrivateVoiceSpace, len(g.PrivateVoice))
		for id, p := range g.PrivateVoice {
			p.AllowedMembers = maps.Clone(p.AllowedMembers)
			p.PresentMembers = maps.Clone(p.PresentMembers)
			c.PrivateVoice[id] = p
		}
	}

	if g.ChainLinks != nil {
		c.ChainLinks = make(map[string]ChainLink, len(g.ChainLinks))
		for id, l := range g.ChainLinks {
			if l.EndedAt != nil {
				ended := *l.EndedAt
				l.EndedAt = &ended
			}
			c.ChainLinks[id] = l
		}
	}

	if g.RemovedUsers != nil {
		c.RemovedUsers = make(map[string]RemovedUserSnapshot, len(g.RemovedUsers))
		for id, s := range g.RemovedUsers {
			s.Roles = slices.Clone(s.Roles)
			s.RemovedRoles = slices.Clone(s.RemovedRoles)
			s.FailedRoles = slices.Clone(s.FailedRoles)
			c.RemovedUsers[id] = s
		}
	}

	return c
}

// normalize allocates nil maps so callers can write into them.
func (g *GuildState) normalize() {
	if g.Modules == nil {
		g.Modules = make(map[string]bool)
	}
	if g.PrivateVoice == nil {
		g.PrivateVoice = make(map[string]PrivateVoiceSpace)
	}
	if g.ChainLinks == nil {
		g.ChainLinks = make(map[string]ChainLink)
	}
	if g.AttemptCounters == nil {
		g.AttemptCounters = make(map[string]int)
	}
	if g.RemovedUsers == nil {
		g.RemovedUsers = make(map[string]RemovedUserSnapshot)
	}
}

// Store persists guild state.
type Store interface {
	Load(ctx context.Context, guildID string) (GuildState, bool, error)
	Save(ctx context.Context, guildID string, gs GuildState) error
	Close() error
}
