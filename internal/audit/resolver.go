// Package audit attributes observed changes to the member who made them.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/warden/internal/platform"
)

const (
	defaultWindow  = 10 * time.Second
	defaultTimeout = 3 * time.Second
	fetchLimit     = 5
)

// Change keys used in queries.
const (
	ChangeMute    = "mute"
	ChangeDeaf    = "deaf"
	ChangeNick    = "nick"
	ChangeTimeout = "communication_disabled_until"
	ChangeRoleRem = "$remove"
	ChangePerms   = "permissions"
	ChangeName    = "name"
)

// Source fetches recent audit-log entries.
type Source interface {
	AuditEntries(ctx context.Context, guildID string, action, limit int) ([]platform.AuditEntry, error)
}

// Actor is the attributed author of a change. The zero value means unknown.
type Actor struct {
	At      time.Time
	ID      string
	EntryID string
}

// Known reports whether the actor was identified.
func (a Actor) Known() bool {
	return a.ID != ""
}

// Query describes the change to attribute.
type Query struct {
	GuildID   string
	TargetID  string // affected user, role or channel; empty to skip the check
	ChannelID string // destination channel for member moves
	ChangeKey string // required change key; empty to skip the check
	Action    int
}

// Resolver queries the audit log for the author of a change.
type Resolver struct {
	source  Source
	logger  *slog.Logger
	now     func() time.Time
	botID   func() string
	window  time.Duration
	timeout time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWindow sets how recent an entry must be to count.
func WithWindow(d time.Duration) Option {
	return func(r *Resolver) { r.window = d }
}

// WithTimeout bounds each audit-log fetch.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithBotID excludes entries authored by the bot itself.
func WithBotID(fn func() string) Option {
	return func(r *Resolver) { r.botID = fn }
}

// New creates a resolver.
func New(source Source, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		source:  source,
		logger:  logger,
		now:     time.Now,
		botID:   func() string { return "" },
		window:  defaultWindow,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the most recent matching actor, or an unknown Actor on any
// failure or miss. Entries written by the engine's own corrections are skipped.
func (r *Resolver) Resolve(ctx context.Context, q Query) Actor {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entries, err := r.source.AuditEntries(ctx, q.GuildID, q.Action, fetchLimit)
	if err != nil {
		r.logger.Debug("audit lookup failed",
			"guild_id", q.GuildID,
			"action", q.Action,
			"error", err)
		return Actor{}
	}

	now := r.now()
	bot := r.botID()
	var best *platform.AuditEntry
	for i := range entries {
		e := &entries[i]
		if !r.matches(e, q, now, bot) {
			continue
		}
		if best == nil || e.CreatedAt.After(best.CreatedAt) {
			best = e
		}
	}

	if best == nil {
		r.logger.Debug("no audit entry matched",
			"guild_id", q.GuildID,
			"action", q.Action,
			"target_id", q.TargetID,
			"entries", len(entries))
		return Actor{}
	}

	return Actor{ID: best.ActorID, EntryID: best.ID, At: best.CreatedAt}
}

func (r *Resolver) matches(e *platform.AuditEntry, q Query, now time.Time, bot string) bool {
	if e.ActorID == "" || platform.IsOwnReason(e.Reason) {
		return false
	}
	if bot != "" && e.ActorID == bot {
		return false
	}
	if now.Sub(e.CreatedAt) > r.window {
		return false
	}
	if q.TargetID != "" && e.TargetID != q.TargetID {
		return false
	}
	if q.ChannelID != "" && e.ChannelID != q.ChannelID {
		return false
	}
	if q.ChangeKey != "" && !e.HasChange(q.ChangeKey) {
		return false
	}
	return true
}
