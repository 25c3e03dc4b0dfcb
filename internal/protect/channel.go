package protect

import (
	"context"

	"github.com/codeGROOVE-dev/warden/internal/audit"
	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// ChannelNameGuard restores the recorded name of locked channels.
type ChannelNameGuard struct {
	guard
}

// NewChannelNameGuard creates a ChannelNameGuard.
func NewChannelNameGuard(d Deps) *ChannelNameGuard {
	return &ChannelNameGuard{guard: newGuard(d)}
}

func (*ChannelNameGuard) Name() string        { return "channel_name_guard" }
func (*ChannelNameGuard) Kind() platform.Kind { return platform.KindChannelUpdate }
func (*ChannelNameGuard) Module() string      { return state.ModuleLockName }

// Handle renames a locked channel back to its recorded name.
func (h *ChannelNameGuard) Handle(ctx context.Context, gs state.GuildState, n platform.Notification) error {
	ct, ok := n.(platform.ChannelTransition)
	if !ok {
		return nil
	}
	lock, ok := gs.LockedChannel(ct.ChannelID)
	if !ok {
		return nil
	}

	k := h.key(state.ModuleLockName, ct.GuildID, ct.ChannelID, "")
	if h.echo(k, ct.AfterName) || ct.AfterName == lock.OriginalName {
		return nil
	}

	err := h.correct(ctx, k, lock.OriginalName, "restore locked channel name", func(reason string) error {
		return h.Platform.RenameChannel(ctx, ct.ChannelID, lock.OriginalName, reason)
	})
	if err != nil {
		return err
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:   ct.GuildID,
		TargetID:  ct.ChannelID,
		ChangeKey: audit.ChangeName,
		Action:    platform.AuditChannelUpdate,
	})

	h.Logger.Info("restored locked channel name",
		"guild_id", ct.GuildID,
		"channel_id", ct.ChannelID,
		"from", ct.AfterName,
		"to", lock.OriginalName,
		"actor_id", actor.ID)

	h.record(ctx, ct.GuildID, state.ModuleLockName, map[string]string{
		"action":     "channel_name_restored",
		"channel_id": ct.ChannelID,
		"from":       ct.AfterName,
		"to":         lock.OriginalName,
		"actor_id":   actor.ID,
	})
	h.alert(ctx, ct.GuildID, format.Alert{
		Title:       "Channel name restored",
		Description: "A locked channel was renamed and has been restored.",
		Emoji:       format.EmojiLock,
		Severity:    format.SeverityCorrection,
		Fields: []format.Field{
			{Name: "Channel", Value: format.Channel(ct.ChannelID), Inline: true},
			{Name: "Renamed to", Value: format.Truncate(ct.AfterName, 100), Inline: true},
			{Name: "By", Value: format.User(actor.ID), Inline: true},
		},
	})
	return nil
}
