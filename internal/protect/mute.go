package protect

import (
	"context"
	"errors"
	"strconv"

	"github.com/codeGROOVE-dev/warden/internal/audit"
	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// MuteGuard clears server mute and server deafen on the protected account.
// Mute and deafen are tracked under separate markers.
type MuteGuard struct {
	guard
}

// NewMuteGuard creates a MuteGuard.
func NewMuteGuard(d Deps) *MuteGuard {
	return &MuteGuard{guard: newGuard(d)}
}

func (*MuteGuard) Name() string        { return "mute_guard" }
func (*MuteGuard) Kind() platform.Kind { return platform.KindVoice }
func (*MuteGuard) Module() string      { return state.ModuleAntiMute }

type voiceFlagSetter func(ctx context.Context, guildID, userID string, value bool, reason string) error

// Handle reverts a false to true transition of either flag.
func (h *MuteGuard) Handle(ctx context.Context, _ state.GuildState, n platform.Notification) error {
	vt, ok := n.(platform.VoiceTransition)
	if !ok || !h.isProtected(vt.UserID) {
		return nil
	}

	return errors.Join(
		h.flag(ctx, vt, audit.ChangeMute, "muted", vt.Before.Mute, vt.After.Mute, h.Platform.SetMute),
		h.flag(ctx, vt, audit.ChangeDeaf, "deafened", vt.Before.Deaf, vt.After.Deaf, h.Platform.SetDeaf),
	)
}

func (h *MuteGuard) flag(
	ctx context.Context,
	vt platform.VoiceTransition,
	name, label string,
	before, after bool,
	set voiceFlagSetter,
) error {
	k := h.key(state.ModuleAntiMute, vt.GuildID, vt.UserID, name)
	if h.echo(k, strconv.FormatBool(after)) {
		return nil
	}
	if !after || (vt.HasBefore && before) {
		return nil
	}
	// Voice flags can only be changed while connected.
	if vt.After.ChannelID == "" {
		return nil
	}

	err := h.correct(ctx, k, "false", "clear server "+name, func(reason string) error {
		return set(ctx, vt.GuildID, vt.UserID, false, reason)
	})
	if err != nil {
		return err
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:   vt.GuildID,
		TargetID:  vt.UserID,
		ChangeKey: name,
		Action:    platform.AuditMemberUpdate,
	})

	h.Logger.Info("cleared server voice flag",
		"guild_id", vt.GuildID,
		"flag", name,
		"channel_id", vt.After.ChannelID,
		"actor_id", actor.ID)

	h.record(ctx, vt.GuildID, state.ModuleAntiMute, map[string]string{
		"action":     "cleared_" + name,
		"channel_id": vt.After.ChannelID,
		"actor_id":   actor.ID,
	})
	h.alert(ctx, vt.GuildID, format.Alert{
		Title:       "Server " + name + " cleared",
		Description: "You were server " + label + " and the change was reverted.",
		Emoji:       format.EmojiShield,
		Severity:    format.SeverityCorrection,
		Fields: []format.Field{
			{Name: "By", Value: format.User(actor.ID), Inline: true},
			{Name: "Channel", Value: format.Channel(vt.After.ChannelID), Inline: true},
		},
	})
	return nil
}
