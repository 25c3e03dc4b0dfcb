package protect

import (
	"context"
	"fmt"

	"github.com/codeGROOVE-dev/warden/internal/audit"
	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// MoveGuard returns the protected account to its channel after a forced
// relocation and feeds the attributed mover to the attempt controller.
type MoveGuard struct {
	guard
	attempts *Attempts
}

// NewMoveGuard creates a MoveGuard.
func NewMoveGuard(d Deps, attempts *Attempts) *MoveGuard {
	return &MoveGuard{guard: newGuard(d), attempts: attempts}
}

func (*MoveGuard) Name() string        { return "move_guard" }
func (*MoveGuard) Kind() platform.Kind { return platform.KindVoice }
func (*MoveGuard) Module() string      { return state.ModuleAntiMove }

// Handle reverts a move between two voice channels.
func (h *MoveGuard) Handle(ctx context.Context, _ state.GuildState, n platform.Notification) error {
	vt, ok := n.(platform.VoiceTransition)
	if !ok || !h.isProtected(vt.UserID) || !vt.Relocated() {
		return nil
	}

	k := h.key(state.ModuleAntiMove, vt.GuildID, vt.UserID, "")
	if h.echo(k, vt.After.ChannelID) {
		return nil
	}

	from, to := vt.Before.ChannelID, vt.After.ChannelID
	err := h.correct(ctx, k, from, "return protected account to its channel", func(reason string) error {
		return h.Platform.Move(ctx, vt.GuildID, vt.UserID, from, reason)
	})
	if err != nil {
		return err
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:   vt.GuildID,
		ChannelID: to,
		Action:    platform.AuditMemberMove,
	})

	var res AttemptResult
	if h.attempts != nil {
		res, err = h.attempts.Record(ctx, vt.GuildID, actor.ID)
		if err != nil {
			h.Logger.Warn("failed to record relocation attempt",
				"guild_id", vt.GuildID,
				"actor_id", actor.ID,
				"error", err)
		}
	}

	h.Logger.Info("reverted relocation",
		"guild_id", vt.GuildID,
		"from", from,
		"to", to,
		"actor_id", actor.ID,
		"attempts", res.Count,
		"punished", res.Punished)

	h.record(ctx, vt.GuildID, state.ModuleAntiMove, map[string]string{
		"action":   "move_reverted",
		"from":     from,
		"to":       to,
		"actor_id": actor.ID,
		"attempts": fmt.Sprintf("%d/%d", res.Count, res.Threshold),
	})

	fields := []format.Field{
		{Name: "From", Value: format.Channel(from), Inline: true},
		{Name: "To", Value: format.Channel(to), Inline: true},
		{Name: "By", Value: format.User(actor.ID), Inline: true},
	}
	if res.Counted {
		fields = append(fields, format.Field{Name: "Attempts", Value: fmt.Sprintf("%d/%d", res.Count, res.Threshold), Inline: true})
	}
	h.alert(ctx, vt.GuildID, format.Alert{
		Title:       "Move reverted",
		Description: "You were moved to another voice channel and have been returned.",
		Emoji:       format.EmojiShield,
		Severity:    format.SeverityCorrection,
		Fields:      fields,
	})
	return nil
}
