package protect

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeGROOVE-dev/warden/internal/audit"
	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// RemovalGuard lifts bans on the protected account and delivers a fresh
// invite after a kick or ban.
type RemovalGuard struct {
	guard
}

// NewRemovalGuard creates a RemovalGuard.
func NewRemovalGuard(d Deps) *RemovalGuard {
	return &RemovalGuard{guard: newGuard(d)}
}

func (*RemovalGuard) Name() string        { return "removal_guard" }
func (*RemovalGuard) Kind() platform.Kind { return platform.KindMemberRemove }
func (*RemovalGuard) Module() string      { return state.ModuleAntiKickBan }

// Handle unbans if needed and sends an invite back.
func (h *RemovalGuard) Handle(ctx context.Context, _ state.GuildState, n platform.Notification) error {
	mr, ok := n.(platform.MemberRemoval)
	if !ok || !h.isProtected(mr.UserID) {
		return nil
	}

	banned, err := h.Platform.IsBanned(ctx, mr.GuildID, mr.UserID)
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		h.Logger.Warn("failed to check ban status, attempting unban anyway",
			"guild_id", mr.GuildID,
			"error", err)
		banned = true
	}

	action := platform.AuditMemberKick
	var unbanErr error
	if banned {
		action = platform.AuditBanAdd
		err := h.Platform.Unban(ctx, mr.GuildID, mr.UserID, h.reason("lift ban on protected account"))
		correctionsTotal.WithLabelValues(state.ModuleAntiKickBan, outcome(err)).Inc()
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			h.Logger.Warn("failed to lift ban, creating invite anyway",
				"guild_id", mr.GuildID,
				"error", err)
			unbanErr = fmt.Errorf("unban: %w", err)
		}
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:  mr.GuildID,
		TargetID: mr.UserID,
		Action:   action,
	})
	if !banned && !actor.Known() {
		// A voluntary leave leaves no kick entry.
		h.Logger.Info("protected account left without attributed kick",
			"guild_id", mr.GuildID)
	}

	invite, err := h.Platform.CreateInvite(ctx, mr.GuildID, h.reason("invite protected account back"))
	if err != nil {
		desc := "You were removed from the server and no invite could be created."
		if unbanErr != nil {
			desc = "You were banned, the ban could not be removed and no invite could be created."
		}
		h.alert(ctx, mr.GuildID, format.Alert{
			Title:       "Removed from server",
			Description: desc,
			Emoji:       format.EmojiWarning,
			Severity:    format.SeverityCritical,
			Fields: []format.Field{
				{Name: "By", Value: format.User(actor.ID), Inline: true},
			},
		})
		return errors.Join(unbanErr, fmt.Errorf("create invite: %w", err))
	}

	kind := "kick"
	if banned {
		kind = "ban"
	}
	h.Logger.Info("recovered from removal",
		"guild_id", mr.GuildID,
		"removal", kind,
		"invite", invite,
		"actor_id", actor.ID)

	h.record(ctx, mr.GuildID, state.ModuleAntiKickBan, map[string]string{
		"action":   kind + "_recovered",
		"invite":   invite,
		"actor_id": actor.ID,
	})
	a := format.Alert{
		Title:       "Removed from server",
		Description: "You were removed from the server. Use the invite below to rejoin.",
		Emoji:       format.EmojiEnvelope,
		Severity:    format.SeverityWarning,
		Fields: []format.Field{
			{Name: "Removal", Value: kind, Inline: true},
			{Name: "By", Value: format.User(actor.ID), Inline: true},
			{Name: "Invite", Value: invite},
		},
	}
	if unbanErr != nil {
		a.Description = "You were banned and the ban could not be removed. The invite below works once it is lifted."
		a.Severity = format.SeverityCritical
		a.Emoji = format.EmojiWarning
	}
	h.alert(ctx, mr.GuildID, a)
	return unbanErr
}

// RejoinRestorer re-grants protected roles and the baseline nickname when
// the protected account joins a guild.
type RejoinRestorer struct {
	guard
}

// NewRejoinRestorer creates a RejoinRestorer.
func NewRejoinRestorer(d Deps) *RejoinRestorer {
	return &RejoinRestorer{guard: newGuard(d)}
}

func (*RejoinRestorer) Name() string        { return "rejoin_restorer" }
func (*RejoinRestorer) Kind() platform.Kind { return platform.KindMemberJoin }
func (*RejoinRestorer) Module() string      { return "" }

// Handle restores roles and nickname after a rejoin.
func (h *RejoinRestorer) Handle(ctx context.Context, gs state.GuildState, n platform.Notification) error {
	mj, ok := n.(platform.MemberJoin)
	if !ok || !h.isProtected(mj.UserID) {
		return nil
	}

	var errs []error
	var restored []string
	for _, roleID := range gs.ProtectedRoles {
		k := h.key(state.ModuleAntiRole, mj.GuildID, mj.UserID, roleID)
		err := h.correct(ctx, k, roleObservedPresent, "restore protected role after rejoin", func(reason string) error {
			return h.Platform.AddRole(ctx, mj.GuildID, mj.UserID, roleID, reason)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		restored = append(restored, format.Role(roleID))
	}

	if gs.BaselineNickname != nil && *gs.BaselineNickname != "" {
		nick := *gs.BaselineNickname
		k := h.key(state.ModuleAntiRename, mj.GuildID, mj.UserID, "")
		err := h.correct(ctx, k, nick, "restore nickname after rejoin", func(reason string) error {
			return h.Platform.SetNickname(ctx, mj.GuildID, mj.UserID, nick, reason)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(restored) > 0 {
		h.Logger.Info("restored protected roles after rejoin",
			"guild_id", mj.GuildID,
			"roles", len(restored))
		h.State.AppendLog(ctx, mj.GuildID, state.LogRestore, map[string]string{
			"action": "rejoin_restored",
			"roles":  fmt.Sprint(len(restored)),
		})
		h.alert(ctx, mj.GuildID, format.Alert{
			Title:       "Welcome back",
			Description: "Your protected roles have been restored.",
			Emoji:       format.EmojiShield,
			Severity:    format.SeverityInfo,
			Fields: []format.Field{
				{Name: "Roles", Value: format.List(restored, 10)},
			},
		})
	}
	return errors.Join(errs...)
}
