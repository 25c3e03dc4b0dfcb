package protect

import (
	"context"
	"errors"

	"github.com/codeGROOVE-dev/warden/internal/audit"
	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

const (
	roleObservedPresent = "present"
	roleObservedAbsent  = "absent"
	timeoutObservedSet  = "set"
	timeoutObservedNone = "none"
)

// TimeoutGuard clears timeouts applied to the protected account.
type TimeoutGuard struct {
	guard
}

// NewTimeoutGuard creates a TimeoutGuard.
func NewTimeoutGuard(d Deps) *TimeoutGuard {
	return &TimeoutGuard{guard: newGuard(d)}
}

func (*TimeoutGuard) Name() string        { return "timeout_guard" }
func (*TimeoutGuard) Kind() platform.Kind { return platform.KindMember }
func (*TimeoutGuard) Module() string      { return state.ModuleAntiTimeout }

// Handle reverts a none to set timeout transition.
func (h *TimeoutGuard) Handle(ctx context.Context, _ state.GuildState, n platform.Notification) error {
	mt, ok := n.(platform.MemberTransition)
	if !ok || !h.isProtected(mt.UserID) {
		return nil
	}

	now := h.State.Now()
	observed := timeoutObservedNone
	if mt.After.TimedOut(now) {
		observed = timeoutObservedSet
	}

	k := h.key(state.ModuleAntiTimeout, mt.GuildID, mt.UserID, "")
	if h.echo(k, observed) {
		return nil
	}
	if observed != timeoutObservedSet || (mt.HasBefore && mt.Before.TimedOut(now)) {
		return nil
	}

	err := h.correct(ctx, k, timeoutObservedNone, "clear timeout", func(reason string) error {
		return h.Platform.Timeout(ctx, mt.GuildID, mt.UserID, nil, reason)
	})
	if err != nil {
		return err
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:   mt.GuildID,
		TargetID:  mt.UserID,
		ChangeKey: audit.ChangeTimeout,
		Action:    platform.AuditMemberUpdate,
	})

	h.Logger.Info("cleared timeout",
		"guild_id", mt.GuildID,
		"until", mt.After.TimeoutUntil,
		"actor_id", actor.ID)

	h.record(ctx, mt.GuildID, state.ModuleAntiTimeout, map[string]string{
		"action":   "timeout_cleared",
		"until":    mt.After.TimeoutUntil.String(),
		"actor_id": actor.ID,
	})
	h.alert(ctx, mt.GuildID, format.Alert{
		Title:       "Timeout cleared",
		Description: "You were timed out and the timeout was removed.",
		Emoji:       format.EmojiShield,
		Severity:    format.SeverityCorrection,
		Fields: []format.Field{
			{Name: "By", Value: format.User(actor.ID), Inline: true},
		},
	})
	return nil
}

// RoleGuard re-grants protected roles removed from the protected account.
type RoleGuard struct {
	guard
}

// NewRoleGuard creates a RoleGuard.
func NewRoleGuard(d Deps) *RoleGuard {
	return &RoleGuard{guard: newGuard(d)}
}

func (*RoleGuard) Name() string        { return "role_guard" }
func (*RoleGuard) Kind() platform.Kind { return platform.KindMember }
func (*RoleGuard) Module() string      { return state.ModuleAntiRole }

// Handle re-adds each protected role missing from the member. Without a
// before-state every absent protected role is treated as removed.
func (h *RoleGuard) Handle(ctx context.Context, gs state.GuildState, n platform.Notification) error {
	mt, ok := n.(platform.MemberTransition)
	if !ok || !h.isProtected(mt.UserID) {
		return nil
	}

	var errs []error
	var restored []string
	for _, roleID := range gs.ProtectedRoles {
		observed := roleObservedAbsent
		if mt.After.HasRole(roleID) {
			observed = roleObservedPresent
		}

		k := h.key(state.ModuleAntiRole, mt.GuildID, mt.UserID, roleID)
		if h.echo(k, observed) || observed == roleObservedPresent {
			continue
		}
		if mt.HasBefore && !mt.Before.HasRole(roleID) {
			continue
		}

		err := h.correct(ctx, k, roleObservedPresent, "restore protected role", func(reason string) error {
			return h.Platform.AddRole(ctx, mt.GuildID, mt.UserID, roleID, reason)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		restored = append(restored, roleID)
	}

	if len(restored) == 0 {
		return errors.Join(errs...)
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:   mt.GuildID,
		TargetID:  mt.UserID,
		ChangeKey: audit.ChangeRoleRem,
		Action:    platform.AuditMemberRoleUpdate,
	})

	h.Logger.Info("restored protected roles",
		"guild_id", mt.GuildID,
		"roles", restored,
		"actor_id", actor.ID)

	mentions := make([]string, 0, len(restored))
	for _, id := range restored {
		h.record(ctx, mt.GuildID, state.ModuleAntiRole, map[string]string{
			"action":   "role_restored",
			"role_id":  id,
			"actor_id": actor.ID,
		})
		mentions = append(mentions, format.Role(id))
	}

	if gs.Notifications.ProtectedRoleAlert {
		h.alert(ctx, mt.GuildID, format.Alert{
			Title:       "Protected role restored",
			Description: "A protected role was removed from you and has been re-granted.",
			Emoji:       format.EmojiShield,
			Severity:    format.SeverityCorrection,
			Fields: []format.Field{
				{Name: "Roles", Value: format.List(mentions, 10)},
				{Name: "By", Value: format.User(actor.ID), Inline: true},
			},
		})
	}
	return errors.Join(errs...)
}

// NicknameGuard reverts nickname changes on the protected account to a
// baseline captured on the first unauthorized change.
type NicknameGuard struct {
	guard
}

// NewNicknameGuard creates a NicknameGuard.
func NewNicknameGuard(d Deps) *NicknameGuard {
	return &NicknameGuard{guard: newGuard(d)}
}

func (*NicknameGuard) Name() string        { return "nickname_guard" }
func (*NicknameGuard) Kind() platform.Kind { return platform.KindMember }
func (*NicknameGuard) Module() string      { return state.ModuleAntiRename }

// Handle reverts a nickname change. Changes made by the protected account
// itself move the baseline instead.
func (h *NicknameGuard) Handle(ctx context.Context, gs state.GuildState, n platform.Notification) error {
	mt, ok := n.(platform.MemberTransition)
	if !ok || !h.isProtected(mt.UserID) || !mt.HasBefore || mt.Before.Nick == mt.After.Nick {
		return nil
	}

	k := h.key(state.ModuleAntiRename, mt.GuildID, mt.UserID, "")
	if h.echo(k, mt.After.Nick) {
		return nil
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:   mt.GuildID,
		TargetID:  mt.UserID,
		ChangeKey: audit.ChangeNick,
		Action:    platform.AuditMemberUpdate,
	})
	if actor.ID == h.ProtectedID {
		h.Logger.Info("protected account changed own nickname, moving baseline",
			"guild_id", mt.GuildID,
			"nick", mt.After.Nick)
		return h.State.SetBaselineNickname(ctx, mt.GuildID, mt.After.Nick)
	}

	var baseline string
	if gs.BaselineNickname != nil {
		baseline = *gs.BaselineNickname
	} else {
		baseline = mt.Before.Nick
		if err := h.State.SetBaselineNickname(ctx, mt.GuildID, baseline); err != nil {
			return err
		}
	}
	if mt.After.Nick == baseline {
		return nil
	}

	err := h.correct(ctx, k, baseline, "restore nickname", func(reason string) error {
		return h.Platform.SetNickname(ctx, mt.GuildID, mt.UserID, baseline, reason)
	})
	if err != nil {
		return err
	}

	h.Logger.Info("restored nickname",
		"guild_id", mt.GuildID,
		"from", mt.After.Nick,
		"to", baseline,
		"actor_id", actor.ID)

	h.record(ctx, mt.GuildID, state.ModuleAntiRename, map[string]string{
		"action":   "nickname_restored",
		"from":     mt.After.Nick,
		"to":       baseline,
		"actor_id": actor.ID,
	})
	h.alert(ctx, mt.GuildID, format.Alert{
		Title:       "Nickname restored",
		Description: "Your nickname was changed and has been restored.",
		Emoji:       format.EmojiShield,
		Severity:    format.SeverityCorrection,
		Fields: []format.Field{
			{Name: "Changed to", Value: format.Truncate(mt.After.Nick, 64), Inline: true},
			{Name: "Restored", Value: format.Truncate(baseline, 64), Inline: true},
			{Name: "By", Value: format.User(actor.ID), Inline: true},
		},
	})
	return nil
}
