package protect

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

var (
	// ErrProtectedTarget is returned when an operation targets the protected account.
	ErrProtectedTarget = errors.New("target is the protected account")
	// ErrAlreadyStripped is returned when a member already has a strip snapshot.
	ErrAlreadyStripped = errors.New("member already stripped")
	// ErrNoSnapshot is returned when restoring a member with no strip snapshot.
	ErrNoSnapshot = errors.New("no strip snapshot for member")
)

// StripResult lists the role ids an operation succeeded and failed on.
type StripResult struct {
	Removed []string
	Failed  []string
}

// Stripper removes every role from a member and can later restore them.
type Stripper struct {
	guard
}

// NewStripper creates a Stripper.
func NewStripper(d Deps) *Stripper {
	return &Stripper{guard: newGuard(d)}
}

// Strip snapshots and removes all roles of userID. The snapshot is stored
// before any role is removed; a member can hold only one.
func (s *Stripper) Strip(ctx context.Context, guildID, userID, by string) (StripResult, error) {
	if s.isProtected(userID) {
		return StripResult{}, ErrProtectedTarget
	}
	if _, ok := s.State.Snapshot(ctx, guildID).RemovedUsers[userID]; ok {
		return StripResult{}, ErrAlreadyStripped
	}

	member, err := s.Platform.Member(ctx, guildID, userID)
	if err != nil {
		return StripResult{}, fmt.Errorf("get member: %w", err)
	}

	var res StripResult
	var pending []string
	snaps := make([]state.RoleSnapshot, 0, len(member.Roles))
	for _, roleID := range member.Roles {
		// @everyone shares the guild id and can not be removed.
		if roleID == guildID {
			continue
		}
		role, err := s.Platform.Role(ctx, guildID, roleID)
		if err != nil {
			s.Logger.Warn("failed to snapshot role", "guild_id", guildID, "role_id", roleID, "error", err)
			role = platform.Role{ID: roleID}
		}
		snaps = append(snaps, state.RoleSnapshot{
			ID:          roleID,
			Name:        role.Name,
			Color:       role.Color,
			Permissions: role.Permissions,
			Position:    role.Position,
			Hoist:       role.Hoist,
			Mentionable: role.Mentionable,
		})
		if role.Managed {
			res.Failed = append(res.Failed, roleID)
			continue
		}
		pending = append(pending, roleID)
	}

	_, err = s.State.Update(ctx, guildID, func(gs *state.GuildState) error {
		if _, ok := gs.RemovedUsers[userID]; ok {
			return ErrAlreadyStripped
		}
		gs.RemovedUsers[userID] = state.RemovedUserSnapshot{
			RemovedAt:    s.State.Now(),
			Nickname:     member.Nick,
			RemovedBy:    by,
			Roles:        snaps,
			RemovedRoles: slices.Clone(pending),
			FailedRoles:  slices.Clone(res.Failed),
		}
		return nil
	})
	if err != nil {
		return StripResult{}, err
	}

	reason := s.reason("strip roles")
	for _, roleID := range pending {
		if err := s.Platform.RemoveRole(ctx, guildID, userID, roleID, reason); err != nil {
			s.Logger.Warn("failed to remove role", "guild_id", guildID, "user_id", userID, "role_id", roleID, "error", err)
			res.Failed = append(res.Failed, roleID)
			continue
		}
		res.Removed = append(res.Removed, roleID)
	}

	_, err = s.State.Update(ctx, guildID, func(gs *state.GuildState) error {
		if snap, ok := gs.RemovedUsers[userID]; ok {
			snap.RemovedRoles = slices.Clone(res.Removed)
			snap.FailedRoles = slices.Clone(res.Failed)
			gs.RemovedUsers[userID] = snap
		}
		gs.AddLog(state.LogStrip, map[string]string{
			"user_id":    userID,
			"by":         by,
			"removed":    strconv.Itoa(len(res.Removed)),
			"failed":     strconv.Itoa(len(res.Failed)),
			"prior_nick": member.Nick,
		}, s.State.Now())
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("record strip result: %w", err)
	}

	s.Logger.Info("stripped member roles",
		"guild_id", guildID,
		"user_id", userID,
		"by", by,
		"removed", len(res.Removed),
		"failed", len(res.Failed))
	return res, nil
}

// Restore re-adds the snapshot roles of userID and its nickname, then drops
// the snapshot. Roles that no longer exist are reported as failed.
func (s *Stripper) Restore(ctx context.Context, guildID, userID, by string) (StripResult, error) {
	gs := s.State.Snapshot(ctx, guildID)
	snap, ok := gs.RemovedUsers[userID]
	if !ok {
		return StripResult{}, ErrNoSnapshot
	}

	var res StripResult
	reason := s.reason("restore stripped roles")
	for _, roleID := range snap.RemovedRoles {
		if err := s.Platform.AddRole(ctx, guildID, userID, roleID, reason); err != nil {
			s.Logger.Warn("failed to restore role", "guild_id", guildID, "user_id", userID, "role_id", roleID, "error", err)
			res.Failed = append(res.Failed, roleID)
			continue
		}
		res.Removed = append(res.Removed, roleID)
	}

	if snap.Nickname != "" {
		if err := s.Platform.SetNickname(ctx, guildID, userID, snap.Nickname, reason); err != nil {
			s.Logger.Warn("failed to restore nickname", "guild_id", guildID, "user_id", userID, "error", err)
		}
	}

	_, err := s.State.Update(ctx, guildID, func(gs *state.GuildState) error {
		delete(gs.RemovedUsers, userID)
		gs.AddLog(state.LogRestore, map[string]string{
			"user_id":  userID,
			"by":       by,
			"restored": strconv.Itoa(len(res.Removed)),
			"failed":   strconv.Itoa(len(res.Failed)),
		}, s.State.Now())
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("drop strip snapshot: %w", err)
	}

	s.Logger.Info("restored member roles",
		"guild_id", guildID,
		"user_id", userID,
		"by", by,
		"restored", len(res.Removed),
		"failed", len(res.Failed))
	return res, nil
}
