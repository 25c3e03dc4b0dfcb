package protect

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/codeGROOVE-dev/warden/internal/audit"
	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// ErrUnknownRole is returned when a deleted protected role has no cached snapshot.
var ErrUnknownRole = errors.New("deleted role has no snapshot")

// RolePermissionGuard restores the permission set of protected roles.
type RolePermissionGuard struct {
	guard
}

// NewRolePermissionGuard creates a RolePermissionGuard.
func NewRolePermissionGuard(d Deps) *RolePermissionGuard {
	return &RolePermissionGuard{guard: newGuard(d)}
}

func (*RolePermissionGuard) Name() string        { return "role_permission_guard" }
func (*RolePermissionGuard) Kind() platform.Kind { return platform.KindRoleUpdate }
func (*RolePermissionGuard) Module() string      { return state.ModuleAntiPermissions }

// Handle reverts a permission change on a protected role.
func (h *RolePermissionGuard) Handle(ctx context.Context, gs state.GuildState, n platform.Notification) error {
	rt, ok := n.(platform.RoleTransition)
	if !ok || !gs.IsProtectedRole(rt.After.ID) {
		return nil
	}

	observed := strconv.FormatInt(rt.After.Permissions, 10)
	k := h.key(state.ModuleAntiPermissions, rt.GuildID, rt.After.ID, "")
	if h.echo(k, observed) {
		return nil
	}
	if !rt.HasBefore || rt.Before.Permissions == rt.After.Permissions {
		return nil
	}

	want := rt.Before.Permissions
	err := h.correct(ctx, k, strconv.FormatInt(want, 10), "restore role permissions", func(reason string) error {
		return h.Platform.SetRolePermissions(ctx, rt.GuildID, rt.After.ID, want, reason)
	})
	if err != nil {
		return err
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:   rt.GuildID,
		TargetID:  rt.After.ID,
		ChangeKey: audit.ChangePerms,
		Action:    platform.AuditRoleUpdate,
	})

	h.Logger.Info("restored role permissions",
		"guild_id", rt.GuildID,
		"role_id", rt.After.ID,
		"from", rt.After.Permissions,
		"to", want,
		"actor_id", actor.ID)

	h.record(ctx, rt.GuildID, state.ModuleAntiPermissions, map[string]string{
		"action":   "permissions_restored",
		"role_id":  rt.After.ID,
		"from":     observed,
		"to":       strconv.FormatInt(want, 10),
		"actor_id": actor.ID,
	})
	h.alert(ctx, rt.GuildID, format.Alert{
		Title:       "Role permissions restored",
		Description: "Permissions on a protected role were changed and have been restored.",
		Emoji:       format.EmojiShield,
		Severity:    format.SeverityCorrection,
		Fields: []format.Field{
			{Name: "Role", Value: format.Role(rt.After.ID), Inline: true},
			{Name: "By", Value: format.User(actor.ID), Inline: true},
		},
	})
	return nil
}

// AdminRoleWatch alerts when any role gains Administrator. It never reverts.
type AdminRoleWatch struct {
	guard
}

// NewAdminRoleWatch creates an AdminRoleWatch.
func NewAdminRoleWatch(d Deps) *AdminRoleWatch {
	return &AdminRoleWatch{guard: newGuard(d)}
}

func (*AdminRoleWatch) Name() string        { return "admin_role_watch" }
func (*AdminRoleWatch) Kind() platform.Kind { return platform.KindRoleUpdate }
func (*AdminRoleWatch) Module() string      { return "" }

// Handle raises a critical alert on a role gaining Administrator.
func (h *AdminRoleWatch) Handle(ctx context.Context, gs state.GuildState, n platform.Notification) error {
	rt, ok := n.(platform.RoleTransition)
	if !ok || !gs.Notifications.AdminRoleAlert || !rt.HasBefore {
		return nil
	}
	if rt.Before.Admin() || !rt.After.Admin() {
		return nil
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:   rt.GuildID,
		TargetID:  rt.After.ID,
		ChangeKey: audit.ChangePerms,
		Action:    platform.AuditRoleUpdate,
	})

	h.Logger.Warn("role gained administrator",
		"guild_id", rt.GuildID,
		"role_id", rt.After.ID,
		"actor_id", actor.ID)

	h.State.AppendLog(ctx, rt.GuildID, state.LogRole, map[string]string{
		"action":   "admin_granted",
		"role_id":  rt.After.ID,
		"actor_id": actor.ID,
	})
	h.alert(ctx, rt.GuildID, format.Alert{
		Title:       "Administrator granted to role",
		Description: fmt.Sprintf("Role %s now has Administrator.", format.Truncate(rt.After.Name, 100)),
		Emoji:       format.EmojiAlarm,
		Severity:    format.SeverityCritical,
		Fields: []format.Field{
			{Name: "Role", Value: format.Role(rt.After.ID), Inline: true},
			{Name: "By", Value: format.User(actor.ID), Inline: true},
		},
	})
	return nil
}

// RoleDeletionGuard recreates deleted protected roles from their snapshot,
// swaps the new id into the protected set and re-grants it.
type RoleDeletionGuard struct {
	guard
}

// NewRoleDeletionGuard creates a RoleDeletionGuard.
func NewRoleDeletionGuard(d Deps) *RoleDeletionGuard {
	return &RoleDeletionGuard{guard: newGuard(d)}
}

func (*RoleDeletionGuard) Name() string        { return "role_deletion_guard" }
func (*RoleDeletionGuard) Kind() platform.Kind { return platform.KindRoleDelete }
func (*RoleDeletionGuard) Module() string      { return state.ModuleAntiPermissions }

// Handle recreates a deleted protected role.
func (h *RoleDeletionGuard) Handle(ctx context.Context, gs state.GuildState, n platform.Notification) error {
	rd, ok := n.(platform.RoleDeletion)
	if !ok || !gs.IsProtectedRole(rd.Role.ID) {
		return nil
	}

	actor := h.Audit.Resolve(ctx, audit.Query{
		GuildID:  rd.GuildID,
		TargetID: rd.Role.ID,
		Action:   platform.AuditRoleDelete,
	})

	if !rd.Known {
		h.alert(ctx, rd.GuildID, format.Alert{
			Title:       "Protected role deleted",
			Description: "A protected role was deleted and could not be recreated because its settings were unknown.",
			Emoji:       format.EmojiWarning,
			Severity:    format.SeverityCritical,
			Fields: []format.Field{
				{Name: "Role ID", Value: rd.Role.ID, Inline: true},
				{Name: "By", Value: format.User(actor.ID), Inline: true},
			},
		})
		return fmt.Errorf("recreate role %s: %w", rd.Role.ID, ErrUnknownRole)
	}

	newID, err := h.Platform.CreateRole(ctx, rd.GuildID, rd.Role, h.reason("recreate deleted protected role"))
	correctionsTotal.WithLabelValues(state.ModuleAntiPermissions, outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("recreate role %s: %w", rd.Role.ID, err)
	}

	if err := h.State.ReplaceProtectedRole(ctx, rd.GuildID, rd.Role.ID, newID); err != nil {
		return fmt.Errorf("replace protected role: %w", err)
	}

	var grantErr error
	if h.ProtectedID != "" {
		k := h.key(state.ModuleAntiRole, rd.GuildID, h.ProtectedID, newID)
		grantErr = h.correct(ctx, k, roleObservedPresent, "grant recreated role", func(reason string) error {
			return h.Platform.AddRole(ctx, rd.GuildID, h.ProtectedID, newID, reason)
		})
	}

	h.Logger.Info("recreated deleted protected role",
		"guild_id", rd.GuildID,
		"old_role_id", rd.Role.ID,
		"new_role_id", newID,
		"name", rd.Role.Name,
		"actor_id", actor.ID)

	h.record(ctx, rd.GuildID, state.ModuleAntiPermissions, map[string]string{
		"action":      "role_recreated",
		"old_role_id": rd.Role.ID,
		"new_role_id": newID,
		"name":        rd.Role.Name,
		"actor_id":    actor.ID,
	})
	h.alert(ctx, rd.GuildID, format.Alert{
		Title:       "Protected role recreated",
		Description: fmt.Sprintf("Role %s was deleted and has been recreated.", format.Truncate(rd.Role.Name, 100)),
		Emoji:       format.EmojiShield,
		Severity:    format.SeverityWarning,
		Fields: []format.Field{
			{Name: "New role", Value: format.Role(newID), Inline: true},
			{Name: "By", Value: format.User(actor.ID), Inline: true},
		},
	})
	return grantErr
}
