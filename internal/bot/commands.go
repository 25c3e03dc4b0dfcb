package bot

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/warden/internal/discord"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/protect"
	"github.com/codeGROOVE-dev/warden/internal/state"
	"github.com/codeGROOVE-dev/warden/internal/voice"
)

var _ discord.Commander = (*Engine)(nil)

// Status summarizes protection state for a guild.
func (e *Engine) Status(ctx context.Context, guildID string) discord.Status {
	gs := e.state.Snapshot(ctx, guildID)

	locked := make([]string, 0, len(gs.LockedChannels))
	for _, lc := range gs.LockedChannels {
		locked = append(locked, lc.ChannelID)
	}

	pending := 0
	if e.alerts != nil {
		pending = e.alerts.Pending()
	}

	return discord.Status{
		Modules:        gs.Modules,
		ProtectedRoles: gs.ProtectedRoles,
		LockedChannels: locked,
		ActiveChains:   gs.ActiveFollowers(),
		PrivateSpaces:  slices.Sorted(maps.Keys(gs.PrivateVoice)),
		Uptime:         e.state.Now().Sub(e.started),
		PendingAlerts:  pending,
		AntiMove:       gs.AntiMove,
		Wakeup:         gs.Wakeup,
		Notifications:  gs.Notifications,
		Connected:      e.connected(),
	}
}

// SetModule switches a protection module on or off.
func (e *Engine) SetModule(ctx context.Context, guildID, module string, enabled bool) error {
	if err := e.state.SetModule(ctx, guildID, module, enabled); err != nil {
		return err
	}
	e.logger.Info("module toggled",
		"guild_id", guildID,
		"module", module,
		"enabled", enabled)
	return nil
}

// ProtectRole adds or removes a protected role. Protecting a role also grants
// it to the protected account.
func (e *Engine) ProtectRole(ctx context.Context, guildID, roleID string, protectIt bool) (bool, error) {
	if !protectIt {
		return e.state.UnprotectRole(ctx, guildID, roleID)
	}

	changed, err := e.state.ProtectRole(ctx, guildID, roleID)
	if err != nil || !changed {
		return changed, err
	}
	reason := platform.Reason(uuid.NewString(), "grant protected role")
	if err := e.platform.AddRole(ctx, guildID, e.protectedID, roleID, reason); err != nil {
		return true, fmt.Errorf("role protected but not granted: %w", err)
	}
	return true, nil
}

// ToggleLock locks a channel's current name, or unlocks it.
// It reports whether the channel is now locked.
func (e *Engine) ToggleLock(ctx context.Context, guildID, channelID, by string) (bool, error) {
	gs := e.state.Snapshot(ctx, guildID)
	if _, ok := gs.LockedChannel(channelID); ok {
		if err := e.state.UnlockChannel(ctx, guildID, channelID); err != nil {
			return true, err
		}
		return false, nil
	}

	name, err := e.platform.ChannelName(ctx, channelID)
	if err != nil {
		return false, fmt.Errorf("lock channel: %w", err)
	}
	if err := e.state.LockChannel(ctx, guildID, channelID, name, by); err != nil {
		return false, err
	}
	return true, nil
}

// ToggleChain chains or unchains a follower to the protected account.
func (e *Engine) ToggleChain(ctx context.Context, guildID, userID string) (bool, error) {
	return e.chains.Toggle(ctx, guildID, userID)
}

// Wakeup runs a wakeup sequence. Only one sequence runs per target at a time,
// and running sequences stop when the engine shuts down.
func (e *Engine) Wakeup(ctx context.Context, guildID, userID string, progress func(voice.Progress)) (voice.WakeupResult, error) {
	key := guildID + ":" + userID
	if _, busy := e.wakeups.LoadOrStore(key, struct{}{}); busy {
		return voice.WakeupResult{}, discord.ErrBusy
	}
	defer e.wakeups.Delete(key)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.shutdown, cancel)
	defer stop()

	return e.wakeup.Run(ctx, guildID, userID, progress)
}

// TogglePrivate makes a voice channel private or public.
func (e *Engine) TogglePrivate(ctx context.Context, guildID, channelID, by string) (bool, error) {
	return e.private.Toggle(ctx, guildID, channelID, by)
}

// Allow grants a member access to a private voice channel.
func (e *Engine) Allow(ctx context.Context, guildID, channelID, userID string) error {
	return e.private.Allow(ctx, guildID, channelID, userID)
}

// Revoke removes a member's access to a private voice channel.
func (e *Engine) Revoke(ctx context.Context, guildID, channelID, userID string) error {
	return e.private.Revoke(ctx, guildID, channelID, userID)
}

// Strip removes every role from a member.
func (e *Engine) Strip(ctx context.Context, guildID, userID, by string) (protect.StripResult, error) {
	return e.stripper.Strip(ctx, guildID, userID, by)
}

// Restore gives a stripped member their roles back.
func (e *Engine) Restore(ctx context.Context, guildID, userID, by string) (protect.StripResult, error) {
	return e.stripper.Restore(ctx, guildID, userID, by)
}

// Logs returns up to n of the newest log entries.
func (e *Engine) Logs(ctx context.Context, guildID string, n int) []state.LogEntry {
	logs := e.state.Snapshot(ctx, guildID).Logs
	return logs[:min(max(n, 0), len(logs))]
}

// SetAntiMove updates the relocation punishment settings.
func (e *Engine) SetAntiMove(ctx context.Context, guildID string, maxAttempts int, duration time.Duration) error {
	return e.state.SetAntiMove(ctx, guildID, maxAttempts, duration)
}

// SetWakeup updates the wakeup sequence settings.
func (e *Engine) SetWakeup(ctx context.Context, guildID string, moves int, delay time.Duration) error {
	return e.state.SetWakeup(ctx, guildID, moves, delay)
}

// SetNotifications updates the alert toggles.
func (e *Engine) SetNotifications(ctx context.Context, guildID string, n state.Notifications) error {
	_, err := e.state.Update(ctx, guildID, func(gs *state.GuildState) error {
		gs.Notifications = n
		return nil
	})
	return err
}
