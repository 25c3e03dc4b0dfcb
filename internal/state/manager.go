package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMaxLogEntries = 100

// Log entry types.
const (
	LogModule     = "module"
	LogFailure    = "failure"
	LogCorrection = "correction"
	LogPunishment = "punishment"
	LogChain      = "chain"
	LogPrivate    = "private_voice"
	LogWakeup     = "wakeup"
	LogStrip      = "strip"
	LogRestore    = "restore"
	LogRole       = "role"
	LogLock       = "lock"
)

var (
	// ErrUnknownModule is returned when a module name is not recognized.
	ErrUnknownModule = errors.New("unknown module")
	// ErrAlreadyLocked is returned when locking a channel that already has a lock entry.
	ErrAlreadyLocked = errors.New("channel already locked")
	// ErrNotLocked is returned when unlocking a channel without a lock entry.
	ErrNotLocked = errors.New("channel not locked")
)

// AddLog prepends a log entry. The manager trims the list after each update.
func (g *GuildState) AddLog(typ string, details map[string]string, at time.Time) {
	entry := LogEntry{
		ID:        uuid.NewString(),
		Timestamp: at,
		Type:      typ,
		Details:   details,
	}
	g.Logs = append([]LogEntry{entry}, g.Logs...)
}

// ManagerConfig holds configuration for creating a Manager.
type ManagerConfig struct {
	Store         Store
	Logger        *slog.Logger
	Now           func() time.Time
	Template      GuildState
	MaxLogEntries int
}

// Manager caches guild state and serializes mutations per guild.
// Every mutation is applied to a copy, swapped into the cache, then written through.
type Manager struct {
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	guilds   map[string]*GuildState
	locks    lockMap
	template GuildState
	maxLogs  int
	mu       sync.RWMutex
}

// NewManager creates a new state manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxLogs := cfg.MaxLogEntries
	if maxLogs <= 0 {
		maxLogs = defaultMaxLogEntries
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}

	return &Manager{
		store:    store,
		logger:   logger,
		now:      now,
		guilds:   make(map[string]*GuildState),
		template: cfg.Template.Clone(),
		maxLogs:  maxLogs,
	}
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time {
	return m.now()
}

func (m *Manager) guildLock(guildID string) *sync.Mutex {
	return m.locks.get(guildID)
}

// CleanupLocks removes per-guild locks idle for longer than idleTimeout.
func (m *Manager) CleanupLocks(idleTimeout time.Duration) int {
	removed := m.locks.cleanup(idleTimeout)
	if removed > 0 {
		m.logger.Debug("cleaned up idle guild locks", "removed", removed)
	}
	return removed
}

// load returns the cached state, loading or creating it on first reference.
// Caller must hold the guild lock.
func (m *Manager) load(ctx context.Context, guildID string) *GuildState {
	m.mu.RLock()
	gs, ok := m.guilds[guildID]
	m.mu.RUnlock()
	if ok {
		return gs
	}

	loaded, found, err := m.store.Load(ctx, guildID)
	if err != nil {
		m.logger.Warn("failed to load guild state, using defaults",
			"guild_id", guildID,
			"error", err)
	}
	if !found || err != nil {
		loaded = m.template.Clone()
		m.logger.Info("initialized guild state from defaults", "guild_id", guildID)
	}
	loaded.normalize()

	m.mu.Lock()
	m.guilds[guildID] = &loaded
	m.mu.Unlock()
	return &loaded
}

// Snapshot returns a deep copy of the guild state.
func (m *Manager) Snapshot(ctx context.Context, guildID string) GuildState {
	m.mu.RLock()
	gs, ok := m.guilds[guildID]
	m.mu.RUnlock()
	if ok {
		return gs.Clone()
	}

	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()
	return m.load(ctx, guildID).Clone()
}

// Update applies fn to a copy of the guild state under the guild lock.
// If fn returns an error the state is left untouched. Persistence failures
// are logged and the in-memory state keeps the mutation.
func (m *Manager) Update(ctx context.Context, guildID string, fn func(*GuildState) error) (GuildState, error) {
	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	cur := m.load(ctx, guildID)
	next := cur.Clone()
	next.normalize()
	if err := fn(&next); err != nil {
		return cur.Clone(), err
	}
	if len(next.Logs) > m.maxLogs {
		next.Logs = next.Logs[:m.maxLogs]
	}

	m.mu.Lock()
	m.guilds[guildID] = &next
	m.mu.Unlock()

	if err := m.store.Save(ctx, guildID, next); err != nil {
		m.logger.Error("failed to persist guild state",
			"guild_id", guildID,
			"error", err)
	}
	return next.Clone(), nil
}

// AppendLog records a log entry for a guild.
func (m *Manager) AppendLog(ctx context.Context, guildID, typ string, details map[string]string) {
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		gs.AddLog(typ, details, m.now())
		return nil
	})
	if err != nil {
		m.logger.Warn("failed to append log", "guild_id", guildID, "type", typ, "error", err)
	}
}

// SetModule switches a module on or off. Disabling anti_move clears attempt counters.
func (m *Manager) SetModule(ctx context.Context, guildID, module string, enabled bool) error {
	if !IsModule(module) {
		return fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		gs.Modules[module] = enabled
		if module == ModuleAntiMove && !enabled {
			clear(gs.AttemptCounters)
		}
		gs.AddLog(LogModule, map[string]string{
			"module":  module,
			"enabled": fmt.Sprint(enabled),
		}, m.now())
		return nil
	})
	return err
}

// ProtectRole adds a role to the protected set. It reports whether the set changed.
func (m *Manager) ProtectRole(ctx context.Context, guildID, roleID string) (bool, error) {
	added := false
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		if gs.IsProtectedRole(roleID) {
			return nil
		}
		gs.ProtectedRoles = append(gs.ProtectedRoles, roleID)
		gs.AddLog(LogRole, map[string]string{"action": "protect", "role_id": roleID}, m.now())
		added = true
		return nil
	})
	return added, err
}

// UnprotectRole removes a role from the protected set. It reports whether the set changed.
func (m *Manager) UnprotectRole(ctx context.Context, guildID, roleID string) (bool, error) {
	removed := false
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		i := slices.Index(gs.ProtectedRoles, roleID)
		if i < 0 {
			return nil
		}
		gs.ProtectedRoles = slices.Delete(gs.ProtectedRoles, i, i+1)
		gs.AddLog(LogRole, map[string]string{"action": "unprotect", "role_id": roleID}, m.now())
		removed = true
		return nil
	})
	return removed, err
}

// ReplaceProtectedRole swaps oldID for newID, keeping its position in the set.
func (m *Manager) ReplaceProtectedRole(ctx context.Context, guildID, oldID, newID string) error {
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		i := slices.Index(gs.ProtectedRoles, oldID)
		if i < 0 {
			if !gs.IsProtectedRole(newID) {
				gs.ProtectedRoles = append(gs.ProtectedRoles, newID)
			}
			return nil
		}
		gs.ProtectedRoles[i] = newID
		gs.AddLog(LogRole, map[string]string{
			"action":      "recreated",
			"old_role_id": oldID,
			"new_role_id": newID,
		}, m.now())
		return nil
	})
	return err
}

// LockChannel pins a channel's name. At most one entry exists per channel.
func (m *Manager) LockChannel(ctx context.Context, guildID, channelID, name, by string) error {
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		if _, ok := gs.LockedChannel(channelID); ok {
			return fmt.Errorf("%w: %s", ErrAlreadyLocked, channelID)
		}
		gs.LockedChannels = append(gs.LockedChannels, LockedChannel{
			ChannelID:    channelID,
			OriginalName: name,
			LockedAt:     m.now(),
			LockedBy:     by,
		})
		gs.AddLog(LogLock, map[string]string{"action": "lock", "channel_id": channelID, "name": name}, m.now())
		return nil
	})
	return err
}

// UnlockChannel removes a channel's lock entry.
func (m *Manager) UnlockChannel(ctx context.Context, guildID, channelID string) error {
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		i := slices.IndexFunc(gs.LockedChannels, func(lc LockedChannel) bool {
			return lc.ChannelID == channelID
		})
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotLocked, channelID)
		}
		gs.LockedChannels = slices.Delete(gs.LockedChannels, i, i+1)
		gs.AddLog(LogLock, map[string]string{"action": "unlock", "channel_id": channelID}, m.now())
		return nil
	})
	return err
}

// SetBaselineNickname records the nickname that renames are reverted to.
func (m *Manager) SetBaselineNickname(ctx context.Context, guildID, nick string) error {
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		gs.BaselineNickname = &nick
		return nil
	})
	return err
}

// SetAntiMove updates the relocation punishment settings.
func (m *Manager) SetAntiMove(ctx context.Context, guildID string, maxAttempts int, duration time.Duration) error {
	if maxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}
	if duration <= 0 {
		return fmt.Errorf("punishment duration must be positive, got %s", duration)
	}
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		gs.AntiMove.MaxAttempts = maxAttempts
		gs.AntiMove.PunishmentDuration = duration
		return nil
	})
	return err
}

// SetWakeup updates the wakeup sequence settings.
func (m *Manager) SetWakeup(ctx context.Context, guildID string, moves int, delay time.Duration) error {
	if moves < MinWakeupMoves {
		return fmt.Errorf("moves count must be at least %d, got %d", MinWakeupMoves, moves)
	}
	if delay < 0 {
		return fmt.Errorf("move delay must not be negative, got %s", delay)
	}
	_, err := m.Update(ctx, guildID, func(gs *GuildState) error {
		gs.Wakeup.MovesCount = moves
		gs.Wakeup.MoveDelay = delay
		return nil
	})
	return err
}
