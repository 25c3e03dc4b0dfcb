package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/warden/internal/markers"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/protect"
	"github.com/codeGROOVE-dev/warden/internal/state"
	"github.com/codeGROOVE-dev/warden/internal/voice"
)

const (
	maxConcurrentEvents = 10
	lockCleanupInterval = 10 * time.Minute // How often to clean up unused locks
	lockIdleTimeout     = 30 * time.Minute // Remove locks not used for this duration
)

// EngineConfig holds configuration for creating an engine.
type EngineConfig struct {
	Platform    Platform
	State       *state.Manager
	Markers     *markers.Registry
	Audit       protect.Attributor
	Alerts      Alerter
	Logger      *slog.Logger
	BotID       func() string
	Connected   func() bool
	ProtectedID string
}

// Engine routes gateway notifications to the protection handlers and backs
// the owner's slash commands.
type Engine struct {
	platform    Platform
	state       *state.Manager
	alerts      Alerter
	logger      *slog.Logger
	connected   func() bool
	handlers    map[platform.Kind][]platform.Handler
	chains      *voice.Chains
	private     *voice.Private
	wakeup      *voice.Wakeup
	stripper    *protect.Stripper
	eventSem    chan struct{}
	shutdown    context.Context //nolint:containedctx // cancels running wakeups on shutdown
	stop        context.CancelFunc
	started     time.Time
	wakeups     sync.Map // guild ID:user ID -> struct{}
	protectedID string
	wg          sync.WaitGroup
}

// NewEngine creates an engine with the static handler registry.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	botID := cfg.BotID
	if botID == nil {
		botID = func() string { return "" }
	}
	connected := cfg.Connected
	if connected == nil {
		connected = func() bool { return true }
	}

	pd := protect.Deps{
		Platform:    cfg.Platform,
		State:       cfg.State,
		Markers:     cfg.Markers,
		Audit:       cfg.Audit,
		Logger:      logger,
		ProtectedID: cfg.ProtectedID,
		BotID:       botID,
	}
	if cfg.Alerts != nil {
		pd.Alerts = cfg.Alerts
	}
	vd := voice.Deps{
		Platform:    cfg.Platform,
		State:       cfg.State,
		Markers:     cfg.Markers,
		Logger:      logger,
		ProtectedID: cfg.ProtectedID,
	}

	shutdown, stop := context.WithCancel(context.Background())
	e := &Engine{
		platform:    cfg.Platform,
		state:       cfg.State,
		alerts:      cfg.Alerts,
		logger:      logger,
		connected:   connected,
		chains:      voice.NewChains(vd),
		private:     voice.NewPrivate(vd),
		wakeup:      voice.NewWakeup(vd),
		stripper:    protect.NewStripper(pd),
		eventSem:    make(chan struct{}, maxConcurrentEvents),
		shutdown:    shutdown,
		stop:        stop,
		started:     cfg.State.Now(),
		protectedID: cfg.ProtectedID,
	}
	e.handlers = registry(pd, vd, botID)
	return e
}

// registry returns the handlers for each notification kind, in run order.
// The private gate runs before the other voice handlers so an intruder is
// disconnected first.
func registry(pd protect.Deps, vd voice.Deps, botID func() string) map[platform.Kind][]platform.Handler {
	attempts := protect.NewAttempts(pd)
	return map[platform.Kind][]platform.Handler{
		platform.KindVoice: {
			voice.NewPrivateGate(vd, botID),
			protect.NewMuteGuard(pd),
			protect.NewMoveGuard(pd, attempts),
			voice.NewChainFollower(vd),
		},
		platform.KindMember: {
			protect.NewTimeoutGuard(pd),
			protect.NewRoleGuard(pd),
			protect.NewNicknameGuard(pd),
		},
		platform.KindRoleUpdate: {
			protect.NewRolePermissionGuard(pd),
			protect.NewAdminRoleWatch(pd),
		},
		platform.KindRoleDelete:    {protect.NewRoleDeletionGuard(pd)},
		platform.KindChannelUpdate: {protect.NewChannelNameGuard(pd)},
		platform.KindMemberRemove:  {protect.NewRemovalGuard(pd)},
		platform.KindMemberJoin:    {protect.NewRejoinRestorer(pd)},
		platform.KindMessage:       {protect.NewMentionGuard(pd)},
	}
}

// Dispatch hands a notification to its handlers on a bounded worker.
func (e *Engine) Dispatch(ctx context.Context, n platform.Notification) {
	// Acquire semaphore
	select {
	case e.eventSem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	e.wg.Go(func() {
		defer func() { <-e.eventSem }()
		e.dispatchSync(ctx, n)
	})
}

// dispatchSync runs every enabled handler for n in registry order. Each
// handler sees the state left by the previous one.
func (e *Engine) dispatchSync(ctx context.Context, n platform.Notification) {
	notificationsTotal.WithLabelValues(n.Kind().String()).Inc()
	guildID := n.Guild()

	for _, h := range e.handlers[n.Kind()] {
		gs := e.state.Snapshot(ctx, guildID)
		if h.Module() != "" && !gs.Enabled(h.Module()) {
			dispatchTotal.WithLabelValues(h.Name(), "disabled").Inc()
			continue
		}

		start := time.Now()
		err := invoke(ctx, h, gs, n)
		dispatchDuration.WithLabelValues(h.Name()).Observe(time.Since(start).Seconds())
		if err == nil {
			dispatchTotal.WithLabelValues(h.Name(), "ok").Inc()
			continue
		}

		dispatchTotal.WithLabelValues(h.Name(), "error").Inc()
		e.logger.Error("handler failed",
			"handler", h.Name(),
			"guild_id", guildID,
			"kind", n.Kind().String(),
			"error", err)
		e.state.AppendLog(ctx, guildID, state.LogFailure, map[string]string{
			"handler": h.Name(),
			"module":  h.Module(),
			"error":   err.Error(),
		})
	}
}

func invoke(ctx context.Context, h platform.Handler, gs state.GuildState, n platform.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", h.Name(), r)
		}
	}()
	return h.Handle(ctx, gs, n)
}

// Run cleans up idle locks until ctx is canceled, then cancels running
// wakeups and waits for in-flight notifications.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(lockCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.stop()
			e.Wait()
			return ctx.Err()
		case <-ticker.C:
			e.CleanupLocks()
		}
	}
}

// Wait waits for all in-flight notifications to finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// CleanupLocks removes idle per-guild locks to prevent unbounded memory growth.
// Should be called periodically; Run does so.
func (e *Engine) CleanupLocks() {
	e.state.CleanupLocks(lockIdleTimeout)
}
