package voice

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

const maxConcurrentFollowerMoves = 5

// Chains manages follow links between members and the protected account.
type Chains struct {
	Deps
}

// NewChains creates a chain manager.
func NewChains(d Deps) *Chains {
	return &Chains{Deps: d.withDefaults()}
}

// Toggle deactivates an active link for followerID, or creates or
// reactivates one. It reports whether the link is now active.
func (c *Chains) Toggle(ctx context.Context, guildID, followerID string) (bool, error) {
	if followerID == c.ProtectedID {
		return false, ErrProtectedTarget
	}

	var active bool
	_, err := c.State.Update(ctx, guildID, func(gs *state.GuildState) error {
		now := c.State.Now()
		link, ok := gs.ChainLinks[followerID]
		if ok && link.Active {
			link.Active = false
			link.EndedAt = &now
		} else {
			link = state.ChainLink{
				Active:    true,
				MasterID:  c.ProtectedID,
				CreatedAt: now,
			}
		}
		gs.ChainLinks[followerID] = link
		active = link.Active

		action := "unchain"
		if active {
			action = "chain"
		}
		gs.AddLog(state.LogChain, map[string]string{
			"action":      action,
			"follower_id": followerID,
		}, now)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle chain: %w", err)
	}

	c.Logger.Info("toggled chain link",
		"guild_id", guildID,
		"follower_id", followerID,
		"active", active)
	return active, nil
}

// ChainFollower drags active followers along with the protected account.
type ChainFollower struct {
	Deps
}

// NewChainFollower creates a ChainFollower.
func NewChainFollower(d Deps) *ChainFollower {
	return &ChainFollower{Deps: d.withDefaults()}
}

func (*ChainFollower) Name() string        { return "chain_follower" }
func (*ChainFollower) Kind() platform.Kind { return platform.KindVoice }
func (*ChainFollower) Module() string      { return state.ModuleChain }

// Handle moves connected followers to the protected account's new channel,
// or disconnects them and ends every link when the account leaves voice.
// Individual move failures are logged and swallowed.
func (h *ChainFollower) Handle(ctx context.Context, gs state.GuildState, n platform.Notification) error {
	vt, ok := n.(platform.VoiceTransition)
	if !ok || vt.UserID != h.ProtectedID || h.ProtectedID == "" || !vt.Moved() {
		return nil
	}

	followers := gs.ActiveFollowers()
	if len(followers) == 0 {
		return nil
	}

	dest := vt.After.ChannelID
	if dest != "" && h.Markers != nil && h.Markers.Armed(revertKey(vt.GuildID, vt.UserID)) {
		// The account is on its way back; followers move on the return.
		h.Logger.Debug("relocation being reverted, holding chained followers",
			"guild_id", vt.GuildID,
			"channel_id", dest)
		return nil
	}
	reason := platform.Reason(uuid.NewString(), "chain follow")
	if dest == "" {
		reason = platform.Reason(uuid.NewString(), "chain master left voice")
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentFollowerMoves)
	for _, id := range followers {
		eg.Go(func() error {
			cur := h.Platform.VoiceChannelOf(egCtx, vt.GuildID, id)
			if cur == "" || cur == dest {
				return nil
			}
			if dest != "" && h.Markers != nil {
				h.Markers.Arm(admitKey(vt.GuildID, id), dest)
			}
			err := h.Platform.Move(egCtx, vt.GuildID, id, dest, reason)
			chainMoves.WithLabelValues(outcomeLabel(err)).Inc()
			if err != nil {
				h.Logger.Warn("failed to move chained follower",
					"guild_id", vt.GuildID,
					"follower_id", id,
					"channel_id", dest,
					"error", err)
			}
			return nil
		})
	}
	_ = eg.Wait() //nolint:errcheck // follower errors are logged above

	if dest != "" {
		h.Logger.Info("moved chained followers",
			"guild_id", vt.GuildID,
			"channel_id", dest,
			"followers", len(followers))
		return nil
	}

	_, err := h.State.Update(ctx, vt.GuildID, func(gs *state.GuildState) error {
		now := h.State.Now()
		for id, link := range gs.ChainLinks {
			if !link.Active {
				continue
			}
			link.Active = false
			link.EndedAt = &now
			gs.ChainLinks[id] = link
		}
		gs.AddLog(state.LogChain, map[string]string{
			"action":    "master_disconnected",
			"followers": fmt.Sprint(len(followers)),
		}, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("end chain links: %w", err)
	}
	h.Logger.Info("protected account left voice, ended chain links",
		"guild_id", vt.GuildID,
		"followers", len(followers))
	return nil
}
