package voice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// Private manages access-restricted voice spaces.
type Private struct {
	Deps
}

// NewPrivate creates a private-space controller.
func NewPrivate(d Deps) *Private {
	return &Private{Deps: d.withDefaults()}
}

// Toggle privatizes channelID, or makes it public again if already private.
// Members present at privatization keep access. It reports the new state.
func (p *Private) Toggle(ctx context.Context, guildID, channelID, by string) (bool, error) {
	// Members are listed up front; which way the toggle goes is decided
	// under the guild lock.
	members := p.Platform.VoiceMembers(ctx, guildID, channelID)

	var private bool
	var present map[string]bool
	_, err := p.State.Update(ctx, guildID, func(gs *state.GuildState) error {
		action := "publicize"
		present = nil
		if _, ok := gs.PrivateVoice[channelID]; ok {
			delete(gs.PrivateVoice, channelID)
			private = false
		} else {
			action = "privatize"
			present = make(map[string]bool, len(members))
			for _, id := range members {
				if id != p.ProtectedID {
					present[id] = true
				}
			}
			gs.PrivateVoice[channelID] = state.PrivateVoiceSpace{
				CreatedAt:      p.State.Now(),
				AllowedMembers: map[string]bool{},
				PresentMembers: present,
				CreatedBy:      by,
			}
			private = true
		}
		gs.AddLog(state.LogPrivate, map[string]string{
			"action":     action,
			"channel_id": channelID,
			"by":         by,
			"present":    fmt.Sprint(len(present)),
		}, p.State.Now())
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle private space: %w", err)
	}

	p.Logger.Info("toggled private voice space",
		"guild_id", guildID,
		"channel_id", channelID,
		"private", private,
		"grandfathered", len(present))
	return private, nil
}

// Allow grants userID access to a private space.
func (p *Private) Allow(ctx context.Context, guildID, channelID, userID string) error {
	_, err := p.State.Update(ctx, guildID, func(gs *state.GuildState) error {
		space, ok := gs.PrivateVoice[channelID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotPrivate, channelID)
		}
		if space.AllowedMembers == nil {
			space.AllowedMembers = map[string]bool{}
		}
		space.AllowedMembers[userID] = true
		gs.PrivateVoice[channelID] = space
		gs.AddLog(state.LogPrivate, map[string]string{
			"action":     "allow",
			"channel_id": channelID,
			"user_id":    userID,
		}, p.State.Now())
		return nil
	})
	return err
}

// Revoke removes userID's access and disconnects them if they are in the space.
func (p *Private) Revoke(ctx context.Context, guildID, channelID, userID string) error {
	if userID == p.ProtectedID {
		return ErrProtectedTarget
	}
	_, err := p.State.Update(ctx, guildID, func(gs *state.GuildState) error {
		space, ok := gs.PrivateVoice[channelID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotPrivate, channelID)
		}
		delete(space.AllowedMembers, userID)
		delete(space.PresentMembers, userID)
		gs.PrivateVoice[channelID] = space
		gs.AddLog(state.LogPrivate, map[string]string{
			"action":     "revoke",
			"channel_id": channelID,
			"user_id":    userID,
		}, p.State.Now())
		return nil
	})
	if err != nil {
		return err
	}

	if p.Platform.VoiceChannelOf(ctx, guildID, userID) != channelID {
		return nil
	}
	err = p.Platform.Move(ctx, guildID, userID, "", platform.Reason(uuid.NewString(), "access to private space revoked"))
	if err != nil {
		return fmt.Errorf("disconnect revoked member: %w", err)
	}
	privateDisconnects.Inc()
	return nil
}

// PrivateGate disconnects members who join a private space without access.
type PrivateGate struct {
	Deps
	botID func() string
}

// NewPrivateGate creates a PrivateGate.
func NewPrivateGate(d Deps, botID func() string) *PrivateGate {
	if botID == nil {
		botID = func() string { return "" }
	}
	return &PrivateGate{Deps: d.withDefaults(), botID: botID}
}

func (*PrivateGate) Name() string        { return "private_gate" }
func (*PrivateGate) Kind() platform.Kind { return platform.KindVoice }
func (*PrivateGate) Module() string      { return state.ModulePrivateVoice }

// Handle enforces a private space's access list on join.
func (g *PrivateGate) Handle(ctx context.Context, gs state.GuildState, n platform.Notification) error {
	vt, ok := n.(platform.VoiceTransition)
	if !ok || !vt.Moved() || vt.After.ChannelID == "" {
		return nil
	}
	space, ok := gs.PrivateVoice[vt.After.ChannelID]
	if !ok {
		return nil
	}
	if vt.UserID == g.ProtectedID || vt.UserID == g.botID() || space.Admits(vt.UserID) {
		return nil
	}
	// Relocations issued by chains and wakeups are let through.
	if g.Markers != nil && g.Markers.Consume(admitKey(vt.GuildID, vt.UserID), vt.After.ChannelID) {
		return nil
	}

	err := g.Platform.Move(ctx, vt.GuildID, vt.UserID, "", platform.Reason(uuid.NewString(), "not allowed in private space"))
	if err != nil {
		return fmt.Errorf("disconnect from private space: %w", err)
	}
	privateDisconnects.Inc()

	g.Logger.Info("disconnected member from private space",
		"guild_id", vt.GuildID,
		"channel_id", vt.After.ChannelID,
		"user_id", vt.UserID)
	g.State.AppendLog(ctx, vt.GuildID, state.LogPrivate, map[string]string{
		"action":     "disconnect",
		"channel_id": vt.After.ChannelID,
		"user_id":    vt.UserID,
	})
	return nil
}
