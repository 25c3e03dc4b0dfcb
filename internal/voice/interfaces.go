// Package voice implements chain following, wakeup sequences and
// private voice spaces for the protected account.
package voice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/warden/internal/markers"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

var (
	// ErrProtectedTarget is returned when an operation targets the protected account.
	ErrProtectedTarget = errors.New("target is the protected account")
	// ErrNotConnected is returned when the target is not in a voice channel.
	ErrNotConnected = errors.New("target is not connected to voice")
	// ErrTooFewChannels is returned when fewer than two voice channels are usable.
	ErrTooFewChannels = errors.New("at least two voice channels are required")
	// ErrNotPrivate is returned when a channel has no private space.
	ErrNotPrivate = errors.New("channel is not private")
)

// Platform defines the voice lookups and relocations the engine needs.
type Platform interface {
	// Move relocates a member. An empty channelID disconnects.
	Move(ctx context.Context, guildID, userID, channelID, reason string) error
	// VoiceChannelOf returns the member's current voice channel or "".
	VoiceChannelOf(ctx context.Context, guildID, userID string) string
	// VoiceMembers returns the members connected to a channel.
	VoiceMembers(ctx context.Context, guildID, channelID string) []string
	// MoveTargets returns the voice channels the bot may move members into, in guild order.
	MoveTargets(ctx context.Context, guildID string) ([]string, error)
}

// StateManager defines guild state operations.
type StateManager interface {
	Snapshot(ctx context.Context, guildID string) state.GuildState
	Update(ctx context.Context, guildID string, fn func(*state.GuildState) error) (state.GuildState, error)
	AppendLog(ctx context.Context, guildID, typ string, details map[string]string)
	Now() time.Time
}

// Markers defines loop-prevention operations.
type Markers interface {
	Arm(k markers.Key, expect string) string
	Consume(k markers.Key, observed string) bool
	Armed(k markers.Key) bool
}

// Deps holds the collaborators shared by the voice components.
type Deps struct {
	Platform    Platform
	State       StateManager
	Markers     Markers
	Logger      *slog.Logger
	ProtectedID string
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// admitKind marks engine-driven relocations so the private gate lets them through.
const admitKind = "voice_admit"

func admitKey(guildID, userID string) markers.Key {
	return markers.Key{Kind: admitKind, GuildID: guildID, SubjectID: userID}
}

// revertKey matches the marker armed while the protected account is being
// returned to the channel it was moved out of.
func revertKey(guildID, userID string) markers.Key {
	return markers.Key{Kind: state.ModuleAntiMove, GuildID: guildID, SubjectID: userID}
}
