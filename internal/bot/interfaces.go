// Package bot provides the protection engine: handler registry, notification
// dispatch and the backend for the owner's slash commands.
package bot

import (
	"context"

	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/protect"
	"github.com/codeGROOVE-dev/warden/internal/voice"
)

// Platform defines the Discord operations the engine and its handlers need.
type Platform interface {
	protect.Platform
	voice.Platform

	// ChannelName returns a channel's current name.
	ChannelName(ctx context.Context, channelID string) (string, error)
}

// Alerter queues alerts for the protected account.
type Alerter interface {
	Alert(ctx context.Context, guildID string, a format.Alert)
	Pending() int
}
