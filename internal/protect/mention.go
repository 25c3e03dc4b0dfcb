package protect

import (
	"context"
	"fmt"

	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// MentionGuard deletes messages that mention the protected account.
type MentionGuard struct {
	guard
}

// NewMentionGuard creates a MentionGuard.
func NewMentionGuard(d Deps) *MentionGuard {
	return &MentionGuard{guard: newGuard(d)}
}

func (*MentionGuard) Name() string        { return "mention_guard" }
func (*MentionGuard) Kind() platform.Kind { return platform.KindMessage }
func (*MentionGuard) Module() string      { return state.ModuleAntiPing }

// Handle deletes a message from another member that mentions the protected account.
func (h *MentionGuard) Handle(ctx context.Context, _ state.GuildState, n platform.Notification) error {
	msg, ok := n.(platform.Message)
	if !ok || msg.AuthorBot || h.isProtected(msg.AuthorID) || h.ProtectedID == "" {
		return nil
	}
	if !msg.Mentioned(h.ProtectedID) {
		return nil
	}

	err := h.Platform.DeleteMessage(ctx, msg.ChannelID, msg.MessageID, h.reason("mention of protected account"))
	correctionsTotal.WithLabelValues(state.ModuleAntiPing, outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("delete message %s: %w", msg.MessageID, err)
	}

	h.Logger.Info("deleted mention",
		"guild_id", msg.GuildID,
		"channel_id", msg.ChannelID,
		"author_id", msg.AuthorID)

	h.record(ctx, msg.GuildID, state.ModuleAntiPing, map[string]string{
		"action":     "mention_deleted",
		"channel_id": msg.ChannelID,
		"author_id":  msg.AuthorID,
	})
	h.alert(ctx, msg.GuildID, format.Alert{
		Title:       "Mention removed",
		Description: "A message mentioning you was deleted.",
		Emoji:       format.EmojiShield,
		Severity:    format.SeverityInfo,
		Fields: []format.Field{
			{Name: "Author", Value: format.User(msg.AuthorID), Inline: true},
			{Name: "Channel", Value: format.Channel(msg.ChannelID), Inline: true},
		},
	})
	return nil
}
