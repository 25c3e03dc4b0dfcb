// Package format provides alert and status formatting for Discord.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Alert emoji mappings.
const (
	EmojiShield   = "\U0001F6E1\uFE0F" // 🛡️ Correction applied
	EmojiWarning  = "\u26A0\uFE0F"     // ⚠️ Needs attention
	EmojiHammer   = "\U0001F528"       // 🔨 Punishment
	EmojiLock     = "\U0001F512"       // 🔒 Lock / private space
	EmojiLink     = "\U0001F517"       // 🔗 Chain
	EmojiAlarm    = "\u23F0"           // ⏰ Wakeup
	EmojiCrown    = "\U0001F451"       // 👑 Administrator granted
	EmojiEnvelope = "\u2709\uFE0F"     // ✉️ Invite
)

// Severity controls an alert's color.
type Severity int

// Alert severities.
const (
	SeverityInfo Severity = iota
	SeverityCorrection
	SeverityWarning
	SeverityCritical
)

// Embed colors per severity.
const (
	colorInfo       = 0x0099ff
	colorCorrection = 0x00cc66
	colorWarning    = 0xffaa00
	colorCritical   = 0xff3333
)

// Color returns the embed color for a severity.
func (s Severity) Color() int {
	switch s {
	case SeverityCorrection:
		return colorCorrection
	case SeverityWarning:
		return colorWarning
	case SeverityCritical:
		return colorCritical
	default:
		return colorInfo
	}
}

// Field is a labeled alert value.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Alert is a notification for the protected account.
type Alert struct {
	At          time.Time
	Title       string
	Description string
	Emoji       string
	Fields      []Field
	Severity    Severity
}

// Discord embed limits.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxFields      = 25
)

// Embed renders an alert as a Discord embed.
func Embed(a Alert) *discordgo.MessageEmbed {
	title := a.Title
	if a.Emoji != "" {
		title = a.Emoji + " " + title
	}

	embed := &discordgo.MessageEmbed{
		Title:       Truncate(title, maxTitle),
		Description: Truncate(a.Description, maxDescription),
		Color:       a.Severity.Color(),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "warden",
		},
	}
	if !a.At.IsZero() {
		embed.Timestamp = a.At.UTC().Format(time.RFC3339)
	}

	for i, f := range a.Fields {
		if i >= maxFields {
			break
		}
		value := f.Value
		if value == "" {
			value = "-"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   Truncate(f.Name, maxFieldName),
			Value:  Truncate(value, maxFieldValue),
			Inline: f.Inline,
		})
	}

	return embed
}

// User returns a user mention, or "unknown" for an empty id.
func User(id string) string {
	if id == "" {
		return "unknown"
	}
	return "<@" + id + ">"
}

// Channel returns a channel mention, or "none" for an empty id.
func Channel(id string) string {
	if id == "" {
		return "none"
	}
	return "<#" + id + ">"
}

// Role returns a role mention.
func Role(id string) string {
	return "<@&" + id + ">"
}

// Duration renders a duration in whole minutes or seconds.
func Duration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return fmt.Sprintf("%gs", d.Seconds())
}

// List joins up to limit items, noting how many were left out.
func List(items []string, limit int) string {
	if len(items) == 0 {
		return "none"
	}
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s ... +%d", strings.Join(items[:limit], ", "), len(items)-limit)
}

// OnOff renders a module flag.
func OnOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

// Truncate truncates a string to maxLen, adding "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
