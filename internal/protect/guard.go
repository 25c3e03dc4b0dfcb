package protect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/markers"
	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// Deps holds the collaborators shared by every handler.
type Deps struct {
	Platform    Platform
	State       StateManager
	Markers     Markers
	Audit       Attributor
	Alerts      Alerter
	Logger      *slog.Logger
	ProtectedID string
	BotID       func() string
}

type guard struct {
	Deps
}

func newGuard(d Deps) guard {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.BotID == nil {
		d.BotID = func() string { return "" }
	}
	return guard{Deps: d}
}

func (g *guard) key(module, guildID, subjectID, aux string) markers.Key {
	return markers.Key{Kind: module, GuildID: guildID, SubjectID: subjectID, AuxID: aux}
}

// echo consumes a marker whose expectation matches observed.
func (g *guard) echo(k markers.Key, observed string) bool {
	if !g.Markers.Consume(k, observed) {
		return false
	}
	echoesSuppressed.WithLabelValues(k.Kind).Inc()
	g.Logger.Debug("suppressed own correction",
		"module", k.Kind,
		"guild_id", k.GuildID,
		"subject_id", k.SubjectID,
		"aux_id", k.AuxID)
	return true
}

// correct arms a marker, issues the mutation with a correlated audit reason,
// and disarms the marker if the mutation fails.
func (g *guard) correct(ctx context.Context, k markers.Key, expect, action string, fn func(reason string) error) error {
	id := g.Markers.Arm(k, expect)
	if err := fn(platform.Reason(id, action)); err != nil {
		g.Markers.Disarm(k, id)
		correctionsTotal.WithLabelValues(k.Kind, outcome(err)).Inc()
		if errors.Is(err, platform.ErrPermissionDenied) {
			g.alert(ctx, k.GuildID, format.Alert{
				Title:       "Missing permission",
				Description: "Could not " + action + ". Check the bot's role position and permissions.",
				Emoji:       format.EmojiWarning,
				Severity:    format.SeverityCritical,
			})
		}
		return fmt.Errorf("%s: %w", action, err)
	}
	correctionsTotal.WithLabelValues(k.Kind, "ok").Inc()
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, platform.ErrPermissionDenied):
		return "forbidden"
	case errors.Is(err, platform.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// reason builds an audit reason for a mutation that needs no echo suppression.
func (*guard) reason(action string) string {
	return platform.Reason(uuid.NewString(), action)
}

// alert forwards an alert when DM alerts are enabled for the guild.
func (g *guard) alert(ctx context.Context, guildID string, a format.Alert) {
	if g.Alerts == nil {
		return
	}
	gs := g.State.Snapshot(ctx, guildID)
	if !gs.Notifications.DMAlerts {
		return
	}
	g.Alerts.Alert(ctx, guildID, a)
}

// record logs a correction to the guild trail.
func (g *guard) record(ctx context.Context, guildID, module string, details map[string]string) {
	details["module"] = module
	g.State.AppendLog(ctx, guildID, state.LogCorrection, details)
}

func (g *guard) isProtected(userID string) bool {
	return g.ProtectedID != "" && userID == g.ProtectedID
}

// selfActor reports whether an attributed actor is the protected account or the bot.
func (g *guard) selfActor(actorID string) bool {
	return actorID != "" && (actorID == g.ProtectedID || actorID == g.BotID())
}
