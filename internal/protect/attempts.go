package protect

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

// AttemptResult reports the outcome of recording one relocation.
type AttemptResult struct {
	Until     time.Time
	Count     int
	Threshold int
	Counted   bool
	Punished  bool
}

// Attempts counts relocations per actor and punishes repeat offenders.
// Counters reset to zero when the threshold is reached.
type Attempts struct {
	guard
}

// NewAttempts creates an attempt controller.
func NewAttempts(d Deps) *Attempts {
	return &Attempts{guard: newGuard(d)}
}

// Record counts one attributed relocation. Unknown actors, the bot and the
// protected account are never counted.
func (a *Attempts) Record(ctx context.Context, guildID, actorID string) (AttemptResult, error) {
	if actorID == "" || a.selfActor(actorID) {
		return AttemptResult{}, nil
	}

	var res AttemptResult
	var settings state.AntiMoveSettings
	_, err := a.State.Update(ctx, guildID, func(gs *state.GuildState) error {
		settings = gs.AntiMove
		res.Threshold = settings.Threshold()
		res.Count = gs.AttemptCounters[actorID] + 1
		res.Counted = true
		if res.Count >= res.Threshold {
			delete(gs.AttemptCounters, actorID)
			res.Punished = true
			return nil
		}
		gs.AttemptCounters[actorID] = res.Count
		return nil
	})
	if err != nil {
		return AttemptResult{}, fmt.Errorf("record attempt: %w", err)
	}
	relocationAttempts.Inc()

	if !res.Punished {
		return res, nil
	}

	if settings.PunishmentType != "" && settings.PunishmentType != state.PunishmentTimeout {
		a.Logger.Warn("unsupported punishment type, skipping",
			"guild_id", guildID,
			"punishment_type", settings.PunishmentType)
		punishmentsTotal.WithLabelValues("unsupported").Inc()
		return res, nil
	}

	res.Until = a.State.Now().Add(settings.PunishmentDuration)
	if err := a.Platform.Timeout(ctx, guildID, actorID, &res.Until, a.reason("repeated relocation of protected account")); err != nil {
		punishmentsTotal.WithLabelValues(outcome(err)).Inc()
		return res, fmt.Errorf("timeout %s: %w", actorID, err)
	}
	punishmentsTotal.WithLabelValues("ok").Inc()

	a.Logger.Info("punished repeat mover",
		"guild_id", guildID,
		"actor_id", actorID,
		"attempts", res.Count,
		"until", res.Until)

	a.State.AppendLog(ctx, guildID, state.LogPunishment, map[string]string{
		"actor_id": actorID,
		"attempts": strconv.Itoa(res.Count),
		"duration": settings.PunishmentDuration.String(),
		"type":     state.PunishmentTimeout,
	})
	a.alert(ctx, guildID, format.Alert{
		Title:       "Repeat mover timed out",
		Description: "A member reached the relocation limit and was timed out.",
		Emoji:       format.EmojiHammer,
		Severity:    format.SeverityWarning,
		Fields: []format.Field{
			{Name: "Member", Value: format.User(actorID), Inline: true},
			{Name: "Attempts", Value: fmt.Sprintf("%d/%d", res.Count, res.Threshold), Inline: true},
			{Name: "Duration", Value: format.Duration(settings.PunishmentDuration), Inline: true},
		},
	})
	return res, nil
}
