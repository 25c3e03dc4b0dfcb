package voice

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/warden/internal/platform"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

const progressEvery = 3

// Progress reports the state of a running wakeup.
type Progress struct {
	ChannelID string
	Step      int
	Total     int
}

// WakeupResult summarizes a finished wakeup.
type WakeupResult struct {
	Origin    string
	Planned   int
	Performed int
	Halted    bool
	Returned  bool
}

// Wakeup drags a target through the guild's voice channels and back.
type Wakeup struct {
	Deps
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWakeup creates a wakeup runner.
func NewWakeup(d Deps) *Wakeup {
	return &Wakeup{Deps: d.withDefaults(), sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Plan returns the channels a wakeup cycles through and its step count.
func Plan(targets []string, movesCount int) ([]string, int) {
	if movesCount > 0 && len(targets) > movesCount {
		targets = targets[:movesCount]
	}
	return targets, min(movesCount, 2*len(targets))
}

// Run executes a wakeup against targetID. Overlapping runs for the same
// target must be serialized by the caller. progress may be nil.
func (w *Wakeup) Run(ctx context.Context, guildID, targetID string, progress func(Progress)) (WakeupResult, error) {
	if targetID == w.ProtectedID {
		return WakeupResult{}, ErrProtectedTarget
	}
	gs := w.State.Snapshot(ctx, guildID)
	if !gs.Enabled(state.ModuleWakeup) {
		return WakeupResult{}, platform.ErrModuleDisabled
	}

	origin := w.Platform.VoiceChannelOf(ctx, guildID, targetID)
	if origin == "" {
		return WakeupResult{}, ErrNotConnected
	}

	all, err := w.Platform.MoveTargets(ctx, guildID)
	if err != nil {
		return WakeupResult{}, fmt.Errorf("list voice channels: %w", err)
	}
	spaces, total := Plan(all, gs.Wakeup.MovesCount)
	if len(spaces) < 2 {
		return WakeupResult{}, ErrTooFewChannels
	}

	res := WakeupResult{Origin: origin, Planned: total}
	reason := platform.Reason(uuid.NewString(), "wakeup")
	w.Logger.Info("starting wakeup",
		"guild_id", guildID,
		"target_id", targetID,
		"moves", total,
		"channels", len(spaces),
		"delay", gs.Wakeup.MoveDelay)

	for i := range total {
		if i > 0 {
			if err := w.sleep(ctx, gs.Wakeup.MoveDelay); err != nil {
				return res, err
			}
		}
		if w.Platform.VoiceChannelOf(ctx, guildID, targetID) == "" {
			res.Halted = true
			w.Logger.Info("wakeup target disconnected, halting",
				"guild_id", guildID,
				"target_id", targetID,
				"step", i)
			break
		}

		dest := spaces[i%len(spaces)]
		if w.Markers != nil {
			w.Markers.Arm(admitKey(guildID, targetID), dest)
		}
		err := w.Platform.Move(ctx, guildID, targetID, dest, reason)
		wakeupSteps.WithLabelValues(outcomeLabel(err)).Inc()
		if err != nil {
			w.Logger.Warn("wakeup move failed, continuing",
				"guild_id", guildID,
				"target_id", targetID,
				"channel_id", dest,
				"error", err)
		} else {
			res.Performed++
		}

		if progress != nil && ((i+1)%progressEvery == 0 || i == total-1) {
			progress(Progress{Step: i + 1, Total: total, ChannelID: dest})
		}
	}

	if !res.Halted && w.Platform.VoiceChannelOf(ctx, guildID, targetID) != "" {
		if w.Markers != nil {
			w.Markers.Arm(admitKey(guildID, targetID), origin)
		}
		if err := w.Platform.Move(ctx, guildID, targetID, origin, reason); err != nil {
			w.Logger.Warn("failed to return wakeup target",
				"guild_id", guildID,
				"target_id", targetID,
				"channel_id", origin,
				"error", err)
		} else {
			res.Returned = true
		}
	}

	w.State.AppendLog(ctx, guildID, state.LogWakeup, map[string]string{
		"target_id": targetID,
		"planned":   strconv.Itoa(res.Planned),
		"performed": strconv.Itoa(res.Performed),
		"halted":    strconv.FormatBool(res.Halted),
		"returned":  strconv.FormatBool(res.Returned),
	})
	w.Logger.Info("wakeup finished",
		"guild_id", guildID,
		"target_id", targetID,
		"performed", res.Performed,
		"halted", res.Halted,
		"returned", res.Returned)
	return res, nil
}
