// Package config manages server configuration and guild defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/warden/internal/state"
)

const (
	defaultMaxAttempts       = 3
	defaultPunishmentMinutes = 10
	defaultWakeupMoves       = 10
	defaultWakeupDelayMS     = 1000
	defaultMaxLogEntries     = 100
	defaultMarkerWindow      = 15 * time.Second
	maxRetryAttempts         = 3
	retryDelay               = 200 * time.Millisecond
)

// Store backends.
const (
	StoreCloudRun = "cloudrun"
	StoreMemory   = "memory"
)

// ServerConfig holds server configuration from environment variables.
type ServerConfig struct {
	DiscordBotToken string
	ProtectedUserID string
	SettingsPath    string
	StoreBackend    string
	Port            string
}

// Validate checks required fields.
func (c ServerConfig) Validate() error {
	if c.DiscordBotToken == "" {
		return errors.New("DISCORD_BOT_TOKEN environment variable is required")
	}
	if c.ProtectedUserID == "" {
		return errors.New("PROTECTED_USER_ID environment variable is required")
	}
	switch c.StoreBackend {
	case StoreCloudRun, StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StoreCloudRun, StoreMemory, c.StoreBackend)
	}
	return nil
}

// Settings holds the defaults applied to a guild the first time it is seen.
type Settings struct {
	Modules       map[string]bool `yaml:"modules"`
	AntiMove      AntiMove        `yaml:"anti_move"`
	Wakeup        Wakeup          `yaml:"wakeup"`
	Notifications Notifications   `yaml:"notifications"`
	MaxLogEntries int             `yaml:"max_log_entries"`
	MarkerWindow  time.Duration   `yaml:"marker_window"`
}

// AntiMove configures relocation punishment.
type AntiMove struct {
	MaxAttempts       int `yaml:"max_attempts"`
	PunishmentMinutes int `yaml:"punishment_minutes"`
}

// Wakeup configures wakeup sequences.
type Wakeup struct {
	Moves   int `yaml:"moves"`
	DelayMS int `yaml:"delay_ms"`
}

// Notifications configures DM alerts.
type Notifications struct {
	DMAlerts           bool `yaml:"dm_alerts"`
	AdminRoleAlert     bool `yaml:"admin_role_alert"`
	ProtectedRoleAlert bool `yaml:"protected_role_alert"`
}

// Default returns the built-in settings: every module on, all alerts on.
func Default() Settings {
	modules := make(map[string]bool, len(state.Modules))
	for _, m := range state.Modules {
		modules[m] = true
	}
	return Settings{
		Modules: modules,
		AntiMove: AntiMove{
			MaxAttempts:       defaultMaxAttempts,
			PunishmentMinutes: defaultPunishmentMinutes,
		},
		Wakeup: Wakeup{
			Moves:   defaultWakeupMoves,
			DelayMS: defaultWakeupDelayMS,
		},
		Notifications: Notifications{
			DMAlerts:           true,
			AdminRoleAlert:     true,
			ProtectedRoleAlert: true,
		},
		MaxLogEntries: defaultMaxLogEntries,
		MarkerWindow:  defaultMarkerWindow,
	}
}

// Load reads settings from a YAML file layered over the defaults.
// An empty path or a missing file yields the defaults.
func Load(ctx context.Context, path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	var data []byte
	err := retry.Do(
		func() error {
			var err error
			data, err = os.ReadFile(path)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(maxRetryAttempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission)
		}),
	)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("settings file not found, using defaults", "path", path)
		return s, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return s, nil
}

// Validate checks module names and value ranges.
func (s Settings) Validate() error {
	var errs []error
	for m := range s.Modules {
		if !state.IsModule(m) {
			errs = append(errs, fmt.Errorf("%w: %s", state.ErrUnknownModule, m))
		}
	}
	if s.AntiMove.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("anti_move.max_attempts must be at least 1, got %d", s.AntiMove.MaxAttempts))
	}
	if s.AntiMove.PunishmentMinutes < 1 {
		errs = append(errs, fmt.Errorf("anti_move.punishment_minutes must be at least 1, got %d", s.AntiMove.PunishmentMinutes))
	}
	if s.Wakeup.Moves < state.MinWakeupMoves {
		errs = append(errs, fmt.Errorf("wakeup.moves must be at least %d, got %d", state.MinWakeupMoves, s.Wakeup.Moves))
	}
	if s.Wakeup.DelayMS < 0 {
		errs = append(errs, fmt.Errorf("wakeup.delay_ms must not be negative, got %d", s.Wakeup.DelayMS))
	}
	if s.MaxLogEntries < 1 {
		errs = append(errs, fmt.Errorf("max_log_entries must be at least 1, got %d", s.MaxLogEntries))
	}
	if s.MarkerWindow <= 0 {
		errs = append(errs, fmt.Errorf("marker_window must be positive, got %s", s.MarkerWindow))
	}
	return errors.Join(errs...)
}

// Template returns the initial state for a newly seen guild.
func (s Settings) Template() state.GuildState {
	modules := make(map[string]bool, len(state.Modules))
	for _, m := range state.Modules {
		modules[m] = s.Modules[m]
	}
	return state.GuildState{
		Modules: modules,
		AntiMove: state.AntiMoveSettings{
			PunishmentType:     state.PunishmentTimeout,
			MaxAttempts:        s.AntiMove.MaxAttempts,
			PunishmentDuration: time.Duration(s.AntiMove.PunishmentMinutes) * time.Minute,
		},
		Wakeup: state.WakeupSettings{
			MovesCount: s.Wakeup.Moves,
			MoveDelay:  time.Duration(s.Wakeup.DelayMS) * time.Millisecond,
		},
		Notifications: state.Notifications{
			DMAlerts:           s.Notifications.DMAlerts,
			AdminRoleAlert:     s.Notifications.AdminRoleAlert,
			ProtectedRoleAlert: s.Notifications.ProtectedRoleAlert,
		},
	}
}
