package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/codeGROOVE-dev/warden/internal/format"
	"github.com/codeGROOVE-dev/warden/internal/protect"
	"github.com/codeGROOVE-dev/warden/internal/state"
	"github.com/codeGROOVE-dev/warden/internal/voice"
)

const (
	commandName     = "warden"
	defaultLogCount = 10
	maxLogCount     = 25
	commandTimeout  = 30 * time.Second
	wakeupTimeout   = 10 * time.Minute
)

var minWakeupMoves float64 = state.MinWakeupMoves

// Commander executes the owner's slash commands.
type Commander interface {
	Status(ctx context.Context, guildID string) Status
	SetModule(ctx context.Context, guildID, module string, enabled bool) error
	ProtectRole(ctx context.Context, guildID, roleID string, protect bool) (bool, error)
	ToggleLock(ctx context.Context, guildID, channelID, by string) (bool, error)
	ToggleChain(ctx context.Context, guildID, userID string) (bool, error)
	Wakeup(ctx context.Context, guildID, userID string, progress func(voice.Progress)) (voice.WakeupResult, error)
	TogglePrivate(ctx context.Context, guildID, channelID, by string) (bool, error)
	Allow(ctx context.Context, guildID, channelID, userID string) error
	Revoke(ctx context.Context, guildID, channelID, userID string) error
	Strip(ctx context.Context, guildID, userID, by string) (protect.StripResult, error)
	Restore(ctx context.Context, guildID, userID, by string) (protect.StripResult, error)
	Logs(ctx context.Context, guildID string, n int) []state.LogEntry
	SetAntiMove(ctx context.Context, guildID string, maxAttempts int, duration time.Duration) error
	SetWakeup(ctx context.Context, guildID string, moves int, delay time.Duration) error
	SetNotifications(ctx context.Context, guildID string, n state.Notifications) error
}

// Status summarizes protection state for one guild.
type Status struct {
	Modules        map[string]bool
	ProtectedRoles []string
	LockedChannels []string
	ActiveChains   []string
	PrivateSpaces  []string
	Uptime         time.Duration
	PendingAlerts  int
	AntiMove       state.AntiMoveSettings
	Wakeup         state.WakeupSettings
	Notifications  state.Notifications
	Connected      bool
}

// SlashCommandHandler handles the /warden command. Only the protected
// account may use it.
type SlashCommandHandler struct {
	session     *discordgo.Session
	logger      *slog.Logger
	commander   Commander
	protectedID string
}

// NewSlashCommandHandler creates a new slash command handler.
func NewSlashCommandHandler(session *discordgo.Session, commander Commander, protectedID string, logger *slog.Logger) *SlashCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlashCommandHandler{
		session:     session,
		logger:      logger,
		commander:   commander,
		protectedID: protectedID,
	}
}

func moduleChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(state.Modules))
	for _, m := range state.Modules {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: m, Value: m})
	}
	return choices
}

func userOption(desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: desc, Required: true,
	}
}

func voiceChannelOption(desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "channel",
		Description:  desc,
		Required:     true,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
	}
}

// commands returns the /warden command tree.
func commands() []*discordgo.ApplicationCommand {
	dm := false
	return []*discordgo.ApplicationCommand{
		{
			Name:         commandName,
			Description:  "Protection controls",
			DMPermission: &dm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show protection status",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "module",
					Description: "Turn a protection module on or off",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Module", Required: true, Choices: moduleChoices()},
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "On or off", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "role",
					Description: "Add or remove a protected role",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role", Required: true},
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "protect", Description: "Protect or unprotect", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "lock",
					Description: "Lock or unlock a channel's name",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "chain",
					Description: "Toggle a member following you between voice channels",
					Options:     []*discordgo.ApplicationCommandOption{userOption("Member to chain")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "wakeup",
					Description: "Drag a member through the voice channels and back",
					Options:     []*discordgo.ApplicationCommandOption{userOption("Member to wake up")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "private",
					Description: "Make a voice channel private or public",
					Options:     []*discordgo.ApplicationCommandOption{voiceChannelOption("Voice channel")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "allow",
					Description: "Allow a member into a private voice channel",
					Options:     []*discordgo.ApplicationCommandOption{voiceChannelOption("Voice channel"), userOption("Member")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "revoke",
					Description: "Revoke a member's access to a private voice channel",
					Options:     []*discordgo.ApplicationCommandOption{voiceChannelOption("Voice channel"), userOption("Member")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "strip",
					Description: "Remove every role from a member",
					Options:     []*discordgo.ApplicationCommandOption{userOption("Member")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "restore",
					Description: "Give a stripped member their roles back",
					Options:     []*discordgo.ApplicationCommandOption{userOption("Member")},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "logs",
					Description: "Show recent protection activity",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "count", Description: "Entries to show"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "antimove",
					Description: "Configure punishment for repeat movers",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "attempts", Description: "Moves before punishment", Required: true},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "minutes", Description: "Timeout length", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "wakeup-settings",
					Description: "Configure wakeup sequences",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "moves", Description: "Maximum moves", Required: true, MinValue: &minWakeupMoves},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "delay_ms", Description: "Delay between moves", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "alerts",
					Description: "Configure DM alerts",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "dm", Description: "Send DM alerts", Required: true},
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "admin_roles", Description: "Alert when a role gains Administrator", Required: true},
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "protected_roles", Description: "Alert when a protected role is restored", Required: true},
					},
				},
			},
		},
	}
}

// RegisterCommands registers the slash commands with Discord.
func (h *SlashCommandHandler) RegisterCommands(guildID string) error {
	for _, cmd := range commands() {
		_, err := h.session.ApplicationCommandCreate(h.session.State.User.ID, guildID, cmd)
		if err != nil {
			return fmt.Errorf("create command %s: %w", cmd.Name, err)
		}
		h.logger.Info("registered slash command",
			"command", cmd.Name,
			"guild_id", guildID)
	}
	return nil
}

// SetupHandler sets up the interaction handler and registers the commands
// in every guild the bot joins.
func (h *SlashCommandHandler) SetupHandler() {
	h.session.AddHandler(h.handleInteraction)
	h.session.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildCreate) {
		if e.Guild == nil {
			return
		}
		if err := h.RegisterCommands(e.ID); err != nil {
			h.logger.Warn("failed to register slash commands",
				"guild_id", e.ID,
				"error", err)
		}
	})
}

func (h *SlashCommandHandler) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != commandName {
		return
	}
	if invoker(i) != h.protectedID {
		h.respondError(s, i, "Only the protected account can use this command.")
		return
	}
	if len(data.Options) == 0 {
		h.respondError(s, i, "Please specify a subcommand.")
		return
	}

	sub := data.Options[0]
	if sub.Name == "wakeup" {
		h.handleWakeup(s, i, sub)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	embed, err := h.execute(ctx, i.GuildID, sub)
	if err != nil {
		h.logger.Warn("command failed",
			"guild_id", i.GuildID,
			"subcommand", sub.Name,
			"error", err)
		h.respondError(s, i, commandError(err))
		return
	}
	h.respond(s, i, "", embed)
}

func invoker(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// options indexes a subcommand's options by name.
func options(sub *discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, o := range sub.Options {
		m[o.Name] = o
	}
	return m
}

// idOption returns a user, role or channel option's snowflake.
func idOption(o *discordgo.ApplicationCommandInteractionDataOption) string {
	if o == nil {
		return ""
	}
	if s, ok := o.Value.(string); ok {
		return s
	}
	return ""
}

func intOption(o *discordgo.ApplicationCommandInteractionDataOption, def int) int {
	if o == nil {
		return def
	}
	return int(o.IntValue())
}

func boolOption(o *discordgo.ApplicationCommandInteractionDataOption) bool {
	return o != nil && o.BoolValue()
}

// execute runs every subcommand except wakeup and returns the reply embed.
func (h *SlashCommandHandler) execute(ctx context.Context, guildID string, sub *discordgo.ApplicationCommandInteractionDataOption) (*discordgo.MessageEmbed, error) {
	opt := options(sub)
	by := h.protectedID

	switch sub.Name {
	case "status":
		return statusEmbed(h.commander.Status(ctx, guildID)), nil

	case "module":
		name := opt["name"].StringValue()
		enabled := boolOption(opt["enabled"])
		if err := h.commander.SetModule(ctx, guildID, name, enabled); err != nil {
			return nil, err
		}
		return reply("Module updated", fmt.Sprintf("`%s` is now %s.", name, format.OnOff(enabled))), nil

	case "role":
		roleID := idOption(opt["role"])
		protectIt := boolOption(opt["protect"])
		changed, err := h.commander.ProtectRole(ctx, guildID, roleID, protectIt)
		if err != nil {
			return nil, err
		}
		verb := "unprotected"
		if protectIt {
			verb = "protected"
		}
		if !changed {
			return reply("No change", fmt.Sprintf("%s was already %s.", format.Role(roleID), verb)), nil
		}
		return reply("Role updated", fmt.Sprintf("%s is now %s.", format.Role(roleID), verb)), nil

	case "lock":
		channelID := idOption(opt["channel"])
		locked, err := h.commander.ToggleLock(ctx, guildID, channelID, by)
		if err != nil {
			return nil, err
		}
		if locked {
			return reply(format.EmojiLock+" Channel locked", fmt.Sprintf("The name of %s is now pinned.", format.Channel(channelID))), nil
		}
		return reply("Channel unlocked", fmt.Sprintf("The name of %s can be changed again.", format.Channel(channelID))), nil

	case "chain":
		userID := idOption(opt["user"])
		active, err := h.commander.ToggleChain(ctx, guildID, userID)
		if err != nil {
			return nil, err
		}
		if active {
			return reply(format.EmojiLink+" Chained", fmt.Sprintf("%s will follow you between voice channels.", format.User(userID))), nil
		}
		return reply("Unchained", fmt.Sprintf("%s no longer follows you.", format.User(userID))), nil

	case "private":
		channelID := idOption(opt["channel"])
		private, err := h.commander.TogglePrivate(ctx, guildID, channelID, by)
		if err != nil {
			return nil, err
		}
		if private {
			return reply(format.EmojiLock+" Channel private", fmt.Sprintf("%s is private. Members present now keep access.", format.Channel(channelID))), nil
		}
		return reply("Channel public", fmt.Sprintf("%s is open to everyone again.", format.Channel(channelID))), nil

	case "allow":
		channelID, userID := idOption(opt["channel"]), idOption(opt["user"])
		if err := h.commander.Allow(ctx, guildID, channelID, userID); err != nil {
			return nil, err
		}
		return reply("Access granted", fmt.Sprintf("%s may join %s.", format.User(userID), format.Channel(channelID))), nil

	case "revoke":
		channelID, userID := idOption(opt["channel"]), idOption(opt["user"])
		if err := h.commander.Revoke(ctx, guildID, channelID, userID); err != nil {
			return nil, err
		}
		return reply("Access revoked", fmt.Sprintf("%s may no longer join %s.", format.User(userID), format.Channel(channelID))), nil

	case "strip":
		userID := idOption(opt["user"])
		res, err := h.commander.Strip(ctx, guildID, userID, by)
		if err != nil {
			return nil, err
		}
		return stripEmbed("Roles stripped", userID, res), nil

	case "restore":
		userID := idOption(opt["user"])
		res, err := h.commander.Restore(ctx, guildID, userID, by)
		if err != nil {
			return nil, err
		}
		return stripEmbed("Roles restored", userID, res), nil

	case "logs":
		n := min(max(intOption(opt["count"], defaultLogCount), 1), maxLogCount)
		return logsEmbed(h.commander.Logs(ctx, guildID, n)), nil

	case "antimove":
		attempts := intOption(opt["attempts"], 0)
		minutes := intOption(opt["minutes"], 0)
		if err := h.commander.SetAntiMove(ctx, guildID, attempts, time.Duration(minutes)*time.Minute); err != nil {
			return nil, err
		}
		return reply("Anti-move updated", fmt.Sprintf("Timeout for %d minutes after %d moves.", minutes, attempts)), nil

	case "wakeup-settings":
		moves := intOption(opt["moves"], 0)
		delay := time.Duration(intOption(opt["delay_ms"], 0)) * time.Millisecond
		if err := h.commander.SetWakeup(ctx, guildID, moves, delay); err != nil {
			return nil, err
		}
		return reply("Wakeup updated", fmt.Sprintf("Up to %d moves, %s apart.", moves, format.Duration(delay))), nil

	case "alerts":
		n := state.Notifications{
			DMAlerts:           boolOption(opt["dm"]),
			AdminRoleAlert:     boolOption(opt["admin_roles"]),
			ProtectedRoleAlert: boolOption(opt["protected_roles"]),
		}
		if err := h.commander.SetNotifications(ctx, guildID, n); err != nil {
			return nil, err
		}
		return reply("Alerts updated", fmt.Sprintf("DM alerts %s, admin role alerts %s, protected role alerts %s.",
			format.OnOff(n.DMAlerts), format.OnOff(n.AdminRoleAlert), format.OnOff(n.ProtectedRoleAlert))), nil

	default:
		return nil, fmt.Errorf("unknown subcommand %q", sub.Name)
	}
}

// handleWakeup defers the reply and edits it as the sequence progresses.
func (h *SlashCommandHandler) handleWakeup(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("failed to defer response", "error", err)
		return
	}

	userID := idOption(options(sub)["user"])
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), wakeupTimeout)
		defer cancel()

		res, err := h.commander.Wakeup(ctx, i.GuildID, userID, func(p voice.Progress) {
			h.editResponse(s, i, fmt.Sprintf("%s Waking %s: move %d/%d", format.EmojiAlarm, format.User(userID), p.Step, p.Total), nil)
		})
		if err != nil {
			h.editResponse(s, i, "Error: "+commandError(err), nil)
			return
		}
		h.editResponse(s, i, "", wakeupEmbed(userID, res))
	}()
}

func commandError(err error) string {
	switch {
	case errors.Is(err, voice.ErrProtectedTarget), errors.Is(err, protect.ErrProtectedTarget):
		return "You can not target yourself."
	case errors.Is(err, voice.ErrNotConnected):
		return "That member is not in a voice channel."
	case errors.Is(err, voice.ErrTooFewChannels):
		return "At least two voice channels the bot can move members into are required."
	case errors.Is(err, voice.ErrNotPrivate):
		return "That channel is not private."
	case errors.Is(err, protect.ErrAlreadyStripped):
		return "That member is already stripped."
	case errors.Is(err, protect.ErrNoSnapshot):
		return "That member has no stripped roles to restore."
	case errors.Is(err, state.ErrUnknownModule):
		return "Unknown module."
	case errors.Is(err, ErrBusy):
		return "A wakeup is already running for that member."
	default:
		return err.Error()
	}
}

// ErrBusy is returned when a conflicting operation is already running.
var ErrBusy = errors.New("operation already running")

func reply(title, description string) *discordgo.MessageEmbed {
	return format.Embed(format.Alert{
		Title:       title,
		Description: description,
		Severity:    format.SeverityInfo,
	})
}

func statusEmbed(st Status) *discordgo.MessageEmbed {
	var mods []string
	for _, m := range state.Modules {
		mods = append(mods, fmt.Sprintf("`%s` %s", m, format.OnOff(st.Modules[m])))
	}

	roles := make([]string, 0, len(st.ProtectedRoles))
	for _, r := range st.ProtectedRoles {
		roles = append(roles, format.Role(r))
	}
	locks := make([]string, 0, len(st.LockedChannels))
	for _, c := range st.LockedChannels {
		locks = append(locks, format.Channel(c))
	}
	chains := make([]string, 0, len(st.ActiveChains))
	for _, u := range st.ActiveChains {
		chains = append(chains, format.User(u))
	}
	spaces := make([]string, 0, len(st.PrivateSpaces))
	for _, c := range st.PrivateSpaces {
		spaces = append(spaces, format.Channel(c))
	}

	connection := "Disconnected"
	if st.Connected {
		connection = "Connected"
	}

	return format.Embed(format.Alert{
		Title:    "Protection status",
		Emoji:    format.EmojiShield,
		Severity: format.SeverityInfo,
		Fields: []format.Field{
			{Name: "Connection", Value: connection, Inline: true},
			{Name: "Uptime", Value: format.Duration(st.Uptime), Inline: true},
			{Name: "Pending alerts", Value: strconv.Itoa(st.PendingAlerts), Inline: true},
			{Name: "Modules", Value: strings.Join(mods, "\n")},
			{Name: "Protected roles", Value: format.List(roles, 10), Inline: true},
			{Name: "Locked channels", Value: format.List(locks, 10), Inline: true},
			{Name: "Chains", Value: format.List(chains, 10), Inline: true},
			{Name: "Private channels", Value: format.List(spaces, 10), Inline: true},
			{Name: "Anti-move", Value: fmt.Sprintf("%d moves, %s timeout", st.AntiMove.Threshold(), format.Duration(st.AntiMove.PunishmentDuration)), Inline: true},
			{Name: "Wakeup", Value: fmt.Sprintf("%d moves, %s apart", st.Wakeup.MovesCount, format.Duration(st.Wakeup.MoveDelay)), Inline: true},
		},
	})
}

func stripEmbed(title, userID string, res protect.StripResult) *discordgo.MessageEmbed {
	ok := make([]string, 0, len(res.Removed))
	for _, r := range res.Removed {
		ok = append(ok, format.Role(r))
	}
	failed := make([]string, 0, len(res.Failed))
	for _, r := range res.Failed {
		failed = append(failed, format.Role(r))
	}
	sev := format.SeverityInfo
	if len(failed) > 0 {
		sev = format.SeverityWarning
	}
	return format.Embed(format.Alert{
		Title:       title,
		Description: format.User(userID),
		Severity:    sev,
		Fields: []format.Field{
			{Name: "Done", Value: format.List(ok, 15), Inline: true},
			{Name: "Failed", Value: format.List(failed, 15), Inline: true},
		},
	})
}

func logsEmbed(entries []state.LogEntry) *discordgo.MessageEmbed {
	if len(entries) == 0 {
		return reply("Recent activity", "Nothing recorded yet.")
	}
	fields := make([]format.Field, 0, len(entries))
	for _, e := range entries {
		fields = append(fields, format.Field{
			Name:  fmt.Sprintf("%s <t:%d:R>", e.Type, e.Timestamp.Unix()),
			Value: logDetails(e.Details),
		})
	}
	return format.Embed(format.Alert{
		Title:    "Recent activity",
		Severity: format.SeverityInfo,
		Fields:   fields,
	})
}

func logDetails(d map[string]string) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+d[k])
	}
	if len(parts) == 0 {
		return "-"
	}
	return format.Truncate(strings.Join(parts, " "), 1000)
}

func wakeupEmbed(userID string, res voice.WakeupResult) *discordgo.MessageEmbed {
	outcome := "Returned to their channel."
	switch {
	case res.Halted:
		outcome = "Stopped early: they left voice."
	case !res.Returned:
		outcome = "Could not return them to their channel."
	}
	return format.Embed(format.Alert{
		Title:       "Wakeup finished",
		Description: format.User(userID) + "\n" + outcome,
		Emoji:       format.EmojiAlarm,
		Severity:    format.SeverityInfo,
		Fields: []format.Field{
			{Name: "Moves", Value: fmt.Sprintf("%d/%d", res.Performed, res.Planned), Inline: true},
		},
	})
}

func (h *SlashCommandHandler) respond(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	content string,
	embed *discordgo.MessageEmbed,
) {
	var embeds []*discordgo.MessageEmbed
	if embed != nil {
		embeds = []*discordgo.MessageEmbed{embed}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Embeds:  embeds,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("failed to respond to interaction", "error", err)
	}
}

func (h *SlashCommandHandler) editResponse(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	content string,
	embed *discordgo.MessageEmbed,
) {
	embeds := []*discordgo.MessageEmbed{}
	if embed != nil {
		embeds = []*discordgo.MessageEmbed{embed}
	}

	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &embeds,
	})
	if err != nil {
		h.logger.Error("failed to edit response", "error", err)
	}
}

func (h *SlashCommandHandler) respondError(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	message string,
) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Error: " + message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("failed to respond with error", "error", err)
	}
}

// RemoveCommands removes all registered commands for a guild.
func (h *SlashCommandHandler) RemoveCommands(guildID string) error {
	cmds, err := h.session.ApplicationCommands(h.session.State.User.ID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}

	for _, cmd := range cmds {
		if err := h.session.ApplicationCommandDelete(h.session.State.User.ID, guildID, cmd.ID); err != nil {
			h.logger.Warn("failed to delete command",
				"command", cmd.Name,
				"error", err)
		}
	}
	return nil
}
