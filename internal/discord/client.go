// Package discord provides Discord API client functionality.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/warden/internal/platform"
)

// Discord JSON error codes.
const (
	codeUnknownChannel     = 10003
	codeUnknownMember      = 10007
	codeUnknownMessage     = 10008
	codeUnknownRole        = 10011
	codeUnknownBan         = 10026
	codeMissingPermissions = 50013
)

const (
	inviteMaxAge = 3600
	inviteScheme = "https://discord.gg/"
)

// Client wraps discordgo.Session with the mutations and lookups the
// protection engine needs. Mutations carry an audit-log reason.
type Client struct {
	session *discordgo.Session
	logger  *slog.Logger
	roles   map[string]map[string]platform.Role // guild ID -> role ID -> role
	mu      sync.RWMutex
}

// New creates a new Discord client.
func New(token string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages
	session.StateEnabled = true
	session.State.TrackVoice = true
	session.State.TrackMembers = true
	session.State.TrackRoles = true
	session.State.TrackChannels = true

	return &Client{
		session: session,
		logger:  logger,
		roles:   make(map[string]map[string]platform.Role),
	}, nil
}

// retryableCtx wraps a function with standard retry configuration.
// Only lookups are retried; a failed correction is abandoned.
func retryableCtx(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			c := classify(err)
			return !errors.Is(c, platform.ErrNotFound) && !errors.Is(c, platform.ErrPermissionDenied)
		}),
	)
}

// classify maps Discord REST failures onto the platform error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}

	code := 0
	if restErr.Message != nil {
		code = restErr.Message.Code
	}
	status := 0
	if restErr.Response != nil {
		status = restErr.Response.StatusCode
	}

	switch {
	case code == codeMissingPermissions || status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", platform.ErrPermissionDenied, err)
	case status == http.StatusNotFound,
		code == codeUnknownChannel,
		code == codeUnknownMember,
		code == codeUnknownMessage,
		code == codeUnknownRole,
		code == codeUnknownBan:
		return fmt.Errorf("%w: %w", platform.ErrNotFound, err)
	default:
		return err
	}
}

func opts(ctx context.Context, reason string) []discordgo.RequestOption {
	o := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		o = append(o, discordgo.WithAuditLogReason(reason))
	}
	return o
}

// openTimeout is the maximum time to wait for Discord connection.
const openTimeout = 30 * time.Second

// Open opens the WebSocket connection to Discord with a timeout.
func (c *Client) Open() error {
	done := make(chan error, 1)
	go func() {
		done <- c.session.Open()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(openTimeout):
		c.session.Close() //nolint:errcheck,gosec // best-effort close on timeout
		return errors.New("timeout waiting for Discord connection")
	}
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	return c.session.Close()
}

// Session returns the underlying discordgo session.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// BotUserID returns the bot's user ID, or "" before the session is ready.
func (c *Client) BotUserID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

// SetMute sets or clears server mute.
func (c *Client) SetMute(ctx context.Context, guildID, userID string, mute bool, reason string) error {
	if err := c.session.GuildMemberMute(guildID, userID, mute, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("set mute: %w", classify(err))
	}
	return nil
}

// SetDeaf sets or clears server deafen.
func (c *Client) SetDeaf(ctx context.Context, guildID, userID string, deaf bool, reason string) error {
	if err := c.session.GuildMemberDeafen(guildID, userID, deaf, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("set deafen: %w", classify(err))
	}
	return nil
}

// Timeout sets a member's timeout. A nil until clears it.
func (c *Client) Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	if err := c.session.GuildMemberTimeout(guildID, userID, until, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("set timeout: %w", classify(err))
	}
	return nil
}

// AddRole grants a role.
func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	if err := c.session.GuildMemberRoleAdd(guildID, userID, roleID, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("add role %s: %w", roleID, classify(err))
	}
	return nil
}

// RemoveRole revokes a role.
func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	if err := c.session.GuildMemberRoleRemove(guildID, userID, roleID, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("remove role %s: %w", roleID, classify(err))
	}
	return nil
}

// SetNickname sets a member's nickname. An empty nick resets it.
func (c *Client) SetNickname(ctx context.Context, guildID, userID, nick, reason string) error {
	if err := c.session.GuildMemberNickname(guildID, userID, nick, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("set nickname: %w", classify(err))
	}
	return nil
}

// Move relocates a member to channelID. An empty channelID disconnects.
func (c *Client) Move(ctx context.Context, guildID, userID, channelID, reason string) error {
	var dest *string
	if channelID != "" {
		dest = &channelID
	}
	if err := c.session.GuildMemberMove(guildID, userID, dest, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("move member: %w", classify(err))
	}
	return nil
}

// RenameChannel sets a channel's name.
func (c *Client) RenameChannel(ctx context.Context, channelID, name, reason string) error {
	if _, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("rename channel: %w", classify(err))
	}
	return nil
}

// SetRolePermissions replaces a role's permission set.
func (c *Client) SetRolePermissions(ctx context.Context, guildID, roleID string, perms int64, reason string) error {
	if _, err := c.session.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{Permissions: &perms}, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("edit role permissions: %w", classify(err))
	}
	return nil
}

// CreateRole recreates a role from a snapshot and returns its new ID.
// Restoring the position is best-effort.
func (c *Client) CreateRole(ctx context.Context, guildID string, role platform.Role, reason string) (string, error) {
	color := role.Color
	hoist := role.Hoist
	perms := role.Permissions
	mentionable := role.Mentionable
	created, err := c.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        role.Name,
		Color:       &color,
		Hoist:       &hoist,
		Permissions: &perms,
		Mentionable: &mentionable,
	}, opts(ctx, reason)...)
	if err != nil {
		return "", fmt.Errorf("create role: %w", classify(err))
	}
	c.cacheRole(guildID, toRole(created))

	if role.Position > 0 {
		created.Position = role.Position
		if _, err := c.session.GuildRoleReorder(guildID, []*discordgo.Role{created}, opts(ctx, reason)...); err != nil {
			c.logger.Warn("failed to restore role position",
				"guild_id", guildID,
				"role_id", created.ID,
				"position", role.Position,
				"error", err)
		}
	}
	return created.ID, nil
}

// IsBanned reports whether userID is banned.
func (c *Client) IsBanned(ctx context.Context, guildID, userID string) (bool, error) {
	_, err := c.session.GuildBan(guildID, userID, discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	err = classify(err)
	if errors.Is(err, platform.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("get ban: %w", err)
}

// Unban lifts a ban.
func (c *Client) Unban(ctx context.Context, guildID, userID, reason string) error {
	if err := c.session.GuildBanDelete(guildID, userID, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("remove ban: %w", classify(err))
	}
	return nil
}

// CreateInvite creates a single-use invite in the guild's system channel,
// falling back to the first text channel the bot can invite to.
func (c *Client) CreateInvite(ctx context.Context, guildID, reason string) (string, error) {
	channelID, err := c.inviteChannel(ctx, guildID)
	if err != nil {
		return "", err
	}
	inv, err := c.session.ChannelInviteCreate(channelID, discordgo.Invite{
		MaxAge:  inviteMaxAge,
		MaxUses: 1,
		Unique:  true,
	}, opts(ctx, reason)...)
	if err != nil {
		return "", fmt.Errorf("create invite: %w", classify(err))
	}
	return inviteScheme + inv.Code, nil
}

func (c *Client) inviteChannel(ctx context.Context, guildID string) (string, error) {
	if g, err := c.session.State.Guild(guildID); err == nil && g.SystemChannelID != "" {
		return g.SystemChannelID, nil
	}

	var channels []*discordgo.Channel
	err := retryableCtx(ctx, func() error {
		var err error
		channels, err = c.session.GuildChannels(guildID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("list channels: %w", classify(err))
	}

	botID := c.BotUserID()
	for _, ch := range sortedChannels(channels, discordgo.ChannelTypeGuildText) {
		perms, err := c.session.UserChannelPermissions(botID, ch.ID)
		if err == nil && perms&discordgo.PermissionCreateInstantInvite != 0 {
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("no channel to invite from: %w", platform.ErrPermissionDenied)
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID, reason string) error {
	if err := c.session.ChannelMessageDelete(channelID, messageID, opts(ctx, reason)...); err != nil {
		return fmt.Errorf("delete message: %w", classify(err))
	}
	return nil
}

// Member returns a member's protection-relevant state, preferring the gateway cache.
func (c *Client) Member(ctx context.Context, guildID, userID string) (platform.MemberState, error) {
	if m, err := c.session.State.Member(guildID, userID); err == nil {
		return memberState(m), nil
	}

	var m *discordgo.Member
	err := retryableCtx(ctx, func() error {
		var err error
		m, err = c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return platform.MemberState{}, fmt.Errorf("get member: %w", classify(err))
	}
	return memberState(m), nil
}

// Role returns a role's attributes, preferring the snapshot cache.
func (c *Client) Role(ctx context.Context, guildID, roleID string) (platform.Role, error) {
	if r, ok := c.cachedRole(guildID, roleID); ok {
		return r, nil
	}

	var roles []*discordgo.Role
	err := retryableCtx(ctx, func() error {
		var err error
		roles, err = c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return platform.Role{}, fmt.Errorf("list roles: %w", classify(err))
	}
	c.cacheRoles(guildID, roles)

	if r, ok := c.cachedRole(guildID, roleID); ok {
		return r, nil
	}
	return platform.Role{}, fmt.Errorf("role %s: %w", roleID, platform.ErrNotFound)
}

// ChannelName returns a channel's current name, preferring the gateway cache.
func (c *Client) ChannelName(ctx context.Context, channelID string) (string, error) {
	if ch, err := c.session.State.Channel(channelID); err == nil {
		return ch.Name, nil
	}

	var ch *discordgo.Channel
	err := retryableCtx(ctx, func() error {
		var err error
		ch, err = c.session.Channel(channelID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("get channel: %w", classify(err))
	}
	return ch.Name, nil
}

// Connected reports whether the gateway session is ready.
func (c *Client) Connected() bool {
	return c.session.DataReady
}

// VoiceChannelOf returns the member's current voice channel from the gateway cache.
func (c *Client) VoiceChannelOf(_ context.Context, guildID, userID string) string {
	vs, err := c.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// VoiceMembers returns the members connected to a voice channel.
func (c *Client) VoiceMembers(_ context.Context, guildID, channelID string) []string {
	g, err := c.session.State.Guild(guildID)
	if err != nil {
		return nil
	}
	c.session.State.RLock()
	defer c.session.State.RUnlock()

	var ids []string
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			ids = append(ids, vs.UserID)
		}
	}
	slices.Sort(ids)
	return ids
}

// MoveTargets returns the voice channels the bot can move members into, in guild order.
func (c *Client) MoveTargets(ctx context.Context, guildID string) ([]string, error) {
	var channels []*discordgo.Channel
	err := retryableCtx(ctx, func() error {
		var err error
		channels, err = c.session.GuildChannels(guildID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", classify(err))
	}

	const need = discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceMoveMembers
	botID := c.BotUserID()
	var ids []string
	for _, ch := range sortedChannels(channels, discordgo.ChannelTypeGuildVoice) {
		perms, err := c.session.UserChannelPermissions(botID, ch.ID)
		if err != nil {
			c.logger.Debug("failed to check channel permissions", "channel_id", ch.ID, "error", err)
			continue
		}
		if perms&need == need {
			ids = append(ids, ch.ID)
		}
	}
	return ids, nil
}

func sortedChannels(channels []*discordgo.Channel, typ discordgo.ChannelType) []*discordgo.Channel {
	var out []*discordgo.Channel
	for _, ch := range channels {
		if ch.Type == typ {
			out = append(out, ch)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// AuditEntries fetches the newest audit-log entries of one action type.
func (c *Client) AuditEntries(ctx context.Context, guildID string, action, limit int) ([]platform.AuditEntry, error) {
	var log *discordgo.GuildAuditLog
	err := retryableCtx(ctx, func() error {
		var err error
		log, err = c.session.GuildAuditLog(guildID, "", "", action, limit, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch audit log: %w", classify(err))
	}

	entries := make([]platform.AuditEntry, 0, len(log.AuditLogEntries))
	for _, e := range log.AuditLogEntries {
		if e == nil {
			continue
		}
		entries = append(entries, auditEntry(e))
	}
	return entries, nil
}

func auditEntry(e *discordgo.AuditLogEntry) platform.AuditEntry {
	out := platform.AuditEntry{
		ID:       e.ID,
		ActorID:  e.UserID,
		TargetID: e.TargetID,
		Reason:   e.Reason,
	}
	if ts, err := discordgo.SnowflakeTimestamp(e.ID); err == nil {
		out.CreatedAt = ts
	}
	if e.Options != nil {
		out.ChannelID = e.Options.ChannelID
	}
	for _, ch := range e.Changes {
		if ch != nil && ch.Key != nil {
			out.Changes = append(out.Changes, string(*ch.Key))
		}
	}
	return out
}

// SendAlert delivers an embed to a user by DM.
func (c *Client) SendAlert(ctx context.Context, userID string, embed *discordgo.MessageEmbed) error {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create DM channel: %w", classify(err))
	}
	msg, err := c.session.ChannelMessageSendEmbed(ch.ID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send DM: %w", classify(err))
	}

	c.logger.Info("sent alert DM",
		"user_id", userID,
		"channel_id", ch.ID,
		"message_id", msg.ID,
		"title", embed.Title)
	return nil
}

func (c *Client) cacheRoles(guildID string, roles []*discordgo.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := make(map[string]platform.Role, len(roles))
	for _, r := range roles {
		if r != nil {
			m[r.ID] = toRole(r)
		}
	}
	c.roles[guildID] = m
}

// cacheRole stores a role and returns the previous snapshot.
func (c *Client) cacheRole(guildID string, r platform.Role) (platform.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.roles[guildID]
	if !ok {
		m = make(map[string]platform.Role)
		c.roles[guildID] = m
	}
	prev, had := m[r.ID]
	m[r.ID] = r
	return prev, had
}

func (c *Client) cachedRole(guildID, roleID string) (platform.Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.roles[guildID][roleID]
	return r, ok
}

// forgetRole drops a role and returns its last snapshot.
func (c *Client) forgetRole(guildID, roleID string) (platform.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.roles[guildID][roleID]
	delete(c.roles[guildID], roleID)
	return r, ok
}
