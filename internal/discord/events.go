package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/codeGROOVE-dev/warden/internal/platform"
)

// Subscribe translates gateway events into notifications and passes them to fn.
// Role snapshots are cached here so updates and deletions carry the prior state.
func (c *Client) Subscribe(fn func(platform.Notification)) {
	s := c.session

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildCreate) {
		if e.Guild == nil {
			return
		}
		c.cacheRoles(e.ID, e.Roles)
		c.logger.Info("guild available",
			"guild_id", e.ID,
			"name", e.Name,
			"roles", len(e.Roles),
			"voice_states", len(e.VoiceStates))
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
		if n, ok := voiceTransition(e); ok {
			fn(n)
		}
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberUpdate) {
		if n, ok := memberTransition(e); ok {
			fn(n)
		}
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildRoleCreate) {
		if e.GuildRole != nil && e.Role != nil {
			c.cacheRole(e.GuildID, toRole(e.Role))
		}
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildRoleUpdate) {
		if e.GuildRole == nil || e.Role == nil {
			return
		}
		after := toRole(e.Role)
		before, had := c.cacheRole(e.GuildID, after)
		fn(platform.RoleTransition{
			GuildID:   e.GuildID,
			Before:    before,
			After:     after,
			HasBefore: had,
		})
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildRoleDelete) {
		role, known := c.forgetRole(e.GuildID, e.RoleID)
		if !known {
			role = platform.Role{ID: e.RoleID}
		}
		fn(platform.RoleDeletion{GuildID: e.GuildID, Role: role, Known: known})
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.ChannelUpdate) {
		if n, ok := channelTransition(e); ok {
			fn(n)
		}
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberRemove) {
		if e.Member == nil || e.User == nil {
			return
		}
		fn(platform.MemberRemoval{GuildID: e.GuildID, UserID: e.User.ID})
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
		if e.Member == nil || e.User == nil {
			return
		}
		fn(platform.MemberJoin{GuildID: e.GuildID, UserID: e.User.ID})
	})

	s.AddHandler(func(_ *discordgo.Session, e *discordgo.MessageCreate) {
		if n, ok := message(e); ok {
			fn(n)
		}
	})
}

func voiceTransition(e *discordgo.VoiceStateUpdate) (platform.VoiceTransition, bool) {
	if e == nil || e.VoiceState == nil || e.GuildID == "" {
		return platform.VoiceTransition{}, false
	}
	vt := platform.VoiceTransition{
		GuildID: e.GuildID,
		UserID:  e.UserID,
		After:   voiceState(e.VoiceState),
	}
	if e.BeforeUpdate != nil {
		vt.Before = voiceState(e.BeforeUpdate)
		vt.HasBefore = true
	}
	return vt, true
}

func voiceState(vs *discordgo.VoiceState) platform.VoiceState {
	return platform.VoiceState{
		ChannelID: vs.ChannelID,
		Mute:      vs.Mute,
		Deaf:      vs.Deaf,
	}
}

func memberTransition(e *discordgo.GuildMemberUpdate) (platform.MemberTransition, bool) {
	if e == nil || e.Member == nil || e.User == nil {
		return platform.MemberTransition{}, false
	}
	mt := platform.MemberTransition{
		GuildID: e.GuildID,
		UserID:  e.User.ID,
		After:   memberState(e.Member),
	}
	if e.BeforeUpdate != nil {
		mt.Before = memberState(e.BeforeUpdate)
		mt.HasBefore = true
	}
	return mt, true
}

func memberState(m *discordgo.Member) platform.MemberState {
	return platform.MemberState{
		Nick:         m.Nick,
		Roles:        slices.Clone(m.Roles),
		TimeoutUntil: m.CommunicationDisabledUntil,
	}
}

func channelTransition(e *discordgo.ChannelUpdate) (platform.ChannelTransition, bool) {
	if e == nil || e.Channel == nil || e.GuildID == "" {
		return platform.ChannelTransition{}, false
	}
	ct := platform.ChannelTransition{
		GuildID:   e.GuildID,
		ChannelID: e.ID,
		AfterName: e.Name,
	}
	if e.BeforeUpdate != nil {
		ct.BeforeName = e.BeforeUpdate.Name
	}
	return ct, true
}

func message(e *discordgo.MessageCreate) (platform.Message, bool) {
	if e == nil || e.Message == nil || e.GuildID == "" || e.Author == nil {
		return platform.Message{}, false
	}
	msg := platform.Message{
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		MessageID: e.ID,
		AuthorID:  e.Author.ID,
		AuthorBot: e.Author.Bot,
	}
	for _, u := range e.Mentions {
		if u != nil {
			msg.Mentions = append(msg.Mentions, u.ID)
		}
	}
	return msg, true
}

func toRole(r *discordgo.Role) platform.Role {
	return platform.Role{
		ID:          r.ID,
		Name:        r.Name,
		Color:       r.Color,
		Permissions: r.Permissions,
		Position:    r.Position,
		Hoist:       r.Hoist,
		Mentionable: r.Mentionable,
		Managed:     r.Managed,
	}
}
