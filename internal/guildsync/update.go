// Package guildsync reports guild metadata to the registration service when
// the bot joins a guild and on a periodic refresh.
package guildsync

import (
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
)

const (
	jumpURLBase  = "https://discord.com/channels/"
	iconSizeFull = "1024"
)

// Snapshot copies the guild fields BuildUpdate reads, so the copy stays
// usable after the cache lock is released. The caller holds the lock that
// guards g.
func Snapshot(g *discordgo.Guild) *discordgo.Guild {
	c := *g
	c.Channels = make([]*discordgo.Channel, 0, len(g.Channels))
	for _, ch := range g.Channels {
		if ch != nil {
			cp := *ch
			c.Channels = append(c.Channels, &cp)
		}
	}
	c.Roles = make([]*discordgo.Role, 0, len(g.Roles))
	for _, r := range g.Roles {
		if r != nil {
			cp := *r
			c.Roles = append(c.Roles, &cp)
		}
	}
	c.Members = nil
	c.Presences = nil
	c.VoiceStates = nil
	c.Threads = nil
	c.Emojis = nil
	c.Stickers = nil
	return &c
}

// BuildUpdate maps a guild to the payload posted to the registration
// service. Channel and role order follows the guild's positions. g must not
// be shared with a live gateway cache; pass a Snapshot.
func BuildUpdate(g *discordgo.Guild, status registration.GuildUpdateStatus, ownerName string) registration.GuildUpdate {
	update := registration.GuildUpdate{
		Status:        status,
		GuildID:       g.ID,
		GuildName:     g.Name,
		OwnerName:     ownerName,
		OwnerID:       g.OwnerID,
		Categories:    []registration.GuildCategory{},
		Channels:      []registration.GuildChannel{},
		Roles:         []registration.GuildRole{},
		JumpURL:       jumpURLBase + g.ID,
		Large:         g.Large,
		DefaultRoleID: g.ID,
	}
	if g.MemberCount > 0 {
		count := g.MemberCount
		update.MemberCount = &count
	}
	if g.Icon != "" {
		update.IconURL = g.IconURL(iconSizeFull)
	}
	if birthday, ok := Birthday(g.ID); ok {
		update.GuildBirthday = &birthday
	}

	channels := sortedChannels(g.Channels)
	children := map[string][]registration.GuildChannel{}
	for _, ch := range channels {
		update.Channels = append(update.Channels, registration.GuildChannel{ID: ch.ID, Name: ch.Name})
		if ch.ParentID != "" && ch.Type != discordgo.ChannelTypeGuildCategory {
			children[ch.ParentID] = append(children[ch.ParentID], registration.GuildChannel{ID: ch.ID, Name: ch.Name})
		}
	}
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildCategory {
			continue
		}
		sub := children[ch.ID]
		if sub == nil {
			sub = []registration.GuildChannel{}
		}
		update.Categories = append(update.Categories, registration.GuildCategory{ID: ch.ID, Name: ch.Name, Channels: sub})
	}

	roles := make([]*discordgo.Role, 0, len(g.Roles))
	for _, r := range g.Roles {
		if r != nil {
			roles = append(roles, r)
		}
	}
	sort.SliceStable(roles, func(a, b int) bool { return roles[a].Position < roles[b].Position })
	for _, r := range roles {
		update.Roles = append(update.Roles, registration.GuildRole{ID: r.ID, Name: r.Name})
	}
	return update
}

// sortedChannels drops threads and orders the rest by position.
func sortedChannels(in []*discordgo.Channel) []*discordgo.Channel {
	out := make([]*discordgo.Channel, 0, len(in))
	for _, ch := range in {
		if ch == nil || ch.IsThread() {
			continue
		}
		out = append(out, ch)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Position < out[b].Position })
	return out
}

// Birthday returns the guild creation time encoded in its snowflake.
func Birthday(guildID string) (time.Time, bool) {
	t, err := discordgo.SnowflakeTimestamp(guildID)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
