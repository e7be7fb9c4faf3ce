package snapshot

import (
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ProfileFromUser maps the live own-user object. A nil user maps to the zero profile.
func ProfileFromUser(u *discordgo.User) CachedUserProfile {
	if u == nil {
		return CachedUserProfile{}
	}
	return CachedUserProfile{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL(""),
	}
}

// ToDiscord returns a display-ready user carrying only what the snapshot holds.
// The avatar hash is not recoverable; use AvatarURL for display.
func (p CachedUserProfile) ToDiscord() *discordgo.User {
	return &discordgo.User{ID: p.ID, Username: p.Username}
}

// GuildFromDiscord maps one guild. Guilds without an icon keep an empty IconURL.
func GuildFromDiscord(g *discordgo.Guild) CachedGuild {
	if g == nil {
		return CachedGuild{}
	}
	return CachedGuild{ID: g.ID, Name: g.Name, IconURL: g.IconURL("")}
}

// GuildsFromDiscord maps a guild collection keeping fetch order. Nil entries are skipped.
func GuildsFromDiscord(guilds []*discordgo.Guild) []CachedGuild {
	out := make([]CachedGuild, 0, len(guilds))
	for _, g := range guilds {
		if g == nil {
			continue
		}
		out = append(out, GuildFromDiscord(g))
	}
	return out
}

func (g CachedGuild) ToDiscord() *discordgo.Guild {
	return &discordgo.Guild{ID: g.ID, Name: g.Name}
}

// MessageFromDiscord maps one message. Attachments are ordered by id; embeds and their
// fields keep source order.
func MessageFromDiscord(m *discordgo.Message) CachedMessage {
	if m == nil {
		return CachedMessage{}
	}
	out := CachedMessage{
		ID:               m.ID,
		ChannelID:        m.ChannelID,
		Content:          m.Content,
		CreatedTimestamp: createdMillis(m),
		Embeds:           make([]CachedEmbed, 0, len(m.Embeds)),
		Attachments:      make([]CachedAttachment, 0, len(m.Attachments)),
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorName = authorDisplayName(m.Author)
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		out.Embeds = append(out.Embeds, embedFromDiscord(e))
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		out.Attachments = append(out.Attachments, CachedAttachment{ID: a.ID, Name: a.Filename, URL: a.URL})
	}
	slices.SortFunc(out.Attachments, func(a, b CachedAttachment) int {
		return compareIDs(a.ID, b.ID)
	})
	return out
}

// MessagesFromDiscord maps a page keeping its order. Nil entries are skipped.
func MessagesFromDiscord(msgs []*discordgo.Message) []CachedMessage {
	out := make([]CachedMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, MessageFromDiscord(m))
	}
	return out
}

// ToDiscord rebuilds a display-ready message from the snapshot.
func (m CachedMessage) ToDiscord() *discordgo.Message {
	msg := &discordgo.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Created(),
		Author:    &discordgo.User{ID: m.AuthorID, Username: m.AuthorName},
	}
	for _, e := range m.Embeds {
		me := &discordgo.MessageEmbed{Title: e.Title, Description: e.Description, URL: e.URL}
		if e.Image != nil {
			me.Image = &discordgo.MessageEmbedImage{URL: e.Image.URL}
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
		}
		msg.Embeds = append(msg.Embeds, me)
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, &discordgo.MessageAttachment{ID: a.ID, Filename: a.Name, URL: a.URL})
	}
	return msg
}

// Created returns the creation time in UTC.
func (m CachedMessage) Created() time.Time {
	return time.UnixMilli(m.CreatedTimestamp).UTC()
}

// ThreadFromChannel maps an active forum thread. Creation time comes from the snowflake id.
func ThreadFromChannel(ch *discordgo.Channel) ThreadSummary {
	if ch == nil {
		return ThreadSummary{}
	}
	ts := ThreadSummary{ID: ch.ID, Name: ch.Name, OwnerID: ch.OwnerID}
	if t, err := discordgo.SnowflakeTimestamp(ch.ID); err == nil {
		ts.CreatedTimestamp = t.UnixMilli()
	}
	return ts
}

func embedFromDiscord(e *discordgo.MessageEmbed) CachedEmbed {
	out := CachedEmbed{
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Fields:      make([]CachedField, 0, len(e.Fields)),
	}
	if e.Image != nil && e.Image.URL != "" {
		out.Image = &CachedImage{URL: e.Image.URL}
	}
	for _, f := range e.Fields {
		if f == nil {
			continue
		}
		out.Fields = append(out.Fields, CachedField{Name: f.Name, Value: f.Value})
	}
	return out
}

func createdMillis(m *discordgo.Message) int64 {
	if !m.Timestamp.IsZero() {
		return m.Timestamp.UnixMilli()
	}
	if t, err := discordgo.SnowflakeTimestamp(m.ID); err == nil {
		return t.UnixMilli()
	}
	return 0
}

func authorDisplayName(u *discordgo.User) string {
	if name := strings.TrimSpace(u.GlobalName); name != "" {
		return name
	}
	return u.Username
}

// compareIDs orders snowflakes numerically: shorter decimal strings are smaller.
func compareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// CompareIDs exposes snowflake ordering to other packages.
func CompareIDs(a, b string) int { return compareIDs(a, b) }
