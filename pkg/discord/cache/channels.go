package cache

import (
	"context"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/discord/snapshot"
	"github.com/small-frappuccino/discorddeck/pkg/errors"
	"github.com/small-frappuccino/discorddeck/pkg/errutil"
	"github.com/small-frappuccino/discorddeck/pkg/log"
)

// UncategorizedName titles the group of channels without a category.
const UncategorizedName = "Uncategorized"

// ChannelKind is how a browsable guild channel is shown.
type ChannelKind string

const (
	ChannelText         ChannelKind = "text"
	ChannelAnnouncement ChannelKind = "announcement"
	ChannelForum        ChannelKind = "forum"
)

// GuildChannel is one browsable channel. Forums carry their tag and active post counts;
// text channels carry the last message known to the cache.
type GuildChannel struct {
	ID          string
	Name        string
	Kind        ChannelKind
	Position    int
	Tags        int
	ActivePosts int
	LastMessage *snapshot.CachedMessage
}

// ChannelCategory groups channels under one category. ID is empty for uncategorized
// channels.
type ChannelCategory struct {
	ID       string
	Name     string
	Position int
	Channels []GuildChannel
}

// GroupChannels builds the browsable channel list: voice, stage and thread channels are
// dropped, channels are grouped by category and sorted by position. Uncategorized
// channels come first; categories without channels are omitted. threads are the guild's
// active threads, counted per forum.
func GroupChannels(channels, threads []*discordgo.Channel) []ChannelCategory {
	posts := make(map[string]int)
	for _, th := range threads {
		if th != nil {
			posts[th.ParentID]++
		}
	}

	categories := make(map[string]*ChannelCategory)
	for _, ch := range channels {
		if ch != nil && ch.Type == discordgo.ChannelTypeGuildCategory {
			categories[ch.ID] = &ChannelCategory{ID: ch.ID, Name: ch.Name, Position: ch.Position}
		}
	}
	uncategorized := &ChannelCategory{Name: UncategorizedName}

	for _, ch := range channels {
		if ch == nil {
			continue
		}
		kind, ok := browsableKind(ch.Type)
		if !ok {
			continue
		}
		gc := GuildChannel{ID: ch.ID, Name: ch.Name, Kind: kind, Position: ch.Position}
		if kind == ChannelForum {
			gc.Tags = len(ch.AvailableTags)
			gc.ActivePosts = posts[ch.ID]
		}
		group := uncategorized
		if cat, found := categories[ch.ParentID]; found {
			group = cat
		}
		group.Channels = append(group.Channels, gc)
	}

	out := make([]ChannelCategory, 0, len(categories)+1)
	for _, cat := range categories {
		if len(cat.Channels) > 0 {
			out = append(out, *cat)
		}
	}
	slices.SortFunc(out, func(a, b ChannelCategory) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return snapshot.CompareIDs(a.ID, b.ID)
	})
	if len(uncategorized.Channels) > 0 {
		out = append([]ChannelCategory{*uncategorized}, out...)
	}
	for i := range out {
		slices.SortStableFunc(out[i].Channels, func(a, b GuildChannel) int {
			if a.Position != b.Position {
				return a.Position - b.Position
			}
			return snapshot.CompareIDs(a.ID, b.ID)
		})
	}
	return out
}

func browsableKind(t discordgo.ChannelType) (ChannelKind, bool) {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return ChannelText, true
	case discordgo.ChannelTypeGuildNews:
		return ChannelAnnouncement, true
	case discordgo.ChannelTypeGuildForum:
		return ChannelForum, true
	}
	return "", false
}

// GuildChannels lists the guild's browsable channels by category. Active threads are
// fetched only when the guild has a forum; if that fetch fails the post counts stay zero.
func (cs *CachedSession) GuildChannels(ctx context.Context, guildID string) ([]ChannelCategory, error) {
	if !cs.live.IsReady() {
		return nil, errors.NewFetchError("cached_session", "guild_channels", guildID, errors.ErrNotConnected)
	}

	var channels []*discordgo.Channel
	if err := errutil.HandleDiscordError("fetch_guild_channels", func() error {
		var fetchErr error
		channels, fetchErr = cs.live.GuildChannels(ctx, guildID)
		return fetchErr
	}); err != nil {
		return nil, errors.NewFetchError("cached_session", "guild_channels", guildID, err)
	}

	var threads []*discordgo.Channel
	hasForum := slices.ContainsFunc(channels, func(ch *discordgo.Channel) bool {
		return ch != nil && ch.Type == discordgo.ChannelTypeGuildForum
	})
	if hasForum {
		var err error
		if threads, err = cs.live.ActiveThreads(ctx, guildID, ""); err != nil {
			log.DiscordLogger().Warn("Failed to fetch active threads", "guildID", guildID, "error", err)
			threads = nil
		}
	}

	groups := GroupChannels(channels, threads)
	index := cs.engine.LastMessages(ctx)
	for i := range groups {
		for j := range groups[i].Channels {
			ch := &groups[i].Channels[j]
			if last, ok := index[ch.ID]; ok && ch.Kind != ChannelForum {
				ch.LastMessage = &last
			}
		}
	}
	return groups, nil
}
