package cache

import (
	"context"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/discord/snapshot"
	"github.com/small-frappuccino/discorddeck/pkg/errors"
	"github.com/small-frappuccino/discorddeck/pkg/errutil"
)

// CachedSession serves cached snapshots immediately and then reconciles them with the
// live session through the engine's change gate.
type CachedSession struct {
	engine *Engine
	live   LiveSession
}

// NewCachedSession creates a read-through wrapper around live.
func NewCachedSession(engine *Engine, live LiveSession) *CachedSession {
	return &CachedSession{engine: engine, live: live}
}

func (cs *CachedSession) Engine() *Engine {
	return cs.engine
}

func (cs *CachedSession) Live() LiveSession {
	return cs.live
}

// Profile hands any cached profile to onCached, then fetches and stores the live one.
// changed reports whether the store was written.
func (cs *CachedSession) Profile(ctx context.Context, onCached func(snapshot.CachedUserProfile)) (profile snapshot.CachedUserProfile, changed bool, err error) {
	if cached, ok := cs.engine.UserProfile(ctx); ok && onCached != nil {
		onCached(cached)
	}
	if !cs.live.IsReady() {
		return snapshot.CachedUserProfile{}, false, errors.NewFetchError("cached_session", "profile", KeyUserProfile, errors.ErrNotConnected)
	}

	var u *discordgo.User
	if err := errutil.HandleDiscordError("fetch_profile", func() error {
		var fetchErr error
		u, fetchErr = cs.live.CurrentUser(ctx)
		return fetchErr
	}); err != nil {
		return snapshot.CachedUserProfile{}, false, errors.NewFetchError("cached_session", "profile", KeyUserProfile, err)
	}

	changed, err = cs.engine.SaveUserProfile(ctx, u)
	return snapshot.ProfileFromUser(u), changed, err
}

// GuildList hands any cached guild collection to onCached, then fetches and stores the
// live collection wholesale.
func (cs *CachedSession) GuildList(ctx context.Context, onCached func([]snapshot.CachedGuild)) (guilds []snapshot.CachedGuild, changed bool, err error) {
	if cached, ok := cs.engine.Guilds(ctx); ok && onCached != nil {
		onCached(cached)
	}
	if !cs.live.IsReady() {
		return nil, false, errors.NewFetchError("cached_session", "guilds", KeyGuilds, errors.ErrNotConnected)
	}

	var live []*discordgo.Guild
	if err := errutil.HandleDiscordError("fetch_guilds", func() error {
		var fetchErr error
		live, fetchErr = cs.live.Guilds(ctx)
		return fetchErr
	}); err != nil {
		return nil, false, errors.NewFetchError("cached_session", "guilds", KeyGuilds, err)
	}

	guilds = snapshot.GuildsFromDiscord(live)
	changed, err = cs.engine.SaveGuildSnapshots(ctx, guilds)
	return guilds, changed, err
}

// DirectMessage is one DM conversation with its cached preview.
type DirectMessage struct {
	ChannelID     string
	RecipientID   string
	RecipientName string
	// LastMessageID is the channel's latest message id as reported by Discord.
	LastMessageID string
	LastMessage   *snapshot.CachedMessage
}

// DirectMessages lists the session's DM conversations, most recently active first,
// each with the last message known to the cache.
func (cs *CachedSession) DirectMessages(ctx context.Context) ([]DirectMessage, error) {
	if !cs.live.IsReady() {
		return nil, errors.NewFetchError("cached_session", "direct_messages", "", errors.ErrNotConnected)
	}

	var channels []*discordgo.Channel
	if err := errutil.HandleDiscordError("fetch_dm_channels", func() error {
		var fetchErr error
		channels, fetchErr = cs.live.DirectMessageChannels(ctx)
		return fetchErr
	}); err != nil {
		return nil, errors.NewFetchError("cached_session", "direct_messages", "", err)
	}

	index := cs.engine.LastMessages(ctx)
	out := make([]DirectMessage, 0, len(channels))
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		dm := DirectMessage{ChannelID: ch.ID, RecipientName: ch.Name, LastMessageID: ch.LastMessageID}
		if len(ch.Recipients) > 0 && ch.Recipients[0] != nil {
			r := ch.Recipients[0]
			dm.RecipientID = r.ID
			dm.RecipientName = r.Username
			if r.GlobalName != "" {
				dm.RecipientName = r.GlobalName
			}
		}
		if last, ok := index[ch.ID]; ok {
			dm.LastMessage = &last
		}
		out = append(out, dm)
	}

	slices.SortStableFunc(out, func(a, b DirectMessage) int {
		return snapshot.CompareIDs(activityID(b), activityID(a))
	})
	return out, nil
}

func activityID(dm DirectMessage) string {
	id := dm.ChannelID
	if snapshot.CompareIDs(dm.LastMessageID, id) > 0 {
		id = dm.LastMessageID
	}
	if dm.LastMessage != nil && snapshot.CompareIDs(dm.LastMessage.ID, id) > 0 {
		id = dm.LastMessage.ID
	}
	return id
}
