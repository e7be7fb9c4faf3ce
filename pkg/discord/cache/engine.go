package cache

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/discord/snapshot"
	"github.com/small-frappuccino/discorddeck/pkg/errors"
	"github.com/small-frappuccino/discorddeck/pkg/log"
	"github.com/small-frappuccino/discorddeck/pkg/storage"
)

// Engine owns read-through and gated write-through of cached snapshots.
type Engine struct {
	kv storage.KV

	// lastMu serializes read-modify-write of the last-message index.
	lastMu sync.Mutex
}

// NewEngine creates an engine over kv.
func NewEngine(kv storage.KV) *Engine {
	return &Engine{kv: kv}
}

// Store returns the underlying key-value store.
func (e *Engine) Store() storage.KV {
	return e.kv
}

// UserProfile returns the cached own-user profile.
func (e *Engine) UserProfile(ctx context.Context) (snapshot.CachedUserProfile, bool) {
	return readSnapshot[snapshot.CachedUserProfile](ctx, e.kv, KeyUserProfile)
}

// Guilds returns the cached guild collection in fetch order.
func (e *Engine) Guilds(ctx context.Context) ([]snapshot.CachedGuild, bool) {
	return readSnapshot[[]snapshot.CachedGuild](ctx, e.kv, KeyGuilds)
}

// Messages returns the cached first page of a conversation, newest first.
func (e *Engine) Messages(ctx context.Context, conversationID string) ([]snapshot.CachedMessage, bool) {
	return readSnapshot[[]snapshot.CachedMessage](ctx, e.kv, MessagesKey(conversationID))
}

// LastMessages returns the last-message index. A miss yields an empty, non-nil index.
func (e *Engine) LastMessages(ctx context.Context) snapshot.LastMessageIndex {
	idx, ok := readSnapshot[snapshot.LastMessageIndex](ctx, e.kv, KeyLastMessages)
	if !ok || idx == nil {
		return snapshot.LastMessageIndex{}
	}
	return idx
}

// LastMessage returns the most recent known message of one conversation.
func (e *Engine) LastMessage(ctx context.Context, conversationID string) (snapshot.CachedMessage, bool) {
	m, ok := e.LastMessages(ctx)[conversationID]
	return m, ok
}

// SaveUserProfile stores the profile if it differs from the cached one.
func (e *Engine) SaveUserProfile(ctx context.Context, u *discordgo.User) (bool, error) {
	return e.save(ctx, KeyUserProfile, snapshot.ProfileFromUser(u))
}

// SaveGuilds stores the whole guild collection as one record if anything in it changed.
func (e *Engine) SaveGuilds(ctx context.Context, guilds []*discordgo.Guild) (bool, error) {
	return e.SaveGuildSnapshots(ctx, snapshot.GuildsFromDiscord(guilds))
}

func (e *Engine) SaveGuildSnapshots(ctx context.Context, guilds []snapshot.CachedGuild) (bool, error) {
	if guilds == nil {
		guilds = []snapshot.CachedGuild{}
	}
	return e.save(ctx, KeyGuilds, guilds)
}

// SaveMessages stores a conversation's newest page (newest first) and records its head
// message in the last-message index.
func (e *Engine) SaveMessages(ctx context.Context, conversationID string, msgs []*discordgo.Message) (bool, error) {
	return e.SaveMessageSnapshots(ctx, conversationID, snapshot.MessagesFromDiscord(msgs))
}

func (e *Engine) SaveMessageSnapshots(ctx context.Context, conversationID string, msgs []snapshot.CachedMessage) (bool, error) {
	if msgs == nil {
		msgs = []snapshot.CachedMessage{}
	}
	changed, err := e.save(ctx, MessagesKey(conversationID), msgs)
	if err != nil {
		return false, err
	}
	if len(msgs) > 0 {
		if _, lastErr := e.saveLast(ctx, conversationID, msgs[0]); lastErr != nil {
			log.DatabaseLogger().Warn("Failed to update last-message index", "conversation", conversationID, "error", lastErr)
		}
	}
	return changed, nil
}

// SaveLastMessage records m as the latest message of its channel unless a newer one is
// already indexed.
func (e *Engine) SaveLastMessage(ctx context.Context, m *discordgo.Message) (bool, error) {
	if m == nil || m.ChannelID == "" {
		return false, nil
	}
	return e.saveLast(ctx, m.ChannelID, snapshot.MessageFromDiscord(m))
}

func (e *Engine) saveLast(ctx context.Context, conversationID string, m snapshot.CachedMessage) (bool, error) {
	e.lastMu.Lock()
	defer e.lastMu.Unlock()

	idx := e.LastMessages(ctx)
	if cur, ok := idx[conversationID]; ok && snapshot.CompareIDs(cur.ID, m.ID) > 0 {
		return false, nil
	}
	idx[conversationID] = m
	return e.save(ctx, KeyLastMessages, idx)
}

// TrackLastMessages keeps the last-message index current from pushed messages until the
// returned release func is called.
func (e *Engine) TrackLastMessages(live LiveSession) (release func()) {
	return live.OnMessageCreate(func(m *discordgo.Message) {
		if _, err := e.SaveLastMessage(context.Background(), m); err != nil {
			log.DatabaseLogger().Warn("Failed to track last message", "channelID", m.ChannelID, "error", err)
		}
	})
}

// save serializes v and writes it under key only when the gate reports a change.
func (e *Engine) save(ctx context.Context, key string, v any) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, errors.NewStoreError("cache", "encode", key, err)
	}

	var prev []byte
	stored, ok, err := e.kv.Get(ctx, key)
	if err != nil {
		log.DatabaseLogger().Warn("Cache read before write failed, writing unconditionally", "key", key, "error", err)
	} else if ok {
		prev = []byte(stored)
	}

	if !IsChanged(data, prev) {
		log.DatabaseLogger().Debug("Snapshot unchanged, skipping write", "key", key)
		return false, nil
	}
	if err := e.kv.Set(ctx, key, string(data)); err != nil {
		return false, errors.NewStoreError("cache", "set", key, err)
	}
	log.DatabaseLogger().Debug("Snapshot written", "key", key, "bytes", len(data))
	return true, nil
}

// readSnapshot decodes the value at key. Store and decode failures are logged and
// reported as a miss.
func readSnapshot[T any](ctx context.Context, kv storage.KV, key string) (T, bool) {
	var zero T
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		log.DatabaseLogger().Warn("Cache read failed", "key", key, "error", err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		log.DatabaseLogger().Warn("Discarding unreadable cached snapshot", "key", key, "error", err)
		return zero, false
	}
	return v, true
}
