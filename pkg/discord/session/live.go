package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/discord/cache"
	"github.com/small-frappuccino/discorddeck/pkg/discord/perf"
	"github.com/small-frappuccino/discorddeck/pkg/log"
)

// userGuildsPageSize is the maximum page size of GET /users/@me/guilds.
const userGuildsPageSize = 200

// requestUserChannels fetches GET /users/@me/channels. Overridden in tests.
var requestUserChannels = func(ctx context.Context, s *discordgo.Session) ([]byte, error) {
	return s.RequestWithBucketID("GET", discordgo.EndpointUserChannels("@me"), nil, discordgo.EndpointUserChannels(""), discordgo.WithContext(ctx))
}

// Live adapts a discordgo.Session to cache.LiveSession.
type Live struct {
	session *discordgo.Session

	readyOnce   sync.Once
	readyCh     chan struct{}
	removeReady func()
}

var _ cache.LiveSession = (*Live)(nil)

// NewLive wraps s. Register it before s.Open so the Ready event is observed.
func NewLive(s *discordgo.Session) *Live {
	l := &Live{session: s, readyCh: make(chan struct{})}
	l.removeReady = s.AddHandler(l.onReady)
	if s.DataReady && s.State != nil && s.State.User != nil {
		l.markReady()
	}
	return l
}

// Session returns the wrapped session.
func (l *Live) Session() *discordgo.Session {
	return l.session
}

func (l *Live) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	user := ""
	if r != nil && r.User != nil {
		user = r.User.Username
	}
	log.DiscordLogger().Info("Discord session ready", "user", user)
	l.markReady()
}

func (l *Live) markReady() {
	l.readyOnce.Do(func() { close(l.readyCh) })
}

func (l *Live) Ready(ctx context.Context) error {
	select {
	case <-l.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Live) IsReady() bool {
	select {
	case <-l.readyCh:
		return true
	default:
		return false
	}
}

func (l *Live) OnMessageCreate(fn func(*discordgo.Message)) func() {
	return l.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Message == nil {
			return
		}
		done := perf.StartGatewayEvent("message_create", slog.String("channelID", m.ChannelID))
		defer done()
		fn(m.Message)
	})
}

func (l *Live) CurrentUser(ctx context.Context) (*discordgo.User, error) {
	return l.session.User("@me", discordgo.WithContext(ctx))
}

// Guilds lists every guild the account is in, paging the user-guilds endpoint.
func (l *Live) Guilds(ctx context.Context) ([]*discordgo.Guild, error) {
	var (
		out   []*discordgo.Guild
		after string
	)
	for {
		page, err := l.session.UserGuilds(userGuildsPageSize, "", after, false, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		out = append(out, guildsFromUserGuilds(page)...)
		if len(page) < userGuildsPageSize {
			return out, nil
		}
		after = page[len(page)-1].ID
	}
}

func (l *Live) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	return l.session.Guild(guildID, discordgo.WithContext(ctx))
}

// DirectMessageChannels prefers the private channels delivered with Ready and falls back
// to the REST listing.
func (l *Live) DirectMessageChannels(ctx context.Context) ([]*discordgo.Channel, error) {
	if st := l.session.State; st != nil {
		st.RLock()
		channels := append([]*discordgo.Channel(nil), st.PrivateChannels...)
		st.RUnlock()
		if len(channels) > 0 {
			return directOnly(channels), nil
		}
	}
	body, err := requestUserChannels(ctx, l.session)
	if err != nil {
		return nil, err
	}
	var channels []*discordgo.Channel
	if err := json.Unmarshal(body, &channels); err != nil {
		return nil, fmt.Errorf("decode user channels: %w", err)
	}
	log.DiscordLogger().Debug("Loaded DM channels over REST", "count", len(channels))
	return directOnly(channels), nil
}

func (l *Live) ChannelMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	return l.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
}

func (l *Live) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	return l.session.GuildChannels(guildID, discordgo.WithContext(ctx))
}

// ActiveThreads lists the guild's active threads whose parent is channelID, or all of
// them when channelID is empty.
func (l *Live) ActiveThreads(ctx context.Context, guildID, channelID string) ([]*discordgo.Channel, error) {
	list, err := l.session.GuildThreadsActive(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}
	if channelID == "" {
		return list.Threads, nil
	}
	return threadsInParent(list.Threads, channelID), nil
}

func (l *Live) SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error) {
	return l.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
}

// Close detaches handlers and closes the gateway connection.
func (l *Live) Close() error {
	l.detach()
	return closeSession(l.session)
}

func (l *Live) detach() {
	if l.removeReady != nil {
		l.removeReady()
		l.removeReady = nil
	}
}

func guildsFromUserGuilds(page []*discordgo.UserGuild) []*discordgo.Guild {
	out := make([]*discordgo.Guild, 0, len(page))
	for _, ug := range page {
		if ug == nil {
			continue
		}
		out = append(out, &discordgo.Guild{ID: ug.ID, Name: ug.Name, Icon: ug.Icon})
	}
	return out
}

func threadsInParent(threads []*discordgo.Channel, parentID string) []*discordgo.Channel {
	var out []*discordgo.Channel
	for _, th := range threads {
		if th != nil && th.ParentID == parentID {
			out = append(out, th)
		}
	}
	return out
}

func directOnly(channels []*discordgo.Channel) []*discordgo.Channel {
	out := make([]*discordgo.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if ch.Type == discordgo.ChannelTypeDM || ch.Type == discordgo.ChannelTypeGroupDM {
			out = append(out, ch)
		}
	}
	return out
}
