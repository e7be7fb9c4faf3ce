package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/storage"
)

// spyKV counts writes per key on top of an in-memory store.
type spyKV struct {
	*storage.MemoryStore
	mu   sync.Mutex
	sets map[string]int
}

func newSpyKV() *spyKV {
	return &spyKV{MemoryStore: storage.NewMemoryStore(), sets: make(map[string]int)}
}

func (s *spyKV) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.sets[key]++
	s.mu.Unlock()
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *spyKV) setCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[key]
}

// fakeSession is a scripted LiveSession.
type fakeSession struct {
	mu       sync.Mutex
	ready    bool
	readyErr error
	// readyGate, when set, blocks Ready until closed.
	readyGate chan struct{}

	user     *discordgo.User
	guilds   []*discordgo.Guild
	details  map[string]*discordgo.Guild
	dms      []*discordgo.Channel
	threads  map[string][]*discordgo.Channel
	channels map[string][]*discordgo.Channel // by guild
	history  map[string][]*discordgo.Message // newest first
	fetchErr map[string]error

	// onGuildFetch runs inside every Guild call.
	onGuildFetch func(id string)
	// onMessagesFetch runs inside every ChannelMessages call.
	onMessagesFetch func(channelID string)
	// onListFetch runs inside CurrentUser ("@me"), Guilds ("guilds") and
	// DirectMessageChannels ("dms") before the scripted error is returned.
	onListFetch func(key string)

	handlers    map[int]func(*discordgo.Message)
	nextHandler int

	guildCalls    int
	messageCalls  map[string]int
	messageBefore []string
	sent          []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		ready:        true,
		details:      make(map[string]*discordgo.Guild),
		threads:      make(map[string][]*discordgo.Channel),
		channels:     make(map[string][]*discordgo.Channel),
		history:      make(map[string][]*discordgo.Message),
		fetchErr:     make(map[string]error),
		handlers:     make(map[int]func(*discordgo.Message)),
		messageCalls: make(map[string]int),
	}
}

func (f *fakeSession) Ready(ctx context.Context) error {
	f.mu.Lock()
	gate, err, ready := f.readyGate, f.readyErr, f.ready
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	if !ready {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeSession) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeSession) OnMessageCreate(fn func(*discordgo.Message)) func() {
	f.mu.Lock()
	id := f.nextHandler
	f.nextHandler++
	f.handlers[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}
}

func (f *fakeSession) push(m *discordgo.Message) {
	f.mu.Lock()
	hs := make([]func(*discordgo.Message), 0, len(f.handlers))
	for _, h := range f.handlers {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(m)
	}
}

func (f *fakeSession) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeSession) CurrentUser(context.Context) (*discordgo.User, error) {
	f.listHook("@me")
	if err := f.fetchErr["@me"]; err != nil {
		return nil, err
	}
	return f.user, nil
}

func (f *fakeSession) Guilds(context.Context) ([]*discordgo.Guild, error) {
	f.listHook("guilds")
	if err := f.fetchErr["guilds"]; err != nil {
		return nil, err
	}
	return f.guilds, nil
}

func (f *fakeSession) listHook(key string) {
	f.mu.Lock()
	hook := f.onListFetch
	f.mu.Unlock()
	if hook != nil {
		hook(key)
	}
}

func (f *fakeSession) Guild(_ context.Context, id string) (*discordgo.Guild, error) {
	f.mu.Lock()
	f.guildCalls++
	hook := f.onGuildFetch
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	if err := f.fetchErr["guild:"+id]; err != nil {
		return nil, err
	}
	g, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("missing guild %s", id)
	}
	return g, nil
}

func (f *fakeSession) DirectMessageChannels(context.Context) ([]*discordgo.Channel, error) {
	f.listHook("dms")
	if err := f.fetchErr["dms"]; err != nil {
		return nil, err
	}
	return f.dms, nil
}

func (f *fakeSession) ChannelMessages(_ context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	f.mu.Lock()
	f.messageCalls[channelID]++
	f.messageBefore = append(f.messageBefore, beforeID)
	hook := f.onMessagesFetch
	f.mu.Unlock()
	if hook != nil {
		hook(channelID)
	}
	if err := f.fetchErr["messages:"+channelID]; err != nil {
		return nil, err
	}

	all := f.history[channelID]
	start := 0
	if beforeID != "" {
		start = len(all)
		for i, m := range all {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(all))
	return append([]*discordgo.Message(nil), all[start:end]...), nil
}

func (f *fakeSession) ActiveThreads(_ context.Context, _ string, channelID string) ([]*discordgo.Channel, error) {
	if err := f.fetchErr["threads:"+channelID]; err != nil {
		return nil, err
	}
	if channelID == "" {
		var all []*discordgo.Channel
		for _, ths := range f.threads {
			all = append(all, ths...)
		}
		return all, nil
	}
	return f.threads[channelID], nil
}

func (f *fakeSession) GuildChannels(_ context.Context, guildID string) ([]*discordgo.Channel, error) {
	if err := f.fetchErr["channels:"+guildID]; err != nil {
		return nil, err
	}
	return f.channels[guildID], nil
}

func (f *fakeSession) SendMessage(_ context.Context, channelID, content string) (*discordgo.Message, error) {
	f.mu.Lock()
	f.sent = append(f.sent, content)
	f.mu.Unlock()
	return &discordgo.Message{ID: "999999", ChannelID: channelID, Content: content, Author: &discordgo.User{ID: "me"}}, nil
}

func (f *fakeSession) calls(channelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messageCalls[channelID]
}

// makeHistory builds n messages for channelID with ids n..1, newest first.
func makeHistory(channelID string, n int) []*discordgo.Message {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*discordgo.Message, 0, n)
	for i := n; i >= 1; i-- {
		out = append(out, &discordgo.Message{
			ID:        strconv.Itoa(1000 + i),
			ChannelID: channelID,
			Content:   "message " + strconv.Itoa(i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Author:    &discordgo.User{ID: "u1", Username: "alice"},
		})
	}
	return out
}

var errRemote = fmt.Errorf("remote: 500 internal error")

var _ LiveSession = (*fakeSession)(nil)
