package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/config"
	"github.com/small-frappuccino/discorddeck/pkg/log"
)

// fakeLive is a connected session with scripted data.
type fakeLive struct {
	mu       sync.Mutex
	user     *discordgo.User
	guilds   []*discordgo.Guild
	dms      []*discordgo.Channel
	history  map[string][]*discordgo.Message // newest first
	channels map[string][]*discordgo.Channel // by guild
	threads  []*discordgo.Channel
	handlers map[int]func(*discordgo.Message)
	nextHdl  int
	nextID   int
	closed   bool
}

func newFakeLive() *fakeLive {
	return &fakeLive{
		user:     &discordgo.User{ID: "42", Username: "deck"},
		history:  make(map[string][]*discordgo.Message),
		channels: make(map[string][]*discordgo.Channel),
		handlers: make(map[int]func(*discordgo.Message)),
		nextID:   9000,
	}
}

func (f *fakeLive) Ready(context.Context) error { return nil }
func (f *fakeLive) IsReady() bool               { return true }

func (f *fakeLive) OnMessageCreate(fn func(*discordgo.Message)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextHdl++
	id := f.nextHdl
	f.handlers[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}
}

func (f *fakeLive) CurrentUser(context.Context) (*discordgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := *f.user
	return &u, nil
}

func (f *fakeLive) Guilds(context.Context) ([]*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.Guild(nil), f.guilds...), nil
}

func (f *fakeLive) Guild(_ context.Context, id string) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.guilds {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, fmt.Errorf("unknown guild %s", id)
}

func (f *fakeLive) DirectMessageChannels(context.Context) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.Channel(nil), f.dms...), nil
}

func (f *fakeLive) ChannelMessages(_ context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeLive) ActiveThreads(_ context.Context, _ string, channelID string) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*discordgo.Channel
	for _, th := range f.threads {
		if channelID == "" || th.ParentID == channelID {
			out = append(out, th)
		}
	}
	return out, nil
}

func (f *fakeLive) GuildChannels(_ context.Context, guildID string) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[guildID], nil
}

func (f *fakeLive) SendMessage(_ context.Context, channelID, content string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := &discordgo.Message{ID: strconv.Itoa(f.nextID), ChannelID: channelID, Content: content, Author: f.user}
	f.history[channelID] = append([]*discordgo.Message{m}, f.history[channelID]...)
	return m, nil
}

func (f *fakeLive) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeLive) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// addDM adds a DM with n messages, ids base+n down to base+1.
func (f *fakeLive) addDM(channelID, recipient string, base, n int) {
	f.dms = append(f.dms, &discordgo.Channel{
		ID:         channelID,
		Type:       discordgo.ChannelTypeDM,
		Recipients: []*discordgo.User{{ID: "u" + channelID, Username: recipient}},
	})
	for i := n; i >= 1; i-- {
		f.history[channelID] = append(f.history[channelID], &discordgo.Message{
			ID:        strconv.Itoa(base + i),
			ChannelID: channelID,
			Content:   fmt.Sprintf("message %d", i),
			Author:    &discordgo.User{ID: "u" + channelID, Username: recipient},
		})
	}
}

// harness runs commands against a SQLite store in a temp dir, so state survives
// between runs the way it does between real invocations.
type harness struct {
	t     *testing.T
	dir   string
	live  *fakeLive
	vars  map[string]string
	dials int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		t:    t,
		dir:  dir,
		live: newFakeLive(),
		vars: map[string]string{
			"DISCORDDECK_TOKEN":      "test-token",
			"DISCORDDECK_STORE":      "sqlite",
			"DISCORDDECK_STORE_PATH": filepath.Join(dir, "cache.db"),
			"DISCORDDECK_LOG_DIR":    filepath.Join(dir, "logs"),
			"DISCORDDECK_PAGE_SIZE":  "2",
		},
	}

	prevLoad, prevConnect := loadConfig, connectLive
	loadConfig = func() (config.Config, error) { return config.LoadFrom(h.vars) }
	connectLive = func(token string, bot bool) (liveConn, error) {
		h.dials++
		return h.live, nil
	}
	t.Cleanup(func() {
		loadConfig, connectLive = prevLoad, prevConnect
		// Detach the loggers from the temp dir before it is removed.
		_ = log.SetupLogger(log.Options{Quiet: true})
	})
	return h
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	err := Execute(context.Background(), "discorddeck-test", args, &out)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%v: %v\noutput:\n%s", args, err, out)
	}
	return out
}
