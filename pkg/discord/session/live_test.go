package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func TestLiveReadyAfterReadyEvent(t *testing.T) {
	l := NewLive(&discordgo.Session{})
	if l.IsReady() {
		t.Fatalf("should not be ready before the Ready event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Ready(ctx); err == nil {
		t.Fatalf("expected ctx error while waiting")
	}

	l.onReady(nil, &discordgo.Ready{User: &discordgo.User{Username: "me"}})
	l.onReady(nil, &discordgo.Ready{})
	if !l.IsReady() {
		t.Fatalf("expected ready")
	}
	if err := l.Ready(context.Background()); err != nil {
		t.Fatalf("ready: %v", err)
	}
}

func TestOnMessageCreateReturnsRemover(t *testing.T) {
	l := NewLive(&discordgo.Session{})
	remove := l.OnMessageCreate(func(*discordgo.Message) {})
	if remove == nil {
		t.Fatalf("expected remove func")
	}
	remove()
}

func TestGuildsFromUserGuilds(t *testing.T) {
	got := guildsFromUserGuilds([]*discordgo.UserGuild{{ID: "1", Name: "a", Icon: "i"}, nil, {ID: "2", Name: "b"}})
	if len(got) != 2 || got[0].Icon != "i" || got[1].ID != "2" {
		t.Fatalf("unexpected guilds %+v", got)
	}
}

func TestThreadsInParent(t *testing.T) {
	threads := []*discordgo.Channel{{ID: "t1", ParentID: "f1"}, {ID: "t2", ParentID: "f2"}, nil, {ID: "t3", ParentID: "f1"}}
	got := threadsInParent(threads, "f1")
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t3" {
		t.Fatalf("unexpected threads %+v", got)
	}
}

func TestDirectOnlyFiltersChannelTypes(t *testing.T) {
	got := directOnly([]*discordgo.Channel{
		{ID: "1", Type: discordgo.ChannelTypeDM},
		{ID: "2", Type: discordgo.ChannelTypeGuildText},
		{ID: "3", Type: discordgo.ChannelTypeGroupDM},
	})
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("unexpected channels %+v", got)
	}
}

func TestDirectMessageChannelsPrefersState(t *testing.T) {
	prev := requestUserChannels
	t.Cleanup(func() { requestUserChannels = prev })
	requestUserChannels = func(context.Context, *discordgo.Session) ([]byte, error) {
		t.Fatalf("REST listing used although the state holds private channels")
		return nil, nil
	}

	st := discordgo.NewState()
	st.PrivateChannels = []*discordgo.Channel{{ID: "1", Type: discordgo.ChannelTypeDM}}
	l := NewLive(&discordgo.Session{State: st})

	got, err := l.DirectMessageChannels(context.Background())
	if err != nil {
		t.Fatalf("dm channels: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("unexpected channels %+v", got)
	}
}

func TestDirectMessageChannelsFallsBackToREST(t *testing.T) {
	prev := requestUserChannels
	t.Cleanup(func() { requestUserChannels = prev })
	calls := 0
	requestUserChannels = func(context.Context, *discordgo.Session) ([]byte, error) {
		calls++
		return []byte(`[{"id":"1","type":1},{"id":"2","type":0},{"id":"3","type":3,"recipients":[{"id":"9","username":"bo"}]}]`), nil
	}

	l := NewLive(&discordgo.Session{State: discordgo.NewState()})
	got, err := l.DirectMessageChannels(context.Background())
	if err != nil {
		t.Fatalf("dm channels: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one REST call, got %d", calls)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("expected DM and group DM only, got %+v", got)
	}
	if len(got[1].Recipients) != 1 || got[1].Recipients[0].Username != "bo" {
		t.Fatalf("expected recipients decoded, got %+v", got[1].Recipients)
	}
}

func TestDirectMessageChannelsRESTErrors(t *testing.T) {
	prev := requestUserChannels
	t.Cleanup(func() { requestUserChannels = prev })
	l := NewLive(&discordgo.Session{})

	requestUserChannels = func(context.Context, *discordgo.Session) ([]byte, error) {
		return nil, errors.New("429")
	}
	if _, err := l.DirectMessageChannels(context.Background()); err == nil {
		t.Fatalf("expected request error")
	}

	requestUserChannels = func(context.Context, *discordgo.Session) ([]byte, error) {
		return []byte(`{"not":"a list"}`), nil
	}
	if _, err := l.DirectMessageChannels(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}
