package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/config"
	"github.com/small-frappuccino/discorddeck/pkg/discord/cache"
	deckerrors "github.com/small-frappuccino/discorddeck/pkg/errors"
	"github.com/small-frappuccino/discorddeck/pkg/storage"
)

func TestVersionSkipsRuntime(t *testing.T) {
	prev := loadConfig
	loadConfig = func() (config.Config, error) { return config.Config{}, errors.New("must not load") }
	t.Cleanup(func() { loadConfig = prev })

	h := &harness{t: t}
	out := h.mustRun("version")
	if strings.TrimSpace(out) != Version {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestDeepLinkCommands(t *testing.T) {
	prev := loadConfig
	loadConfig = func() (config.Config, error) { return config.Config{}, errors.New("must not load") }
	t.Cleanup(func() { loadConfig = prev })
	h := &harness{t: t}

	cases := []struct {
		args []string
		want string
	}{
		{[]string{"deeplink", "server", "10"}, "discord://-/channels/10"},
		{[]string{"deeplink", "channel", "10", "20"}, "discord://-/channels/10/20"},
		{[]string{"deeplink", "dm", "30"}, "discord://-/channels/@me/30"},
		{[]string{"deeplink", "message", "@me", "30", "40"}, "discord://-/channels/@me/30/40"},
		{[]string{"deeplink", "settings", "voice"}, "discord://-/settings/voice"},
		{[]string{"deeplink", "settings", "nonsense"}, "discord://-/settings"},
	}
	for _, tc := range cases {
		if got := strings.TrimSpace(h.mustRun(tc.args...)); got != tc.want {
			t.Fatalf("%v: got %q, want %q", tc.args, got, tc.want)
		}
	}

	if _, err := h.run("deeplink", "check", "https://example.com"); err == nil {
		t.Fatalf("expected check to reject a non-discord link")
	}
	if got := strings.TrimSpace(h.mustRun("deeplink", "check", "  DISCORD://-/channels/1")); got != "ok" {
		t.Fatalf("expected check to accept an uppercase scheme, got %q", got)
	}
}

func TestRefreshReportsThenSkipsUnchangedData(t *testing.T) {
	h := newHarness(t)
	h.live.guilds = []*discordgo.Guild{{ID: "100", Name: "Alpha"}, {ID: "200", Name: "Beta"}}
	h.live.addDM("500", "ana", 1000, 3)

	out := h.mustRun("refresh")
	for _, want := range []string{"refresh completed", "profile updated: yes", "guilds updated:  yes (2 guilds)", "DMs processed:   1 (1 updated)", "messages saved:  3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("first refresh output missing %q:\n%s", want, out)
		}
	}
	if !h.live.isClosed() {
		t.Fatalf("expected live session to be closed after the command")
	}

	out = h.mustRun("refresh")
	for _, want := range []string{"profile updated: no", "guilds updated:  no", "DMs processed:   1 (0 updated)", "messages saved:  0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("second refresh output missing %q:\n%s", want, out)
		}
	}
}

func TestProfileAndGuildsOffline(t *testing.T) {
	h := newHarness(t)
	h.live.guilds = []*discordgo.Guild{{ID: "100", Name: "Alpha"}, {ID: "200", Name: "Beta"}}

	if out := h.mustRun("profile", "--offline"); !strings.Contains(out, "no cached profile") {
		t.Fatalf("expected empty cache, got %q", out)
	}
	out := h.mustRun("profile")
	if !strings.Contains(out, "live:   deck (42) (updated)") || strings.Contains(out, "cached:") {
		t.Fatalf("unexpected first profile output:\n%s", out)
	}
	out = h.mustRun("profile")
	if !strings.Contains(out, "cached: deck (42)") || !strings.Contains(out, "(unchanged)") {
		t.Fatalf("unexpected second profile output:\n%s", out)
	}

	h.mustRun("guilds")
	h.mustRun("pin", "server", "200")
	dials := h.dials
	out = h.mustRun("guilds", "--offline")
	if h.dials != dials {
		t.Fatalf("offline listing connected to the live session")
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "* 200") || !strings.Contains(lines[1], "100  Alpha") {
		t.Fatalf("expected pinned guild first, got:\n%s", out)
	}
}

func TestDMsPinnedFirstWithNicknames(t *testing.T) {
	h := newHarness(t)
	h.live.addDM("500", "ana", 1000, 1)
	h.live.addDM("600", "bo", 2000, 1)

	if out := h.mustRun("pin", "dm", "500"); !strings.Contains(out, "pinned dm 500") {
		t.Fatalf("unexpected pin output %q", out)
	}
	if out := h.mustRun("pin", "dm", "500"); !strings.Contains(out, "already pinned") {
		t.Fatalf("expected second pin to be a no-op, got %q", out)
	}
	h.mustRun("nick", "set", "500", "Best", "Friend")

	lines := strings.Split(strings.TrimSpace(h.mustRun("dms")), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two DMs, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "* 500  Best Friend") {
		t.Fatalf("expected pinned DM with nickname first, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  600  bo") {
		t.Fatalf("expected recipient name for the unpinned DM, got %q", lines[1])
	}

	h.mustRun("unpin", "dm", "500")
	h.mustRun("nick", "rm", "500")
	if out := h.mustRun("pin", "list"); !strings.Contains(out, "DMs (0)") {
		t.Fatalf("expected no pinned DMs, got:\n%s", out)
	}
	if out := h.mustRun("nick", "list"); strings.TrimSpace(out) != "" {
		t.Fatalf("expected no nicknames, got %q", out)
	}
}

func TestMessagesPagesAndCachesFirstPage(t *testing.T) {
	h := newHarness(t)
	h.live.addDM("500", "ana", 1000, 5)

	out := h.mustRun("messages", "500", "--pages", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 4 messages and a footer, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "1005") || !strings.HasPrefix(lines[3], "1002") {
		t.Fatalf("expected newest first across pages, got:\n%s", out)
	}
	if lines[4] != "-- more before 1002" {
		t.Fatalf("unexpected footer %q", lines[4])
	}

	// Only the first page is persisted.
	out = h.mustRun("messages", "500", "--offline")
	lines = strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "1005") || !strings.HasPrefix(lines[1], "1004") {
		t.Fatalf("unexpected cached page:\n%s", out)
	}
}

func TestSendUpdatesLastMessagePreview(t *testing.T) {
	h := newHarness(t)
	h.live.addDM("500", "ana", 1000, 1)

	out := h.mustRun("send", "500", "see", "you", "soon")
	if !strings.Contains(out, "deck: see you soon") {
		t.Fatalf("unexpected send output %q", out)
	}
	if out := h.mustRun("dms"); !strings.Contains(out, "see you soon") {
		t.Fatalf("expected sent message as DM preview, got:\n%s", out)
	}
}

func TestBookmarksAndPinnedLinks(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("bookmark", "add", "--name", "Rules", "--guild", "10", "--channel", "20", "--tags", "admin, ,info")
	if !strings.Contains(out, "discord://-/channels/10/20") || !strings.Contains(out, "#admin #info") {
		t.Fatalf("unexpected bookmark output %q", out)
	}
	id := strings.Fields(out)[0]

	h.mustRun("bookmark", "add", "--link", "discord://-/channels/@me/99")
	if out := h.mustRun("bookmark", "list", "--tag", "ADMIN"); strings.Count(out, "\n") != 1 || !strings.Contains(out, "Rules") {
		t.Fatalf("expected tag filter to match one bookmark, got:\n%s", out)
	}
	if out := h.mustRun("bookmark", "list"); !strings.Contains(out, "Untitled") {
		t.Fatalf("expected default name, got:\n%s", out)
	}

	if _, err := h.run("bookmark", "add", "--link", "https://example.com"); !errors.Is(err, deckerrors.ErrInvalidLink) {
		t.Fatalf("expected invalid link error, got %v", err)
	}

	h.mustRun("bookmark", "rm", id)
	if _, err := h.run("bookmark", "rm", id); !errors.Is(err, deckerrors.ErrNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}

	out = h.mustRun("link", "add", "--name", "Friend", "--guild", "@me", "--channel", "30")
	if !strings.Contains(out, "[dm]") {
		t.Fatalf("expected dm type derived from ids, got %q", out)
	}
	if out := h.mustRun("link", "list"); !strings.Contains(out, "discord://-/channels/@me/30") {
		t.Fatalf("unexpected pinned links:\n%s", out)
	}
}

func TestLiveCommandsRequireToken(t *testing.T) {
	h := newHarness(t)
	delete(h.vars, "DISCORDDECK_TOKEN")

	_, err := h.run("refresh")
	if err == nil || !strings.Contains(err.Error(), "DISCORDDECK_TOKEN") {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if h.dials != 0 {
		t.Fatalf("expected no connection attempt")
	}
	// Local commands still work.
	h.mustRun("pin", "list")
}

func TestRefreshLoopRunsOnceWithoutInterval(t *testing.T) {
	var out bytes.Buffer
	rt := &runtime{out: &out, engine: cache.NewEngine(storage.NewMemoryStore())}
	live := newFakeLive()
	live.addDM("500", "ana", 1000, 2)

	rt.refreshLoop(context.Background(), rt.refresher(live, false), 0)

	if n := strings.Count(out.String(), "refresh completed"); n != 1 {
		t.Fatalf("expected exactly one refresh, got %d:\n%s", n, out.String())
	}
	if _, ok := rt.engine.Messages(context.Background(), "500"); !ok {
		t.Fatalf("expected the conversation to be cached")
	}
}

func TestChannelsGroupedByCategory(t *testing.T) {
	h := newHarness(t)
	h.live.channels["100"] = []*discordgo.Channel{
		{ID: "2", Name: "Community", Type: discordgo.ChannelTypeGuildCategory, Position: 1},
		{ID: "1", Name: "Start", Type: discordgo.ChannelTypeGuildCategory, Position: 0},
		{ID: "20", Name: "general", Type: discordgo.ChannelTypeGuildText, ParentID: "2", Position: 0},
		{ID: "21", Name: "help", Type: discordgo.ChannelTypeGuildForum, ParentID: "2", Position: 1,
			AvailableTags: []discordgo.ForumTag{{ID: "t1", Name: "question"}}},
		{ID: "22", Name: "Voice", Type: discordgo.ChannelTypeGuildVoice, ParentID: "2"},
		{ID: "10", Name: "updates", Type: discordgo.ChannelTypeGuildNews, ParentID: "1"},
		{ID: "5", Name: "rules", Type: discordgo.ChannelTypeGuildText},
	}
	h.live.threads = []*discordgo.Channel{{ID: "30", ParentID: "21"}, {ID: "31", ParentID: "21"}}

	h.mustRun("send", "20", "welcome", "all")
	out := h.mustRun("channels", "100")
	want := []string{
		"Uncategorized",
		"  5  # rules  No recent messages",
		"Start",
		"  10  # updates  [announcement]  No recent messages",
		"Community",
		"  20  # general  welcome all",
		"  21  # help  [forum] 1 tags, 2 active posts",
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(want) {
		t.Fatalf("unexpected channel listing:\n%s", out)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: want %q, got %q\nfull output:\n%s", i, want[i], lines[i], out)
		}
	}

	if _, err := h.run("channels"); err == nil {
		t.Fatalf("expected an error without a guild id")
	}
}
