package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/small-frappuccino/discorddeck/pkg/discord/cache"
	"github.com/small-frappuccino/discorddeck/pkg/discord/snapshot"
)

const (
	previewRunes = 80
	timeLayout   = "2006-01-02 15:04"
)

func formatProfile(p snapshot.CachedUserProfile) string {
	return fmt.Sprintf("%s (%s)", p.Username, p.ID)
}

func formatGuild(g snapshot.CachedGuild, pinned bool) string {
	return pinMark(pinned) + fmt.Sprintf("%s  %s", g.ID, g.Name)
}

func formatDM(dm cache.DirectMessage, name string, pinned bool) string {
	line := pinMark(pinned) + fmt.Sprintf("%s  %s", dm.ChannelID, name)
	if dm.LastMessage != nil {
		line += "  " + preview(dm.LastMessage.Content, previewRunes)
	}
	return line
}

func formatChannel(ch cache.GuildChannel) string {
	line := fmt.Sprintf("%s  # %s", ch.ID, ch.Name)
	switch ch.Kind {
	case cache.ChannelForum:
		return line + fmt.Sprintf("  [forum] %d tags, %d active posts", ch.Tags, ch.ActivePosts)
	case cache.ChannelAnnouncement:
		line += "  [announcement]"
	}
	if ch.LastMessage == nil {
		return line + "  No recent messages"
	}
	return line + "  " + preview(ch.LastMessage.Content, previewRunes)
}

func formatMessage(m snapshot.CachedMessage) string {
	author := m.AuthorName
	if author == "" {
		author = m.AuthorID
	}
	line := fmt.Sprintf("%s  %s  %s: %s", m.ID, m.Created().UTC().Format(timeLayout), author, preview(m.Content, previewRunes))
	if n := len(m.Attachments); n > 0 {
		line += fmt.Sprintf(" [%d attachment(s)]", n)
	}
	if n := len(m.Embeds); n > 0 {
		line += fmt.Sprintf(" [%d embed(s)]", n)
	}
	return line
}

func formatThread(t snapshot.ThreadSummary) string {
	created := time.UnixMilli(t.CreatedTimestamp).UTC().Format(timeLayout)
	return fmt.Sprintf("%s  %s  # %s", t.ID, created, t.Name)
}

func formatItem(it cache.Item) string {
	switch {
	case it.Message != nil:
		return formatMessage(*it.Message)
	case it.Thread != nil:
		return formatThread(*it.Thread)
	}
	return ""
}

// writeView prints a pager view oldest last, the way Discord returns pages.
func writeView(w io.Writer, v cache.View) {
	for _, it := range v.Items {
		fmt.Fprintln(w, formatItem(it))
	}
	switch {
	case v.Err != nil:
		fmt.Fprintf(w, "-- error: %v\n", v.Err)
	case v.HasMore:
		fmt.Fprintf(w, "-- more before %s\n", v.Cursor)
	default:
		fmt.Fprintln(w, "-- end")
	}
}

func writeReport(w io.Writer, r cache.Report) {
	fmt.Fprintf(w, "refresh %s in %s\n", r.State, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  profile updated: %s\n", yesNo(r.ProfileUpdated))
	fmt.Fprintf(w, "  guilds updated:  %s (%d guilds)\n", yesNo(r.GuildsUpdated), r.Guilds)
	fmt.Fprintf(w, "  DMs processed:   %d (%d updated)\n", r.ConversationsProcessed, r.ConversationsUpdated)
	fmt.Fprintf(w, "  messages saved:  %d\n", r.MessagesSaved)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  failed %s %s: %v\n", f.Stage, f.ID, f.Err)
	}
}

func writeProgress(w io.Writer, p cache.Progress) {
	fmt.Fprintf(w, "[%d] %s %d/%d\n", p.Overall, p.Stage, p.Completed, p.Total)
}

func changedNote(changed bool) string {
	if changed {
		return " (updated)"
	}
	return " (unchanged)"
}

func pinMark(pinned bool) string {
	if pinned {
		return "* "
	}
	return "  "
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// preview flattens whitespace and cuts s to max runes.
func preview(s string, max int) string {
	flat := strings.Join(strings.Fields(s), " ")
	r := []rune(flat)
	if len(r) <= max {
		return flat
	}
	return string(r[:max-3]) + "..."
}
