package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/small-frappuccino/discorddeck/pkg/discord/deeplink"
	"github.com/small-frappuccino/discorddeck/pkg/preferences"
	"github.com/spf13/cobra"
)

type pinTarget struct {
	name   string
	list   func(*preferences.Store, context.Context) []string
	pin    func(*preferences.Store, context.Context, string) (bool, error)
	unpin  func(*preferences.Store, context.Context, string) (bool, error)
	plural string
}

var pinTargets = []pinTarget{
	{name: "server", plural: "servers", list: (*preferences.Store).PinnedServers, pin: (*preferences.Store).PinServer, unpin: (*preferences.Store).UnpinServer},
	{name: "dm", plural: "DMs", list: (*preferences.Store).PinnedDMs, pin: (*preferences.Store).PinDM, unpin: (*preferences.Store).UnpinDM},
}

func newPinCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Pin servers and DMs to the top of their lists",
	}
	for _, t := range pinTargets {
		t := t
		cmd.AddCommand(&cobra.Command{
			Use:   t.name + " <id>",
			Short: "Pin a " + t.name,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				added, err := t.pin(rt.prefs, cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !added {
					rt.printf("%s %s is already pinned\n", t.name, args[0])
					return nil
				}
				rt.printf("pinned %s %s\n", t.name, args[0])
				return nil
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pinned servers and DMs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, t := range pinTargets {
				ids := t.list(rt.prefs, cmd.Context())
				rt.printf("%s (%d)\n", t.plural, len(ids))
				for _, id := range ids {
					rt.printf("  %s\n", id)
				}
			}
			return nil
		},
	})
	return cmd
}

func newUnpinCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpin",
		Short: "Unpin servers and DMs",
	}
	for _, t := range pinTargets {
		t := t
		cmd.AddCommand(&cobra.Command{
			Use:   t.name + " <id>",
			Short: "Unpin a " + t.name,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				removed, err := t.unpin(rt.prefs, cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					rt.printf("%s %s was not pinned\n", t.name, args[0])
					return nil
				}
				rt.printf("unpinned %s %s\n", t.name, args[0])
				return nil
			},
		})
	}
	return cmd
}

func newNickCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nick",
		Short: "Manage local DM nicknames",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <dm-id> <nickname>...",
			Short: "Label a DM. An empty nickname removes the label",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				nickname := strings.Join(args[1:], " ")
				if err := rt.prefs.SetNickname(cmd.Context(), args[0], nickname); err != nil {
					return err
				}
				rt.printf("nickname for %s set to %q\n", args[0], strings.TrimSpace(nickname))
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <dm-id>",
			Short: "Remove a DM nickname",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				removed, err := rt.prefs.RemoveNickname(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					rt.printf("no nickname for %s\n", args[0])
					return nil
				}
				rt.printf("removed nickname for %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List DM nicknames",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				nicks := rt.prefs.Nicknames(cmd.Context())
				ids := make([]string, 0, len(nicks))
				for id := range nicks {
					ids = append(ids, id)
				}
				slices.Sort(ids)
				for _, id := range ids {
					rt.printf("%s  %s\n", id, nicks[id])
				}
				return nil
			},
		},
	)
	return cmd
}

// linkFlags are shared by "bookmark add" and "link add".
type linkFlags struct {
	id     string
	name   string
	link   string
	tags   string
	target deeplink.Target
}

func (f *linkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "replace the entry with this id")
	cmd.Flags().StringVar(&f.name, "name", "", "display name")
	cmd.Flags().StringVar(&f.link, "link", "", "discord:// link; built from the ids when empty")
	cmd.Flags().StringVar(&f.tags, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&f.target.GuildID, "guild", "", "guild id, or @me for DMs")
	cmd.Flags().StringVar(&f.target.ChannelID, "channel", "", "channel id")
	cmd.Flags().StringVar(&f.target.MessageID, "message", "", "message id")
}

func hasTag(tags []string, tag string) bool {
	return tag == "" || slices.ContainsFunc(tags, func(t string) bool { return strings.EqualFold(t, tag) })
}

func newBookmarkCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookmark",
		Short: "Manage deep-link bookmarks",
	}

	var add linkFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a bookmark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := rt.prefs.SaveBookmark(cmd.Context(), preferences.Bookmark{
				ID:     add.id,
				Name:   add.name,
				Link:   add.link,
				Tags:   preferences.ParseTags(add.tags),
				Target: add.target,
			})
			if err != nil {
				return err
			}
			rt.printf("%s\n", formatBookmark(b.ID, b.Name, b.Link, b.Tags))
			return nil
		},
	}
	add.register(addCmd)

	var tag string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List bookmarks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, b := range rt.prefs.Bookmarks(cmd.Context()) {
				if hasTag(b.Tags, tag) {
					rt.printf("%s\n", formatBookmark(b.ID, b.Name, b.Link, b.Tags))
				}
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&tag, "tag", "", "only bookmarks with this tag")

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.prefs.RemoveBookmark(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("remove bookmark %s: %w", args[0], err)
			}
			rt.printf("removed bookmark %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd, rmCmd)
	return cmd
}

func newLinkCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage pinned links",
	}

	var (
		add  linkFlags
		kind string
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a pinned link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := rt.prefs.SavePinnedLink(cmd.Context(), preferences.PinnedLink{
				ID:     add.id,
				Name:   add.name,
				Type:   deeplink.Kind(kind),
				Link:   add.link,
				Tags:   preferences.ParseTags(add.tags),
				Target: add.target,
			})
			if err != nil {
				return err
			}
			rt.printf("%s  [%s]\n", formatBookmark(p.ID, p.Name, p.Link, p.Tags), p.Type)
			return nil
		},
	}
	add.register(addCmd)
	addCmd.Flags().StringVar(&kind, "type", "", "server, channel or dm; derived from the ids when empty")

	var tag string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pinned links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range rt.prefs.PinnedLinks(cmd.Context()) {
				if hasTag(p.Tags, tag) {
					rt.printf("%s  [%s]\n", formatBookmark(p.ID, p.Name, p.Link, p.Tags), p.Type)
				}
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&tag, "tag", "", "only links with this tag")

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a pinned link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.prefs.RemovePinnedLink(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("remove pinned link %s: %w", args[0], err)
			}
			rt.printf("removed pinned link %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd, rmCmd)
	return cmd
}

func formatBookmark(id, name, link string, tags []string) string {
	line := fmt.Sprintf("%s  %s  %s", id, name, link)
	if len(tags) > 0 {
		line += "  #" + strings.Join(tags, " #")
	}
	return line
}
