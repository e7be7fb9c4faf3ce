package app

import (
	"context"
	"time"

	"github.com/small-frappuccino/discorddeck/pkg/discord/cache"
	"github.com/small-frappuccino/discorddeck/pkg/discord/snapshot"
	"github.com/small-frappuccino/discorddeck/pkg/log"
	"github.com/small-frappuccino/discorddeck/pkg/preferences"
	"github.com/small-frappuccino/discorddeck/pkg/util"
	"github.com/spf13/cobra"
)

func (rt *runtime) refresher(live cache.LiveSession, showProgress bool) *cache.Refresher {
	opts := cache.RefreshOptions{
		GuildConcurrency:   rt.cfg.RefreshGuildConcurrency,
		MessageConcurrency: rt.cfg.RefreshMessageConcurrency,
		MessageLimit:       rt.cfg.RefreshMessageLimit,
		ReadyTimeout:       rt.cfg.ReadyTimeout,
	}
	if showProgress {
		opts.OnProgress = func(p cache.Progress) { writeProgress(rt.out, p) }
	}
	return cache.NewRefresher(rt.engine, live, opts)
}

func newRefreshCommand(rt *runtime) *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Repopulate the cache for the profile, every guild and every DM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			live, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			report, err := rt.refresher(live, progress).Run(ctx)
			writeReport(rt.out, report)
			return err
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "print a line per finished item")
	return cmd
}

func newServeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Stay connected, track new messages and refresh on an interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := util.WithInterrupt(cmd.Context())
			defer stop()

			live, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			release := rt.engine.TrackLastMessages(live)
			defer release()

			refresher := rt.refresher(live, false)
			done := make(chan struct{})
			go func() {
				defer close(done)
				rt.refreshLoop(ctx, refresher, rt.cfg.RefreshInterval)
			}()

			log.ApplicationLogger().Info("Serving; press Ctrl+C to stop", "refreshInterval", rt.cfg.RefreshInterval)
			util.WaitForInterrupt(ctx, func() {
				log.ApplicationLogger().Info("Shutdown signal received")
			})
			<-done
			return nil
		},
	}
}

// refreshLoop runs one refresh immediately and then one per interval. A zero interval
// runs only the first.
func (rt *runtime) refreshLoop(ctx context.Context, r *cache.Refresher, interval time.Duration) {
	run := func() {
		report, err := r.Run(ctx)
		if err != nil {
			log.ErrorLoggerRaw().Error("Scheduled refresh failed", "error", err)
			return
		}
		if report.State == cache.RefreshCompleted {
			writeReport(rt.out, report)
		}
	}
	run()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func newProfileCommand(rt *runtime) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the cached profile, then the live one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if offline {
				p, ok := rt.engine.UserProfile(ctx)
				if !ok {
					rt.printf("no cached profile\n")
					return nil
				}
				rt.printf("cached: %s\n", formatProfile(p))
				return nil
			}

			live, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			cs := cache.NewCachedSession(rt.engine, live)
			p, changed, err := cs.Profile(ctx, func(c snapshot.CachedUserProfile) {
				rt.printf("cached: %s\n", formatProfile(c))
			})
			if err != nil {
				return err
			}
			rt.printf("live:   %s%s\n", formatProfile(p), changedNote(changed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "only read the cache")
	return cmd
}

func newGuildsCommand(rt *runtime) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "guilds",
		Short: "List guilds, pinned first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pinned := rt.prefs.PinnedServers(ctx)
			if offline {
				guilds, ok := rt.engine.Guilds(ctx)
				if !ok {
					rt.printf("no cached guilds\n")
					return nil
				}
				rt.writeGuilds(guilds, pinned)
				return nil
			}

			live, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			cs := cache.NewCachedSession(rt.engine, live)
			guilds, changed, err := cs.GuildList(ctx, nil)
			if err != nil {
				return err
			}
			rt.writeGuilds(guilds, pinned)
			rt.printf("%d guilds%s\n", len(guilds), changedNote(changed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "only read the cache")
	return cmd
}

func newChannelsCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "channels <guild-id>",
		Short: "Browse a guild's channels by category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			live, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			groups, err := cache.NewCachedSession(rt.engine, live).GuildChannels(ctx, args[0])
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				rt.printf("no channels\n")
				return nil
			}
			for _, g := range groups {
				rt.printf("%s\n", g.Name)
				for _, ch := range g.Channels {
					rt.printf("  %s\n", formatChannel(ch))
				}
			}
			return nil
		},
	}
}

func (rt *runtime) writeGuilds(guilds []snapshot.CachedGuild, pinned []string) {
	guildID := func(g snapshot.CachedGuild) string { return g.ID }
	set := toSet(pinned)
	for _, g := range preferences.PinnedFirst(guilds, guildID, pinned) {
		_, isPinned := set[g.ID]
		rt.printf("%s\n", formatGuild(g, isPinned))
	}
}

func newDMsCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "dms",
		Short: "List DM conversations, pinned first, then by recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			live, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			dms, err := cache.NewCachedSession(rt.engine, live).DirectMessages(ctx)
			if err != nil {
				return err
			}

			pinned := rt.prefs.PinnedDMs(ctx)
			set := toSet(pinned)
			nicks := rt.prefs.Nicknames(ctx)
			channelID := func(dm cache.DirectMessage) string { return dm.ChannelID }
			for _, dm := range preferences.PinnedFirst(dms, channelID, pinned) {
				_, isPinned := set[dm.ChannelID]
				name := preferences.DisplayName(nicks, dm.ChannelID, dm.RecipientName)
				rt.printf("%s\n", formatDM(dm, name, isPinned))
			}
			return nil
		},
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
