package app

import (
	"strings"
	"sync"

	"github.com/small-frappuccino/discorddeck/pkg/discord/cache"
	"github.com/small-frappuccino/discorddeck/pkg/log"
	"github.com/small-frappuccino/discorddeck/pkg/util"
	"github.com/spf13/cobra"
)

type conversationFlags struct {
	guildID string
	forum   bool
}

func (f *conversationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.guildID, "guild", "", "guild id for guild channels")
	cmd.Flags().BoolVar(&f.forum, "forum", false, "the channel is a forum; list its active threads")
}

func (f conversationFlags) conversation(channelID string) cache.Conversation {
	return cache.Conversation{ID: channelID, GuildID: f.guildID, Forum: f.forum}
}

func (rt *runtime) pager(live cache.LiveSession, conv cache.Conversation, onUpdate func(cache.View)) *cache.Pager {
	return cache.NewPager(rt.engine, live, conv, cache.PagerOptions{PageSize: rt.cfg.PageSize, OnUpdate: onUpdate})
}

func newMessagesCommand(rt *runtime) *cobra.Command {
	var (
		flags   conversationFlags
		pages   int
		offline bool
	)
	cmd := &cobra.Command{
		Use:   "messages <channel-id>",
		Short: "Show a conversation newest first, paging older history on request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			channelID := args[0]
			if offline {
				msgs, ok := rt.engine.Messages(ctx, channelID)
				if !ok {
					rt.printf("no cached messages for %s\n", channelID)
					return nil
				}
				for _, m := range msgs {
					rt.printf("%s\n", formatMessage(m))
				}
				return nil
			}

			live, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			p := rt.pager(live, flags.conversation(channelID), nil)
			view, err := p.LoadInitial(ctx)
			if err != nil {
				return err
			}
			for i := 1; i < pages && view.HasMore; i++ {
				if view, err = p.LoadMore(ctx); err != nil {
					return err
				}
			}
			writeView(rt.out, view)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	cmd.Flags().BoolVar(&offline, "offline", false, "only read the cached first page")
	return cmd
}

func newWatchCommand(rt *runtime) *cobra.Command {
	var flags conversationFlags
	cmd := &cobra.Command{
		Use:   "watch <channel-id>",
		Short: "Show a conversation and print new messages as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := util.WithInterrupt(cmd.Context())
			defer stop()

			live, err := rt.connect(ctx)
			if err != nil {
				return err
			}

			var (
				mu      sync.Mutex
				printed = make(map[string]struct{})
				started bool
			)
			// Items the user has not seen yet are printed oldest first.
			onUpdate := func(v cache.View) {
				mu.Lock()
				defer mu.Unlock()
				if !started {
					return
				}
				for i := len(v.Items) - 1; i >= 0; i-- {
					id := v.Items[i].ID()
					if _, ok := printed[id]; ok {
						continue
					}
					printed[id] = struct{}{}
					rt.printf("%s\n", formatItem(v.Items[i]))
				}
			}

			p := rt.pager(live, flags.conversation(args[0]), onUpdate)
			p.Attach()
			defer p.Close()
			release := rt.engine.TrackLastMessages(live)
			defer release()

			if _, err := p.LoadInitial(ctx); err != nil {
				return err
			}
			mu.Lock()
			view := p.View()
			writeView(rt.out, view)
			for _, it := range view.Items {
				printed[it.ID()] = struct{}{}
			}
			started = true
			mu.Unlock()

			util.WaitForInterrupt(ctx, func() {
				log.ApplicationLogger().Info("Stopped watching", "conversation", args[0])
			})
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newSendCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "send <channel-id> <text>...",
		Short: "Send a message and record it as the conversation's last message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			live, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			p := rt.pager(live, cache.Conversation{ID: args[0]}, nil)
			m, err := p.Send(ctx, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			rt.printf("%s\n", formatMessage(m))
			return nil
		},
	}
}
