package app

import (
	"fmt"

	"github.com/small-frappuccino/discorddeck/pkg/discord/deeplink"
	"github.com/spf13/cobra"
)

func newDeepLinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "deeplink",
		Short:       "Build discord:// links",
		Annotations: noRuntime(),
	}

	printTarget := func(cmd *cobra.Command, t deeplink.Target) error {
		link, err := t.Link()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), link)
		return err
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "server <guild-id>",
			Short: "Link to a server",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printTarget(cmd, deeplink.Target{GuildID: args[0]})
			},
		},
		&cobra.Command{
			Use:   "channel <guild-id> <channel-id>",
			Short: "Link to a guild channel",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printTarget(cmd, deeplink.Target{GuildID: args[0], ChannelID: args[1]})
			},
		},
		&cobra.Command{
			Use:   "dm <channel-id>",
			Short: "Link to a DM conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printTarget(cmd, deeplink.Target{GuildID: deeplink.DMGuild, ChannelID: args[0]})
			},
		},
		&cobra.Command{
			Use:   "message <guild-id|@me> <channel-id> <message-id>",
			Short: "Link to a single message",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printTarget(cmd, deeplink.Target{GuildID: args[0], ChannelID: args[1], MessageID: args[2]})
			},
		},
		&cobra.Command{
			Use:   "settings [section]",
			Short: "Link to the settings page or one of its sections",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				section := ""
				if len(args) == 1 {
					section = args[0]
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), deeplink.SettingsLink(section))
				return err
			},
		},
		&cobra.Command{
			Use:   "check <text>",
			Short: "Report whether text is a discord:// link",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !deeplink.IsDeepLink(args[0]) {
					return fmt.Errorf("%q is not a discord:// link", args[0])
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return err
			},
		},
	)
	return cmd
}
