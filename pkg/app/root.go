package app

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// annotationNoRuntime marks commands that run without config, logging or store.
const annotationNoRuntime = "discorddeck/no-runtime"

// Execute builds the command tree for appName and runs it with args. The store, the live
// session and the log files are always released before it returns.
func Execute(ctx context.Context, appName string, args []string, out io.Writer) error {
	rt := &runtime{appName: appName, out: out}
	root := newRootCommand(rt)
	root.SetArgs(args)
	root.SetOut(out)

	err := root.ExecuteContext(ctx)
	if closeErr := rt.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func newRootCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           rt.appName,
		Short:         "Local cache and launcher data for a Discord account",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsRuntime(cmd) {
				return nil
			}
			return rt.open()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "also print logs to stdout")

	root.AddCommand(
		newVersionCommand(),
		newRefreshCommand(rt),
		newServeCommand(rt),
		newProfileCommand(rt),
		newGuildsCommand(rt),
		newChannelsCommand(rt),
		newDMsCommand(rt),
		newMessagesCommand(rt),
		newWatchCommand(rt),
		newSendCommand(rt),
		newPinCommand(rt),
		newUnpinCommand(rt),
		newNickCommand(rt),
		newBookmarkCommand(rt),
		newLinkCommand(rt),
		newDeepLinkCommand(),
	)
	return root
}

func needsRuntime(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" {
			return false
		}
		if _, skip := c.Annotations[annotationNoRuntime]; skip {
			return false
		}
	}
	return true
}

func noRuntime() map[string]string {
	return map[string]string{annotationNoRuntime: "true"}
}
