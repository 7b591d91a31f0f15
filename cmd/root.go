package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/tock-watcher/internal/config"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type rootOptions struct {
	restaurant string
	envFiles   []string
}

func NewRootCmd() *cobra.Command {
	ro := &rootOptions{}
	root := &cobra.Command{
		Use:           "tockwatch",
		Short:         "Watches a Tock restaurant for an open table and pings you on Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(ro.envFiles...)
		},
	}
	root.PersistentFlags().StringVar(&ro.restaurant, "restaurant", "", "restaurant path on Tock (overrides TOCK_RESTAURANT)")
	root.PersistentFlags().StringSliceVar(&ro.envFiles, "env-file", nil, "dotenv files to load (default .env)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newWatchCmd(ro))
	root.AddCommand(newFindCmd(ro))
	root.AddCommand(newLoginCmd(ro))
	root.AddCommand(newConsentCmd(ro))
	root.AddCommand(newNotifyCmd(ro))
	root.AddCommand(newChatIDCmd(ro))
	root.AddCommand(newHistoryCmd(ro))

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
