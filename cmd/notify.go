package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newNotifyCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <text>...",
		Short: "Send a test message through the Telegram bot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ro.load()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.cfg.RequireTelegram(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			if err := a.telegram().Send(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}

func newChatIDCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat-id",
		Short: "Print the chat id of the latest message sent to the bot",
		Long:  "Send any message to the bot first, then run this to find the value for TELEGRAM_CHAT_ID.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ro.load()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.cfg.RequireTelegram(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			id, err := a.telegram().LookupChatID(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
