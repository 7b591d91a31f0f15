package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <party-size>",
		Short: "Scan the booking window until a table opens, then send a Telegram message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parsePartySize(args[0])
			if err != nil {
				return err
			}
			a, err := ro.load()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cfg.RequireTelegram(); err != nil {
				return err
			}
			if err := a.cfg.RequireLogin(); err != nil && a.cfg.LoginFatal {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			w, err := a.newWatcher(a.telegram())
			if err != nil {
				return err
			}
			repo, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			if repo != nil {
				w.WithRecorder(repo)
			}

			a.log.Info("watching",
				zap.String("restaurant", a.cfg.Restaurant),
				zap.Int("size", size),
				zap.Int("months", a.cfg.HorizonMonths),
				zap.String("time", a.cfg.TargetTime),
				zap.Bool("history", repo != nil),
			)
			return w.Watch(ctx, size)
		},
	}
}
