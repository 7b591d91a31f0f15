package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/tock-watcher/internal/db"
)

func newHistoryCmd(ro *rootOptions) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "history",
		Short: "List recent probes (requires DATABASE_URL)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ro.load()
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			ctx, cancel := signalContext()
			defer cancel()

			repo, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			probes, err := repo.Recent(ctx, a.cfg.Restaurant, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range probes {
				fmt.Fprintf(out, "%s run=%s restaurant=%s month=%04d-%02d time=%s size=%d outcome=%s",
					p.ProbedAt.Format(time.RFC3339), p.RunID, p.Restaurant, p.Year, p.Month, p.Time, p.PartySize, p.Outcome())
				switch {
				case p.Found:
					fmt.Fprintf(out, " day=%s at=%s", p.Day, p.TimeLabel)
				case p.Error != "":
					fmt.Fprintf(out, " error=%q", p.Error)
				}
				fmt.Fprintln(out)
			}

			if a.cfg.Restaurant == "" {
				return nil
			}
			n, err := repo.LastNotification(ctx, a.cfg.Restaurant)
			if db.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "last notification %s: %q\n", n.SentAt.Format(time.RFC3339), n.Message)
			return nil
		},
	}
	c.Flags().IntVar(&limit, "limit", 50, "number of probes to show")
	return c
}
