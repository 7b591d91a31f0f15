package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/tock-watcher/internal/reservation"
)

func newFindCmd(ro *rootOptions) *cobra.Command {
	var (
		year      int
		month     int
		at        string
		skipLogin bool
	)

	c := &cobra.Command{
		Use:   "find <party-size>",
		Short: "Probe a single month once and print the first open table",
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

			now := reservation.At(time.Now(), 0)
			if year == 0 {
				year = now.Year
			}
			if month == 0 {
				month = now.Month
			}
			if at == "" {
				at = a.cfg.TargetTime
			}
			q := reservation.SlotQuery{Year: year, Month: month, Time: at, PartySize: size}
			if err := q.Validate(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			w, err := a.newWatcher(nil)
			if err != nil {
				return err
			}
			defer w.Close()

			w.AcceptConsentBanner(ctx)
			if !skipLogin {
				if err := a.cfg.RequireLogin(); err != nil {
					return err
				}
				if err := w.Login(ctx); err != nil {
					return err
				}
			}

			slot, err := w.FindOpenSlot(ctx, q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if slot == nil {
				fmt.Fprintf(out, "no open tables in %04d-%02d for %d\n", q.Year, q.Month, q.PartySize)
				return nil
			}
			fmt.Fprintf(out, "open table date=%s time=%s size=%d\n", slot.Date(), slot.Time, slot.PartySize)
			return nil
		},
	}

	c.Flags().IntVar(&year, "year", 0, "year to probe (default current)")
	c.Flags().IntVar(&month, "month", 0, "month to probe, 1-12 (default current)")
	c.Flags().StringVar(&at, "time", "", "time of day HH:MM (default TOCK_TARGET_TIME)")
	c.Flags().BoolVar(&skipLogin, "skip-login", false, "search without logging in")
	return c
}
