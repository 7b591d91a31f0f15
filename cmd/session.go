package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to Tock once to check the credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ro.load()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.cfg.RequireLogin(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			w, err := a.newWatcher(nil)
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.Login(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", a.cfg.Email)
			return nil
		},
	}
}

func newConsentCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consent",
		Short: "Open the restaurant page and reject the cookie banner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ro.load()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			w, err := a.newWatcher(nil)
			if err != nil {
				return err
			}
			defer w.Close()

			w.AcceptConsentBanner(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
