package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"memberbook/backend/internal/app"
	"memberbook/backend/internal/config"
)

func newReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run one sweep: cancel expired holds and complete elapsed bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := app.NewLogger("memberbookctl", cfg.LogLevel)

			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Reaper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "another replica holds the reaper lock; nothing done")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d holds, completed %d bookings\n", res.Expired, res.Completed)
			return nil
		},
	}
}
