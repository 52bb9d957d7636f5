package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"memberbook/backend/internal/app"
	"memberbook/backend/internal/config"
	"memberbook/backend/internal/store/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := app.NewLogger("memberbookctl", cfg.LogLevel)
			log.Info("connecting to database", app.DatabaseLogArgs(cfg.DatabaseURL)...)

			db, err := postgres.Open(cmd.Context(), cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 1})
			if err != nil {
				return err
			}
			defer func() {
				if err := postgres.Close(db); err != nil {
					log.Warn("database close failed", slog.Any("err", err))
				}
			}()

			applied, err := postgres.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", v)
			}
			return nil
		},
	}
}
