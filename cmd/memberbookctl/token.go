package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"memberbook/backend/internal/auth"
	"memberbook/backend/internal/config"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	c := &cobra.Command{
		Use:   "token MEMBER_ID",
		Short: "Sign a bearer token for a member with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.NewVerifier(cfg.JWTSecret).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	c.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return c
}
