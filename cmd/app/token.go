package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wichananm65/checkout-backend/internal/auth"
	"github.com/wichananm65/checkout-backend/internal/config"
)

// newTokenCommand mints a bearer token for local testing.
func newTokenCommand() *cobra.Command {
	var customerID int

	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Print a bearer token for a customer id",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			tok, err := auth.Sign(cfg.JWTSecret, customerID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().IntVar(&customerID, "customer", 1, "customer id to put in the user_id claim")
	return cmd
}
