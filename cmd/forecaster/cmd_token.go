package main

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/security"
	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue a bearer token for the server's mutating routes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		auth := security.NewAuthenticator(cfg.Auth.JWTSecret)
		if !auth.Enabled() {
			return fmt.Errorf("JWT_SECRET is not configured")
		}
		token, err := auth.IssueToken(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
