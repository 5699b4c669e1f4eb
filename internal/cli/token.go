package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quizroom-service/internal/auth"
	"quizroom-service/internal/config"
)

// NewTokenCmd signs a bearer token with the configured secret, for local
// testing of the websocket and REST endpoints.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		name   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tok, err := auth.NewVerifier(cfg.Auth.JWTSecret, false).IssueToken(userID, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed")
	cmd.Flags().StringVar(&name, "name", "", "display name to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
