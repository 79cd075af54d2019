package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/yakoovad/squad-roster/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		admin  bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for a user",
		Example: `  squad-roster token --user 3f1c0c9e-5d7a-4c55-9a55-0a2f6b1e0d11
  squad-roster token --user root --admin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := bootstrap()
			if err != nil {
				return err
			}
			defer l.Sync()

			tokenType := auth.TokenTypeUser
			if admin {
				tokenType = auth.TokenTypeAdmin
			}

			token, err := auth.GenerateToken(userID, tokenType, cfg.Auth.TokenTTL)
			if err != nil {
				return errors.Wrap(err, "generate token")
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id placed in the token subject")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant system administrator rights")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
