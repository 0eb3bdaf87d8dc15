package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pkordes/nemt-dispatch/internal/auth"
	"github.com/pkordes/nemt-dispatch/internal/repo"
)

var tokenUser string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens.",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint an API token for a user and print it once.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(tokenUser)
		if err != nil {
			return fmt.Errorf("invalid --user %q: %w", tokenUser, err)
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := openPool(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		raw, err := auth.NewAuthenticator(repo.NewUserRepo(pool), auth.DefaultParams).Issue(cmd.Context(), userID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), raw)
		return err
	},
}

func init() {
	tokenCreateCmd.Flags().StringVar(&tokenUser, "user", "", "id of the user the token authenticates as")
	_ = tokenCreateCmd.MarkFlagRequired("user")
	tokenCmd.AddCommand(tokenCreateCmd)
	rootCmd.AddCommand(tokenCmd)
}
