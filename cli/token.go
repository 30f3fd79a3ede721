package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var userID uint
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for an existing user (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return errors.New("--user-id is required")
			}
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			db, err := rootOpts.openDB(cfg)
			if err != nil {
				return err
			}
			user, err := services.NewUserService(db).Get(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}
			username := ""
			if user.Username != nil {
				username = *user.Username
			}
			token, _, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL()).
				Issue(user.ID, username, user.DisplayName(), user.Image)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 0, "id of the user to impersonate")
	return cmd
}
