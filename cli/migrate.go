package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cppla/pacts/config"
	"github.com/cppla/pacts/models"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or extend tables, indexes and foreign keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			db, err := rootOpts.openDB(cfg)
			if err != nil {
				return err
			}
			if err := config.Migrate(db, models.All()...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d models on %s\n", len(models.All()), cfg.DBDriver)
			return nil
		},
	}
}
