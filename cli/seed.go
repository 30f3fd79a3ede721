package cli

import (
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/cppla/pacts/config"
	"github.com/cppla/pacts/models"
	"github.com/cppla/pacts/seed"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		yes      bool
		randSeed int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace all pacts data with demo users, pacts, check-ins and kudos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("seed deletes every user, pact, check-in and kudo; pass --yes to confirm")
			}
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
			if randSeed == 0 {
				randSeed = time.Now().UnixNano()
			}
			sum, err := seed.Run(cmd.Context(), db, rand.New(rand.NewSource(randSeed)), rootOpts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm that existing data will be deleted")
	cmd.Flags().Int64Var(&randSeed, "rand-seed", 0, "random seed for reproducible data (0 = time based)")
	return cmd
}
