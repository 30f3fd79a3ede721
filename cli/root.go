// Package cli implements pactctl, the operator tool for the pacts service.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/cppla/pacts/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	DBDriver string
	DSN      string
}

// NewRootCommand creates the root command for pactctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "pactctl",
		Short:         "Operate a pacts deployment",
		Long:          "Schema migration, demo data seeding, development tokens and cache warming for the pacts service.",
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error once
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.DBDriver, "db-driver", "", "override DB_DRIVER (mysql|postgres|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "override DATABASE_URI")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewWarmCommand(opts))

	return cmd
}

// loadConfig reads configuration and applies flag overrides.
func (o *RootOptions) loadConfig() (config.AppConfig, error) {
	cfg, err := config.Read()
	if err != nil {
		return cfg, err
	}
	if o.DBDriver != "" {
		cfg.DBDriver = o.DBDriver
	}
	if o.DSN != "" {
		cfg.DatabaseURI = o.DSN
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	} else if cfg.LogLevel != "debug" {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

func (o *RootOptions) openDB(cfg config.AppConfig) (*gorm.DB, error) {
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (o *RootOptions) logger(w io.Writer) *zap.Logger {
	if !o.Verbose {
		return zap.NewNop()
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel))
}
