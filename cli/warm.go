package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/pacts/queue"
	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

// NewWarmCommand creates the warm command: it follows pact-stale events and
// re-renders each evicted pact page into the cache.
func NewWarmCommand(rootOpts *RootOptions) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Consume pact-stale events and pre-render pact pages into the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is not configured")
			}
			rc := utils.NewRedisClient(cfg)
			if rc == nil {
				return errors.New("REDIS_HOST is not configured; nothing to warm")
			}
			db, err := rootOpts.openDB(cfg)
			if err != nil {
				return err
			}
			log := rootOpts.logger(cmd.ErrOrStderr())
			pages := services.NewPages(db, utils.NewCache(rc, time.Duration(cfg.CacheTTLSeconds)*time.Second), log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return queue.Consume(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, group, log, func(ctx context.Context, ev queue.PactStaleEvent) error {
				return warmPact(ctx, pages, log, ev)
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "pact-warmers", "kafka consumer group")
	return cmd
}

// warmPact renders the anonymous view, which fills the shared cache entry.
// Deleted pacts are skipped.
func warmPact(ctx context.Context, pages *services.Pages, log *zap.Logger, ev queue.PactStaleEvent) error {
	_, err := pages.PactPage(ctx, ev.PactID, nil)
	if errors.Is(err, services.ErrNotFound) {
		log.Debug("skip warming missing pact", zap.Uint("pact_id", ev.PactID))
		return nil
	}
	if err == nil {
		log.Debug("warmed pact page", zap.Uint("pact_id", ev.PactID))
	}
	return err
}
