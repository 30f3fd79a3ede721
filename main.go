package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cppla/pacts/config"
	"github.com/cppla/pacts/models"
	"github.com/cppla/pacts/queue"
	"github.com/cppla/pacts/routes"
	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync() //nolint:errcheck

	db := config.InitDatabase(models.All()...)

	rc := utils.GetRedis()
	cache := utils.NewCache(rc, time.Duration(cfg.CacheTTLSeconds)*time.Second)

	invalidators := services.FanOut{services.NewCacheInvalidator(cache)}
	if pub := queue.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic); pub != nil {
		queue.EnsureTopic(context.Background(), cfg.KafkaBrokers, cfg.KafkaTopic, 3, utils.Logger)
		invalidators = append(invalidators, services.NewEventInvalidator(pub))
		defer pub.Close()
	}

	r := routes.SetupRouter(routes.Deps{
		Config:       cfg,
		DB:           db,
		Cache:        cache,
		Invalidator:  invalidators,
		Issuer:       utils.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL()),
		States:       utils.NewTTLStore(rc, "oauth:state:"),
		Revoked:      utils.NewTTLStore(rc, "jwt:blacklist:"),
		Logger:       utils.Logger,
		AccessLogger: accessLogger(cfg),
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.NewServer(":"+cfg.AppPort, r).Run(context.Background()); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// accessLogger writes gin access logs to their own rolling file, falling back to the app logger.
func accessLogger(cfg config.AppConfig) *zap.Logger {
	if cfg.GinPath == "" {
		return utils.Logger
	}
	lj, err := utils.NewRollingFileLogger(cfg, cfg.GinPath)
	if err != nil {
		utils.Sugar.Warnf("gin log file unavailable, using app logger: %v", err)
		return utils.Logger
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(lj),
		zap.InfoLevel,
	)
	return zap.New(core)
}
