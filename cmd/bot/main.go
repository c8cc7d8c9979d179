package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"viral-music-bot/internal/bot"
	"viral-music-bot/internal/cache"
	"viral-music-bot/internal/config"
	"viral-music-bot/internal/database"
	"viral-music-bot/internal/ledger"
	"viral-music-bot/internal/logger"
	"viral-music-bot/internal/web"
	"viral-music-bot/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("could not load configuration")
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.WithError(err).Error("service stopped with error")
		os.Exit(1)
	}
	log.Info("service stopped")
}

// run owns every resource it opens, so its deferred cleanups always run
// before main exits.
func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	db, err := database.Connect(cfg, log)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	store := ledger.NewStore(db, log, ledger.WithStartingShares(cfg.StartingShares))
	if err := store.Seed(ctx, ledger.DefaultPackages, ledger.DefaultGroups); err != nil {
		return fmt.Errorf("could not seed database: %w", err)
	}

	var statsCache cache.Cache = cache.NewMemory()
	if cfg.RedisEnabled() {
		rdb, err := database.ConnectRedis(cfg, log)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, caching stats in memory")
		} else {
			defer rdb.Close()
			statsCache = cache.NewRedis(rdb, "viral-music-bot:")
		}
	}
	stats := cache.NewCachedStats(store, statsCache, cfg.StatsCacheTTL, log)

	tgBot, err := bot.NewBot(ctx, cfg.BotToken, store, bot.SettingsFromConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("could not create bot: %w", err)
	}

	server := web.NewServer(cfg.Port, stats, tgBot, log)
	pinger := worker.NewPinger(cfg.KeepAliveURL, cfg.KeepAliveInterval, log)

	scheduler := worker.NewManager(log)
	if err := scheduler.Register(cfg.ReportSchedule, worker.NewReportJob(stats, tgBot, cfg.AdminIDs, log)); err != nil {
		return fmt.Errorf("could not schedule daily report: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tgBot.Start(ctx) })
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error {
		pinger.Run(ctx)
		return nil
	})

	log.Info("service started")
	return g.Wait()
}
