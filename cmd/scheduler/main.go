package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"future-you/internal/adapters/repo"
	"future-you/internal/app"
	"future-you/internal/infra/config"
	"future-you/internal/infra/crypto"
	"future-you/internal/infra/db"
	applog "future-you/internal/infra/log"
	"future-you/internal/infra/metrics"
	"future-you/internal/scheduler"
	"future-you/internal/usecase/delivery"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	log.Logger = logger

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	guard, _, closeRedis := app.BuildCache(cfg)
	defer closeRedis()
	if guard == nil {
		log.Warn().Msg("scheduler: REDIS_ADDR не задан, напоминания без защиты от повторов")
	}

	notifier, err := app.BuildNotifier(cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: каналы уведомлений")
	}

	policy, err := delivery.ParsePolicy(cfg.Delivery.DecryptFailure, cfg.Delivery.NotifyFailure)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: политика отказов")
	}

	store := repo.NewPostgres(pool)
	sweeper := delivery.NewSweeper(store, store, crypto.NewAESGCM(), notifier, delivery.Config{
		BatchSize:     cfg.Delivery.BatchSize,
		Workers:       cfg.Delivery.Workers,
		NotifyTimeout: cfg.Delivery.NotifyTimeout,
		Policy:        policy,
	}, logger)
	reminder := delivery.NewReminder(store, notifier, guard, store, cfg.Delivery.NotifyTimeout, logger)

	sched := scheduler.New(sweeper, reminder, scheduler.Config{
		SweepInterval: cfg.Delivery.Interval,
		ReminderHour:  cfg.Delivery.ReminderHour,
		Location:      cfg.Location(),
	}, logger)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler: запуск")
	}

	<-ctx.Done()
	log.Info().Msg("scheduler: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scheduler: не дождались завершения прохода")
	}
}
