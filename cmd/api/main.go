package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"future-you/internal/adapters/httpapi"
	"future-you/internal/adapters/repo"
	"future-you/internal/app"
	"future-you/internal/infra/auth"
	"future-you/internal/infra/config"
	"future-you/internal/infra/crypto"
	"future-you/internal/infra/db"
	httpinfra "future-you/internal/infra/http"
	applog "future-you/internal/infra/log"
	"future-you/internal/infra/metrics"
	authusecase "future-you/internal/usecase/auth"
	companionusecase "future-you/internal/usecase/companion"
	"future-you/internal/usecase/messages"
	"future-you/internal/usecase/stats"
	"future-you/internal/usecase/timing"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	log.Logger = logger

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("api: JWT_SECRET не задан")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	_, redisPing, closeRedis := app.BuildCache(cfg)
	defer closeRedis()

	notifier, err := app.BuildNotifier(cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("api: каналы уведомлений")
	}

	store := repo.NewPostgres(pool)
	cipher := crypto.NewAESGCM()
	seed := uint64(time.Now().UnixNano())
	engine := timing.NewEngine(rand.New(rand.NewPCG(seed, seed>>1|1)), nil)
	timer := timing.NewService(store, store, engine, logger)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	authSvc := authusecase.NewService(store, issuer, crypto.GenerateKey, notifier, store, logger)
	msgSvc := messages.NewService(store, store, cipher, timer, store, logger)
	statsSvc := stats.NewService(store)
	companionSvc := companionusecase.NewService(store, store, app.BuildCompanionModel(cfg, logger), cipher, logger)

	health := func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if redisPing != nil {
			if err := redisPing(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	limiter := httpinfra.NewIPRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, logger)
	go limiter.Cleanup(ctx)
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := httpinfra.NewServer(addr, logger, limiter.Handler)
	httpapi.NewHandler(authSvc, msgSvc, statsSvc, companionSvc, issuer, health, logger).Mount(server.Router)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	go func() {
		log.Info().Msg("api: старт")
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api: ошибка остановки")
	}
}
