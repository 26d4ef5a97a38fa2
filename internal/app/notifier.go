package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"future-you/internal/adapters/mailer"
	"future-you/internal/adapters/notify"
	"future-you/internal/adapters/telegram"
	"future-you/internal/domain"
	"future-you/internal/infra/cache"
	"future-you/internal/infra/config"
)

// BuildNotifier собирает каналы уведомлений из конфига: почта всегда, Telegram при наличии токена.
func BuildNotifier(cfg config.AppConfig, logger zerolog.Logger) (domain.Notifier, error) {
	channels := make([]domain.Notifier, 0, 2)
	if cfg.Email.APIURL != "" && cfg.Email.APIKey != "" {
		m, err := mailer.NewHTTPMailer(cfg.Email.APIURL, cfg.Email.APIKey, logger,
			mailer.WithTimeout(cfg.Email.Timeout),
			mailer.WithSender(cfg.Email.FromEmail, cfg.Email.FromName),
			mailer.WithPublicURL(cfg.PublicURL),
		)
		if err != nil {
			return nil, fmt.Errorf("почтовый клиент: %w", err)
		}
		channels = append(channels, m)
	} else {
		logger.Warn().Msg("EMAIL_API_URL/EMAIL_API_KEY не заданы, письма пишутся в лог")
		channels = append(channels, mailer.NewLogMailer(cfg.PublicURL, logger))
	}
	if cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("telegram бот: %w", err)
		}
		channels = append(channels, telegram.NewNotifier(bot, cfg.PublicURL, logger))
	}
	return notify.NewFanout(channels...), nil
}

// BuildCache подключает Redis, если задан REDIS_ADDR. Без Redis возвращает nil-интерфейс.
func BuildCache(cfg config.AppConfig) (domain.Cache, func(context.Context) error, func()) {
	if cfg.RedisAddr == "" {
		return nil, nil, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	c := cache.NewRedis(client)
	return c, c.Ping, func() { _ = client.Close() }
}
