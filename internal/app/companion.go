package app

import (
	"github.com/rs/zerolog"

	"future-you/internal/adapters/companion"
	"future-you/internal/domain"
	"future-you/internal/infra/config"
	"future-you/internal/infra/openai"
)

// BuildCompanionModel возвращает OpenAI-компаньона или офлайн-заглушку, если ключ не задан.
func BuildCompanionModel(cfg config.AppConfig, logger zerolog.Logger) domain.CompanionModel {
	if cfg.OpenAI.APIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY не задан, компаньон отвечает заготовками")
		return companion.NewStub()
	}
	client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	return companion.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.EmotionModel, cfg.OpenAI.Timeout)
}
