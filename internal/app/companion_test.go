package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"future-you/internal/adapters/companion"
	"future-you/internal/infra/config"
)

func TestBuildCompanionModel(t *testing.T) {
	var cfg config.AppConfig
	assert.IsType(t, companion.Stub{}, BuildCompanionModel(cfg, zerolog.Nop()))

	cfg.OpenAI.APIKey = "sk-test"
	assert.IsType(t, &companion.OpenAI{}, BuildCompanionModel(cfg, zerolog.Nop()))
}
