package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"UTC"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	PublicURL   string `envconfig:"PUBLIC_URL" default:"https://futureyou.app"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"5"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Auth struct {
		JWTSecret string        `envconfig:"JWT_SECRET"`
		TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"720h"`
	} `envconfig:""`

	Email struct {
		APIURL    string        `envconfig:"EMAIL_API_URL"`
		APIKey    string        `envconfig:"EMAIL_API_KEY"`
		FromEmail string        `envconfig:"EMAIL_FROM" default:"hello@futureyou.app"`
		FromName  string        `envconfig:"EMAIL_FROM_NAME" default:"Future You"`
		Timeout   time.Duration `envconfig:"EMAIL_TIMEOUT" default:"10s"`
	} `envconfig:""`

	Telegram struct {
		Token string `envconfig:"TG_BOT_TOKEN"`
	} `envconfig:""`

	OpenAI struct {
		APIKey       string        `envconfig:"OPENAI_API_KEY"`
		BaseURL      string        `envconfig:"OPENAI_BASE_URL"`
		Model        string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		EmotionModel string        `envconfig:"OPENAI_EMOTION_MODEL" default:"gpt-4o-mini"`
		Timeout      time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Delivery struct {
		Interval       time.Duration `envconfig:"DELIVERY_INTERVAL" default:"60s"`
		BatchSize      int           `envconfig:"DELIVERY_BATCH_SIZE" default:"500"`
		Workers        int           `envconfig:"DELIVERY_WORKERS" default:"1"`
		NotifyTimeout  time.Duration `envconfig:"DELIVERY_NOTIFY_TIMEOUT" default:"10s"`
		DecryptFailure string        `envconfig:"DELIVERY_DECRYPT_FAILURE" default:"retry_next_tick"`
		NotifyFailure  string        `envconfig:"DELIVERY_NOTIFY_FAILURE" default:"ignore"`
		ReminderHour   int           `envconfig:"REMINDER_HOUR" default:"9"`
	} `envconfig:""`

	RateLimit struct {
		PerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
		Burst     int `envconfig:"RATE_LIMIT_BURST" default:"20"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Location возвращает часовой пояс планировщика. Неизвестная зона трактуется как UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
