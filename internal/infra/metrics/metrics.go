package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	SweepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_sweeps_total",
		Help: "Количество проходов фоновой доставки",
	}, []string{"status"})
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "delivery_sweep_duration_seconds",
		Help:    "Длительность одного прохода доставки",
		Buckets: prometheus.DefBuckets,
	})
	DueMessages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "delivery_due_messages",
		Help: "Количество писем, готовых к доставке, в последнем проходе",
	})
	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_delivered_total",
		Help: "Письма, переведённые в delivered",
	})
	DeliveryFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_failures_total",
		Help: "Ошибки доставки по этапам",
	}, []string{"stage"})

	RemindersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_total",
		Help: "Ежедневные напоминания по результату",
	}, []string{"status"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Отправленные уведомления по каналам",
	}, []string{"channel", "kind", "status"})

	MessagesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_created_total",
		Help: "Созданные письма по режиму доставки",
	}, []string{"mode"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})

	CompanionChats = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_chats_total",
		Help: "Сообщения компаньону по распознанной эмоции",
	}, []string{"emotion"})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Запросы, отклонённые ограничителем частоты",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		SweepsTotal,
		SweepDuration,
		DueMessages,
		MessagesDelivered,
		DeliveryFailures,
		RemindersTotal,
		NotificationsTotal,
		MessagesCreated,
		LLMGenerationDuration,
		LLMTokensTotal,
		CompanionChats,
		RateLimited,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics и останавливает его вместе с ctx.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveNotification учитывает попытку отправки уведомления.
func ObserveNotification(channel, kind string, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	NotificationsTotal.WithLabelValues(channel, kind, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}
