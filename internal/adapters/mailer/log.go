package mailer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

// LogMailer пишет письма в лог вместо отправки. Используется, когда почтовый API не настроен.
type LogMailer struct {
	publicURL string
	log       zerolog.Logger
	now       func() time.Time
}

var _ domain.Notifier = (*LogMailer)(nil)

// NewLogMailer создаёт заглушку почты.
func NewLogMailer(publicURL string, logger zerolog.Logger) *LogMailer {
	return &LogMailer{publicURL: publicURL, log: logger.With().Str("component", "mailer").Logger(), now: time.Now}
}

func (m *LogMailer) print(kind string, email Email, err error) bool {
	if err != nil {
		m.log.Error().Err(err).Str("kind", kind).Msg("не удалось собрать письмо")
		return false
	}
	m.log.Info().
		Str("kind", kind).
		Str("to", email.To.Email).
		Str("subject", email.Subject).
		Msg("[EMAIL MOCK] письмо не отправлено, почтовый API не настроен")
	metrics.ObserveNotification("log", kind, true)
	return true
}

// NotifyMessageReady реализует domain.Notifier.
func (m *LogMailer) NotifyMessageReady(_ context.Context, n domain.MessageReadyNotice) bool {
	email, err := MessageReadyEmail(n, m.publicURL, m.now())
	return m.print("message_ready", email, err)
}

// NotifyBacklog реализует domain.Notifier.
func (m *LogMailer) NotifyBacklog(_ context.Context, n domain.BacklogNotice) bool {
	email, err := BacklogEmail(n, m.publicURL)
	return m.print("reminder", email, err)
}

// NotifyWelcome реализует domain.Notifier.
func (m *LogMailer) NotifyWelcome(_ context.Context, n domain.WelcomeNotice) bool {
	email, err := WelcomeEmail(n, m.publicURL)
	return m.print("welcome", email, err)
}
