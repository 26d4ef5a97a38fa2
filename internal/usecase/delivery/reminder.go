package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

const reminderGuardTTL = 36 * time.Hour

var errReminderNotSent = errors.New("напоминание не отправлено")

// ReminderResult — итог ежедневной рассылки напоминаний.
type ReminderResult struct {
	Users   int
	Sent    int
	Skipped int
	Failed  int
}

// Reminder напоминает пользователям о доставленных, но не прочитанных письмах.
type Reminder struct {
	backlog       domain.BacklogRepo
	notifier      domain.Notifier
	guard         domain.Cache
	events        domain.BusinessMetricRepo
	notifyTimeout time.Duration
	log           zerolog.Logger
}

// NewReminder создаёт рассылку напоминаний. guard и events могут быть nil.
func NewReminder(backlog domain.BacklogRepo, notifier domain.Notifier, guard domain.Cache, events domain.BusinessMetricRepo, notifyTimeout time.Duration, logger zerolog.Logger) *Reminder {
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &Reminder{
		backlog:       backlog,
		notifier:      notifier,
		guard:         guard,
		events:        events,
		notifyTimeout: notifyTimeout,
		log:           logger.With().Str("component", "reminder").Logger(),
	}
}

// Run отправляет по одному напоминанию каждому пользователю с непрочитанными письмами.
// Отказ для одного пользователя не влияет на остальных.
func (r *Reminder) Run(ctx context.Context, day time.Time) ReminderResult {
	backlog, err := r.backlog.ListUnreadBacklog(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("reminder: не удалось получить пользователей с непрочитанными письмами")
		metrics.RemindersTotal.WithLabelValues("aborted").Inc()
		return ReminderResult{}
	}

	res := ReminderResult{Users: len(backlog)}
	for _, item := range backlog {
		if ctx.Err() != nil {
			break
		}
		if item.Count <= 0 {
			res.Skipped++
			continue
		}
		sent, err := r.remind(ctx, item, day)
		switch {
		case err != nil:
			res.Failed++
			metrics.RemindersTotal.WithLabelValues("error").Inc()
			r.log.Error().Err(err).Int64("user", item.User.ID).Msg("reminder: не удалось отправить напоминание")
		case !sent:
			res.Skipped++
			metrics.RemindersTotal.WithLabelValues("duplicate").Inc()
		default:
			res.Sent++
			metrics.RemindersTotal.WithLabelValues("sent").Inc()
			r.record(ctx, item)
		}
	}
	r.log.Info().Int("users", res.Users).Int("sent", res.Sent).Int("skipped", res.Skipped).Int("failed", res.Failed).Msg("reminder: рассылка завершена")
	return res
}

func (r *Reminder) remind(ctx context.Context, item domain.UnreadBacklog, day time.Time) (bool, error) {
	send := func(ctx context.Context) error {
		notifyCtx, cancel := context.WithTimeout(ctx, r.notifyTimeout)
		defer cancel()
		if !r.notifier.NotifyBacklog(notifyCtx, domain.BacklogNotice{To: domain.RecipientFor(item.User), Pending: item.Count}) {
			return errReminderNotSent
		}
		return nil
	}
	if r.guard == nil {
		return true, send(ctx)
	}
	key := fmt.Sprintf("reminder:%d:%s", item.User.ID, day.Format("2006-01-02"))
	executed, err := r.guard.Once(ctx, key, reminderGuardTTL, send)
	if err != nil && !executed {
		// Redis недоступен: отправляем без защиты от повторов
		r.log.Warn().Err(err).Int64("user", item.User.ID).Msg("reminder: защита от повторов недоступна, отправляем напрямую")
		return true, send(ctx)
	}
	return executed, err
}

func (r *Reminder) record(ctx context.Context, item domain.UnreadBacklog) {
	if r.events == nil {
		return
	}
	userID := item.User.ID
	err := r.events.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricEventReminderSent,
		UserID:   &userID,
		Metadata: map[string]any{"pending": item.Count},
	})
	if err != nil {
		r.log.Warn().Err(err).Int64("user", userID).Msg("reminder: не удалось сохранить бизнес-метрику")
	}
}
