package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

// UserGetter находит владельца письма.
type UserGetter interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

// Config задаёт параметры прохода доставки.
type Config struct {
	// BatchSize ограничивает число писем за проход. 0 и отрицательные значения — без ограничения.
	BatchSize int
	// Workers — сколько писем обрабатывается параллельно внутри одного прохода.
	Workers       int
	NotifyTimeout time.Duration
	Policy        Policy
}

const defaultNotifyTimeout = 10 * time.Second

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeSkipped
	outcomeRetry
	outcomeFailed
)

// SweepResult — итог одного прохода.
type SweepResult struct {
	Due       int
	Delivered int
	// Skipped — владелец удалён или письмо уже доставлено параллельным проходом.
	Skipped int
	// Retried — письмо оставлено в scheduled по политике отказов.
	Retried int
	Failed  int
	Aborted bool
}

// Sweeper находит письма, у которых наступил срок, и доставляет их.
type Sweeper struct {
	store    domain.DueMessageStore
	users    UserGetter
	cipher   domain.Cipher
	notifier domain.Notifier
	cfg      Config
	now      func() time.Time
	log      zerolog.Logger
}

// NewSweeper создаёт обработчик доставки.
func NewSweeper(store domain.DueMessageStore, users UserGetter, cipher domain.Cipher, notifier domain.Notifier, cfg Config, logger zerolog.Logger) *Sweeper {
	if cfg.BatchSize < 0 {
		cfg.BatchSize = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	return &Sweeper{
		store:    store,
		users:    users,
		cipher:   cipher,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.With().Str("component", "delivery_sweep").Logger(),
	}
}

// WithClock подменяет источник времени.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep выполняет один проход. Ошибки не выходят за пределы прохода: они логируются,
// а письмо остаётся в scheduled до следующего прохода.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	due, err := s.store.ListDue(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("delivery: не удалось получить письма к доставке")
		metrics.SweepsTotal.WithLabelValues("aborted").Inc()
		return SweepResult{Aborted: true}
	}
	metrics.DueMessages.Set(float64(len(due)))

	outcomes := make([]outcome, len(due))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, msg := range due {
		if ctx.Err() != nil {
			// остаток обработаем при следующем запуске
			for j := i; j < len(due); j++ {
				outcomes[j] = outcomeRetry
			}
			break
		}
		g.Go(func() error {
			outcomes[i] = s.deliver(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{Due: len(due)}
	for _, o := range outcomes {
		switch o {
		case outcomeDelivered:
			res.Delivered++
		case outcomeSkipped:
			res.Skipped++
		case outcomeRetry:
			res.Retried++
		case outcomeFailed:
			res.Failed++
		}
	}
	metrics.SweepsTotal.WithLabelValues("ok").Inc()
	if res.Due > 0 {
		s.log.Info().
			Int("due", res.Due).
			Int("delivered", res.Delivered).
			Int("skipped", res.Skipped).
			Int("retried", res.Retried).
			Int("failed", res.Failed).
			Dur("took", time.Since(start)).
			Msg("delivery: проход завершён")
	}
	return res
}

func (s *Sweeper) deliver(ctx context.Context, msg domain.Message) (res outcome) {
	logger := s.log.With().Str("message", msg.ID.String()).Int64("user", msg.UserID).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("delivery: паника при доставке письма")
			metrics.DeliveryFailures.WithLabelValues("panic").Inc()
			res = outcomeFailed
		}
	}()

	user, err := s.users.GetUser(ctx, msg.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		logger.Warn().Msg("delivery: владелец письма не найден, пропускаем")
		metrics.DeliveryFailures.WithLabelValues("user_missing").Inc()
		return outcomeSkipped
	}
	if err != nil {
		logger.Error().Err(err).Msg("delivery: ошибка получения владельца")
		metrics.DeliveryFailures.WithLabelValues("user").Inc()
		return outcomeFailed
	}

	preview, err := s.cipher.Decrypt(msg.EncryptedContent, user.EncryptionKey)
	if err != nil {
		metrics.DeliveryFailures.WithLabelValues("decrypt").Inc()
		if s.cfg.Policy.DecryptFailure == ActionRetryNextTick {
			logger.Error().Err(err).Msg("delivery: не удалось расшифровать письмо, повторим в следующем проходе")
			return outcomeRetry
		}
		logger.Warn().Err(err).Msg("delivery: не удалось расшифровать письмо, доставляем без превью")
		preview = ""
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	notified := s.notifier.NotifyMessageReady(notifyCtx, domain.MessageReadyNotice{
		To:        domain.RecipientFor(user),
		Preview:   preview,
		MessageID: msg.ID,
		CreatedAt: msg.CreatedAt,
	})
	cancel()
	if !notified {
		metrics.DeliveryFailures.WithLabelValues("notify").Inc()
		if s.cfg.Policy.NotifyFailure == ActionRetryNextTick {
			logger.Warn().Msg("delivery: уведомление не отправлено, повторим в следующем проходе")
			return outcomeRetry
		}
		logger.Warn().Msg("delivery: уведомление не отправлено, письмо всё равно доставлено")
	}

	ok, err := s.store.MarkDelivered(ctx, msg.ID, s.now())
	if err != nil {
		logger.Error().Err(fmt.Errorf("перевод в delivered: %w", err)).Msg("delivery: не удалось сохранить доставку")
		metrics.DeliveryFailures.WithLabelValues("transition").Inc()
		return outcomeFailed
	}
	if !ok {
		logger.Debug().Msg("delivery: письмо уже доставлено другим проходом")
		return outcomeSkipped
	}
	metrics.MessagesDelivered.Inc()
	logger.Info().Msg("delivery: письмо доставлено")
	return outcomeDelivered
}
