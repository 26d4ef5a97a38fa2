package timing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"future-you/internal/domain"
)

// MessageLister отдаёт письма пользователя в порядке создания.
type MessageLister interface {
	ListByUser(ctx context.Context, userID int64, status *domain.MessageStatus) ([]domain.Message, error)
}

// Service загружает историю пользователя и передаёт её движку.
type Service struct {
	messages MessageLister
	emotions domain.EmotionSource
	engine   *Engine
	log      zerolog.Logger
}

// NewService создаёт сервис тайминга. emotions может быть nil.
func NewService(messages MessageLister, emotions domain.EmotionSource, engine *Engine, logger zerolog.Logger) *Service {
	return &Service{
		messages: messages,
		emotions: emotions,
		engine:   engine,
		log:      logger.With().Str("component", "timing").Logger(),
	}
}

// ComputeDeliveryTime вычисляет дату доставки. Ошибки чтения истории не прерывают вычисление:
// движок работает с пустой историей.
func (s *Service) ComputeDeliveryTime(ctx context.Context, content string, userID int64, mode domain.TimingMode, explicit *time.Time) Decision {
	in := Input{Content: content, Mode: mode, Explicit: explicit}
	if mode != domain.TimingSpecificDate || explicit == nil {
		in.History = s.loadHistory(ctx, userID)
	}
	return s.engine.Compute(in)
}

// Explain формирует пояснение к решению движка.
func (s *Service) Explain(d Decision) string {
	return d.Explain(s.engine.Now())
}

func (s *Service) loadHistory(ctx context.Context, userID int64) History {
	var h History
	msgs, err := s.messages.ListByUser(ctx, userID, nil)
	if err != nil {
		s.log.Warn().Err(err).Int64("user", userID).Msg("timing: не удалось загрузить историю писем")
	}
	for _, m := range msgs {
		h.MessageCreatedAt = append(h.MessageCreatedAt, m.CreatedAt)
	}
	if s.emotions == nil {
		return h
	}
	emotions, err := s.emotions.ListRecentEmotions(ctx, userID, EmotionWindow)
	if err != nil {
		s.log.Warn().Err(err).Int64("user", userID).Msg("timing: не удалось загрузить эмоциональную историю")
		return h
	}
	h.Emotions = emotions
	return h
}
