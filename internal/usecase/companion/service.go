package companion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

const (
	maxChatRunes   = 2000
	maxIntentRunes = 1000
	historyLimit   = 10
	maxSuggestions = 3
)

// UserGetter возвращает владельца компаньона.
type UserGetter interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

// Service ведёт разговоры пользователя с ИИ-компаньоном.
type Service struct {
	repo   domain.CompanionRepo
	users  UserGetter
	model  domain.CompanionModel
	cipher domain.Cipher
	log    zerolog.Logger
	now    func() time.Time
}

// NewService создаёт сервис компаньона.
func NewService(repo domain.CompanionRepo, users UserGetter, model domain.CompanionModel, cipher domain.Cipher, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		model:  model,
		cipher: cipher,
		log:    logger.With().Str("component", "companion").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ChatResult — ответ компаньона на реплику.
type ChatResult struct {
	Response    string
	Emotion     string
	Suggestions []string
	CreatedAt   time.Time
}

func firstName(u domain.User) string {
	fields := strings.Fields(u.FullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Companion возвращает настройки компаньона, создавая их при первом обращении.
func (s *Service) Companion(ctx context.Context, userID int64) (domain.Companion, error) {
	c, err := s.repo.GetOrCreateCompanion(ctx, userID)
	if err != nil {
		return domain.Companion{}, fmt.Errorf("получение компаньона: %w", err)
	}
	return c, nil
}

// UpdatePersonality меняет стиль общения и дополнительные инструкции.
func (s *Service) UpdatePersonality(ctx context.Context, userID int64, rawPersonality, instructions string) (domain.Companion, error) {
	personality, err := domain.ParsePersonality(rawPersonality)
	if err != nil {
		return domain.Companion{}, err
	}
	instructions = strings.TrimSpace(instructions)
	if len([]rune(instructions)) > maxChatRunes {
		return domain.Companion{}, fmt.Errorf("%w: custom_instructions exceeds %d characters", domain.ErrValidation, maxChatRunes)
	}
	if _, err := s.repo.GetOrCreateCompanion(ctx, userID); err != nil {
		return domain.Companion{}, fmt.Errorf("получение компаньона: %w", err)
	}
	c, err := s.repo.UpdateCompanion(ctx, userID, personality, instructions)
	if err != nil {
		return domain.Companion{}, fmt.Errorf("обновление компаньона: %w", err)
	}
	return c, nil
}

// history расшифровывает последние реплики. Нечитаемые реплики пропускаются.
func (s *Service) history(ctx context.Context, user domain.User) []domain.CompanionExchange {
	stored, err := s.repo.ListConversations(ctx, user.ID, historyLimit)
	if err != nil {
		s.log.Warn().Err(err).Int64("user", user.ID).Msg("история разговора недоступна")
		return nil
	}
	history := make([]domain.CompanionExchange, 0, len(stored))
	for _, ex := range stored {
		userMsg, err := s.cipher.Decrypt(ex.UserMessage, user.EncryptionKey)
		if err != nil {
			s.log.Error().Err(err).Int64("conversation", ex.ID).Msg("не удалось расшифровать реплику")
			continue
		}
		reply, err := s.cipher.Decrypt(ex.CompanionResponse, user.EncryptionKey)
		if err != nil {
			s.log.Error().Err(err).Int64("conversation", ex.ID).Msg("не удалось расшифровать реплику")
			continue
		}
		ex.UserMessage, ex.CompanionResponse = userMsg, reply
		history = append(history, ex)
	}
	return history
}

// Chat отвечает на реплику, распознаёт эмоцию и сохраняет обмен репликами.
// Эмоция попадает в историю и влияет на эмоциональный фон при расчёте даты доставки.
func (s *Service) Chat(ctx context.Context, userID int64, message string) (ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatResult{}, fmt.Errorf("%w: message is empty", domain.ErrValidation)
	}
	if len([]rune(message)) > maxChatRunes {
		return ChatResult{}, fmt.Errorf("%w: message exceeds %d characters", domain.ErrValidation, maxChatRunes)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("получение пользователя: %w", err)
	}
	c, err := s.repo.GetOrCreateCompanion(ctx, userID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("получение компаньона: %w", err)
	}

	reply, err := s.model.Reply(ctx, domain.CompanionReplyRequest{
		Personality:  c.Personality,
		Instructions: c.CustomInstructions,
		UserName:     firstName(user),
		History:      s.history(ctx, user),
		Message:      message,
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: %w", domain.ErrCompanionUnavailable, err)
	}

	emotion, err := s.model.DetectEmotion(ctx, message)
	if err != nil {
		s.log.Warn().Err(err).Int64("user", userID).Msg("эмоция не распознана")
		emotion = ""
	}

	encMsg, err := s.cipher.Encrypt(message, user.EncryptionKey)
	if err != nil {
		return ChatResult{}, fmt.Errorf("шифрование реплики: %w", err)
	}
	encReply, err := s.cipher.Encrypt(reply, user.EncryptionKey)
	if err != nil {
		return ChatResult{}, fmt.Errorf("шифрование ответа: %w", err)
	}
	saved, err := s.repo.SaveConversation(ctx, domain.CompanionExchange{
		UserID:            userID,
		UserMessage:       encMsg,
		CompanionResponse: encReply,
		Emotion:           emotion,
		CreatedAt:         s.now(),
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("сохранение разговора: %w", err)
	}
	label := emotion
	if label == "" {
		label = "unknown"
	}
	metrics.CompanionChats.WithLabelValues(label).Inc()
	s.log.Info().Int64("user", userID).Str("emotion", label).Msg("ответ компаньона")

	return ChatResult{
		Response:    reply,
		Emotion:     emotion,
		Suggestions: Suggestions(message),
		CreatedAt:   saved.CreatedAt,
	}, nil
}

var suggestionRules = []struct {
	words      []string
	suggestion string
}{
	{[]string{"struggling", "difficult", "hard", "challenge", "тяжело", "трудно", "сложно"}, "Write a message to your future self about overcoming this challenge"},
	{[]string{"when", "timing", "deliver", "когда", "доставить"}, "Try AI-optimal timing to deliver your message at the right moment"},
	{[]string{"achieved", "accomplished", "proud", "добился", "горжусь", "получилось"}, "Capture this achievement in a message to remember later"},
}

// Suggestions подбирает до трёх подсказок по ключевым словам реплики.
func Suggestions(message string) []string {
	lower := strings.ToLower(message)
	out := make([]string, 0, maxSuggestions)
	for _, rule := range suggestionRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				out = append(out, rule.suggestion)
				break
			}
		}
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// DailyCheckIn возвращает приветствие компаньона на сегодня.
func (s *Service) DailyCheckIn(ctx context.Context, userID int64) (string, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("получение пользователя: %w", err)
	}
	c, err := s.repo.GetOrCreateCompanion(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("получение компаньона: %w", err)
	}
	text, err := s.model.DailyCheckIn(ctx, c.Personality, firstName(user))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCompanionUnavailable, err)
	}
	return text, nil
}

// CraftMessage помогает составить письмо в будущее по намерению пользователя.
func (s *Service) CraftMessage(ctx context.Context, userID int64, intent string) (domain.CraftedMessage, error) {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return domain.CraftedMessage{}, fmt.Errorf("%w: intent is empty", domain.ErrValidation)
	}
	if len([]rune(intent)) > maxIntentRunes {
		return domain.CraftedMessage{}, fmt.Errorf("%w: intent exceeds %d characters", domain.ErrValidation, maxIntentRunes)
	}
	c, err := s.repo.GetOrCreateCompanion(ctx, userID)
	if err != nil {
		return domain.CraftedMessage{}, fmt.Errorf("получение компаньона: %w", err)
	}
	crafted, err := s.model.CraftMessage(ctx, c.Personality, intent)
	if err != nil {
		return domain.CraftedMessage{}, fmt.Errorf("%w: %w", domain.ErrCompanionUnavailable, err)
	}
	return crafted, nil
}
