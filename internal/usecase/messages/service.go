package messages

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
	"future-you/internal/usecase/timing"
)

const maxContentRunes = 10000

// Timer вычисляет дату доставки письма.
type Timer interface {
	ComputeDeliveryTime(ctx context.Context, content string, userID int64, mode domain.TimingMode, explicit *time.Time) timing.Decision
	Explain(d timing.Decision) string
}

// UserGetter возвращает владельца письма.
type UserGetter interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

// Service управляет письмами пользователя.
type Service struct {
	repo   domain.MessageRepo
	users  UserGetter
	cipher domain.Cipher
	timer  Timer
	events domain.BusinessMetricRepo
	log    zerolog.Logger
	now    func() time.Time
}

// NewService создаёт сервис писем.
func NewService(repo domain.MessageRepo, users UserGetter, cipher domain.Cipher, timer Timer, events domain.BusinessMetricRepo, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		cipher: cipher,
		timer:  timer,
		events: events,
		log:    logger.With().Str("component", "messages").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput — данные нового письма.
type CreateInput struct {
	Content      string
	Type         domain.MessageType
	Mode         domain.TimingMode
	ScheduledFor *time.Time
	Category     string
	Tags         []string
}

// View — письмо вместе с расшифрованным текстом.
type View struct {
	Message     domain.Message
	Content     string
	Explanation string
	// Unreadable выставлен, если текст не удалось расшифровать; Content в этом случае пуст.
	Unreadable bool
}

// Preview — результат предварительного расчёта даты доставки.
type Preview struct {
	ScheduledFor time.Time
	Mode         domain.TimingMode
	Confidence   int
	Explanation  string
	Context      map[string]any
}

func validate(in CreateInput) (CreateInput, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return in, fmt.Errorf("%w: content is empty", domain.ErrValidation)
	}
	if len([]rune(in.Content)) > maxContentRunes {
		return in, fmt.Errorf("%w: content exceeds %d characters", domain.ErrValidation, maxContentRunes)
	}
	if in.Type == "" {
		in.Type = domain.MessageTypeText
	}
	switch in.Type {
	case domain.MessageTypeText, domain.MessageTypeVoice, domain.MessageTypeVideo:
	default:
		return in, fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, in.Type)
	}
	if in.Mode == "" {
		in.Mode = domain.TimingAIOptimal
	}
	if _, err := domain.ParseTimingMode(string(in.Mode)); err != nil {
		return in, err
	}
	if in.Mode == domain.TimingSpecificDate && in.ScheduledFor == nil {
		return in, fmt.Errorf("%w: scheduled_for is required for specific_date", domain.ErrValidation)
	}
	if in.Mode != domain.TimingSpecificDate {
		in.ScheduledFor = nil
	}
	return in, nil
}

// Quota возвращает использование месячного лимита писем.
func (s *Service) Quota(ctx context.Context, userID int64) (domain.MessageQuota, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.MessageQuota{}, fmt.Errorf("получение пользователя: %w", err)
	}
	return s.quotaFor(ctx, user)
}

func (s *Service) quotaFor(ctx context.Context, user domain.User) (domain.MessageQuota, error) {
	quota := domain.MessageQuota{Plan: user.Plan()}
	used, err := s.repo.CountCreatedSince(ctx, user.ID, domain.MonthStart(s.now()))
	if err != nil {
		return quota, fmt.Errorf("подсчёт писем: %w", err)
	}
	quota.UsedThisMonth = used
	return quota, nil
}

// Create шифрует письмо, вычисляет дату доставки и сохраняет его в статусе scheduled.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (View, error) {
	in, err := validate(in)
	if err != nil {
		return View{}, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("получение пользователя: %w", err)
	}
	quota, err := s.quotaFor(ctx, user)
	if err != nil {
		return View{}, err
	}
	if !quota.Allowed() {
		return View{}, fmt.Errorf("%w: %d of %d messages used this month", domain.ErrQuotaExceeded, quota.UsedThisMonth, quota.Plan.MonthlyMessageLimit)
	}

	encrypted, err := s.cipher.Encrypt(in.Content, user.EncryptionKey)
	if err != nil {
		return View{}, fmt.Errorf("шифрование письма: %w", err)
	}

	decision := s.timer.ComputeDeliveryTime(ctx, in.Content, user.ID, in.Mode, in.ScheduledFor)
	explanation := s.timer.Explain(decision)

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = decision.Message.Category
	}
	scheduledFor := decision.ScheduledFor.UTC()
	now := s.now()
	msg := domain.Message{
		ID:               uuid.New(),
		UserID:           user.ID,
		EncryptedContent: encrypted,
		Type:             in.Type,
		Status:           domain.MessageStatusScheduled,
		TimingMode:       in.Mode,
		ScheduledFor:     &scheduledFor,
		Category:         category,
		Tags:             NormalizeTags(slices.Concat(in.Tags, decision.Message.DerivedTags())),
		AIContext:        decision.Snapshot(),
		ConfidenceScore:  decision.Confidence,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		return View{}, fmt.Errorf("сохранение письма: %w", err)
	}
	metrics.MessagesCreated.WithLabelValues(string(in.Mode)).Inc()

	msgID := msg.ID
	if err := s.events.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:      domain.BusinessMetricEventMessageCreated,
		UserID:     &user.ID,
		MessageID:  &msgID,
		Metadata:   map[string]any{"timing_mode": string(in.Mode), "delay_days": decision.DelayDays},
		OccurredAt: now,
	}); err != nil {
		s.log.Warn().Err(err).Str("message", msg.ID.String()).Msg("не удалось записать бизнес-метрику")
	}
	s.log.Info().
		Int64("user", user.ID).
		Str("message", msg.ID.String()).
		Str("mode", string(in.Mode)).
		Time("scheduled_for", scheduledFor).
		Msg("письмо запланировано")

	return View{Message: msg, Content: in.Content, Explanation: explanation}, nil
}

// PreviewTiming вычисляет дату доставки без сохранения письма.
func (s *Service) PreviewTiming(ctx context.Context, userID int64, content string, mode domain.TimingMode, explicit *time.Time) (Preview, error) {
	in, err := validate(CreateInput{Content: content, Mode: mode, ScheduledFor: explicit})
	if err != nil {
		return Preview{}, err
	}
	d := s.timer.ComputeDeliveryTime(ctx, in.Content, userID, in.Mode, in.ScheduledFor)
	return Preview{
		ScheduledFor: d.ScheduledFor.UTC(),
		Mode:         d.Mode,
		Confidence:   d.Confidence,
		Explanation:  s.timer.Explain(d),
		Context:      d.Snapshot(),
	}, nil
}

// owned загружает письмо и проверяет владельца. Чужое письмо неотличимо от отсутствующего.
func (s *Service) owned(ctx context.Context, userID int64, id uuid.UUID) (domain.Message, error) {
	msg, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.UserID != userID {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	return msg, nil
}

func (s *Service) view(msg domain.Message, user domain.User) View {
	plain, err := s.cipher.Decrypt(msg.EncryptedContent, user.EncryptionKey)
	if err != nil {
		s.log.Error().Err(err).Str("message", msg.ID.String()).Msg("не удалось расшифровать письмо")
		return View{Message: msg, Unreadable: true}
	}
	return View{Message: msg, Content: plain}
}

// Get возвращает письмо владельцу вместе с текстом.
func (s *Service) Get(ctx context.Context, userID int64, id uuid.UUID) (View, error) {
	msg, err := s.owned(ctx, userID, id)
	if err != nil {
		return View{}, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("получение пользователя: %w", err)
	}
	return s.view(msg, user), nil
}

// List возвращает письма пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userID int64, status *domain.MessageStatus) ([]View, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	msgs, err := s.repo.ListByUser(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("список писем: %w", err)
	}
	views := make([]View, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		views = append(views, s.view(msgs[i], user))
	}
	return views, nil
}

// MarkRead отмечает доставленное письмо прочитанным.
func (s *Service) MarkRead(ctx context.Context, userID int64, id uuid.UUID) (domain.Message, error) {
	msg, err := s.owned(ctx, userID, id)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.Status == domain.MessageStatusRead {
		return msg, nil
	}
	if !msg.Status.CanTransitionTo(domain.MessageStatusRead) {
		return domain.Message{}, fmt.Errorf("%w: %s -> read", domain.ErrInvalidTransition, msg.Status)
	}
	at := s.now()
	ok, err := s.repo.MarkRead(ctx, userID, id, at)
	if err != nil {
		return domain.Message{}, fmt.Errorf("отметка прочтения: %w", err)
	}
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: письмо изменилось", domain.ErrInvalidTransition)
	}
	msg.Status = domain.MessageStatusRead
	msg.ReadAt = &at
	return msg, nil
}

// Archive переносит письмо в архив.
func (s *Service) Archive(ctx context.Context, userID int64, id uuid.UUID) error {
	msg, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if !msg.Status.CanTransitionTo(domain.MessageStatusArchived) {
		return fmt.Errorf("%w: %s -> archived", domain.ErrInvalidTransition, msg.Status)
	}
	ok, err := s.repo.Archive(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("архивирование: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: письмо уже в архиве", domain.ErrInvalidTransition)
	}
	return nil
}

// Delete удаляет письмо владельца.
func (s *Service) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	ok, err := s.repo.DeleteMessage(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("удаление письма: %w", err)
	}
	if !ok {
		return domain.ErrMessageNotFound
	}
	return nil
}

// NormalizeTags убирает пустые и повторяющиеся без учёта регистра теги.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}
