package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"future-you/internal/domain"
)

const (
	minPasswordLen = 8
	// bcrypt учитывает не больше 72 байт пароля.
	maxPasswordBytes = 72
)

// TokenIssuer выпускает токены доступа.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// KeyGenerator создаёт ключ шифрования писем для нового пользователя.
type KeyGenerator func() (string, error)

// Session — результат регистрации или входа.
type Session struct {
	Token string
	User  domain.User
}

// Service регистрирует пользователей и выдаёт токены.
type Service struct {
	users    domain.UserRepo
	tokens   TokenIssuer
	keys     KeyGenerator
	notifier domain.Notifier
	events   domain.BusinessMetricRepo
	log      zerolog.Logger
	cost     int
	timeout  time.Duration
	now      func() time.Time
}

// NewService создаёт сервис аутентификации. notifier может быть nil.
func NewService(users domain.UserRepo, tokens TokenIssuer, keys KeyGenerator, notifier domain.Notifier, events domain.BusinessMetricRepo, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		keys:     keys,
		notifier: notifier,
		events:   events,
		log:      logger.With().Str("component", "auth").Logger(),
		cost:     bcrypt.DefaultCost,
		timeout:  10 * time.Second,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return "", fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	return strings.ToLower(addr.Address), nil
}

// Register создаёт пользователя, отправляет приветствие и возвращает токен.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < minPasswordLen {
		return Session{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}
	if len(password) > maxPasswordBytes {
		return Session{}, fmt.Errorf("%w: password must be at most %d bytes", domain.ErrValidation, maxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("хэширование пароля: %w", err)
	}
	key, err := s.keys()
	if err != nil {
		return Session{}, fmt.Errorf("ключ шифрования: %w", err)
	}
	user, err := s.users.CreateUser(ctx, domain.User{
		Email:         email,
		PasswordHash:  string(hash),
		FullName:      strings.TrimSpace(fullName),
		Tier:          domain.TierFree,
		EncryptionKey: key,
		IsActive:      true,
	})
	if err != nil {
		return Session{}, err
	}

	if s.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		if !s.notifier.NotifyWelcome(notifyCtx, domain.WelcomeNotice{To: domain.RecipientFor(user)}) {
			s.log.Warn().Int64("user", user.ID).Msg("приветственное письмо не отправлено")
		}
		cancel()
	}
	if err := s.events.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:      domain.BusinessMetricEventUserRegistered,
		UserID:     &user.ID,
		OccurredAt: s.now(),
	}); err != nil {
		s.log.Warn().Err(err).Int64("user", user.ID).Msg("не удалось записать бизнес-метрику")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	s.log.Info().Int64("user", user.ID).Msg("пользователь зарегистрирован")
	return Session{Token: token, User: user}, nil
}

// Login проверяет пароль и возвращает токен.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrUserNotFound) {
		return Session{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("поиск пользователя: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return Session{}, domain.ErrAccountDisabled
	}
	now := s.now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		s.log.Warn().Err(err).Int64("user", user.ID).Msg("не удалось обновить время входа")
	} else {
		user.LastLoginAt = &now
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}
