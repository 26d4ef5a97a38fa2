package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageRepo хранит письма и их жизненный цикл.
type MessageRepo interface {
	SaveMessage(ctx context.Context, msg Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (Message, error)
	// ListByUser возвращает письма пользователя в порядке создания. status == nil означает все статусы.
	ListByUser(ctx context.Context, userID int64, status *MessageStatus) ([]Message, error)
	CountCreatedSince(ctx context.Context, userID int64, since time.Time) (int, error)
	// MarkRead переводит delivered -> read. false, если письмо не в статусе delivered.
	MarkRead(ctx context.Context, userID int64, id uuid.UUID, at time.Time) (bool, error)
	Archive(ctx context.Context, userID int64, id uuid.UUID) (bool, error)
	DeleteMessage(ctx context.Context, userID int64, id uuid.UUID) (bool, error)
}

// DueMessageStore — часть хранилища, с которой работает фоновая доставка.
type DueMessageStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]Message, error)
	// MarkDelivered атомарно переводит scheduled -> delivered. false, если письмо уже не в статусе scheduled.
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// UserRepo управляет пользователями.
type UserRepo interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

// EmotionSource отдаёт эмоциональные метки из последних разговоров с компаньоном.
type EmotionSource interface {
	ListRecentEmotions(ctx context.Context, userID int64, limit int) ([]string, error)
}

// BacklogRepo находит пользователей с непрочитанными письмами.
type BacklogRepo interface {
	ListUnreadBacklog(ctx context.Context) ([]UnreadBacklog, error)
}

// StatsRepo выполняет агрегирующие запросы для отчётов о доставке.
type StatsRepo interface {
	CountByStatus(ctx context.Context) (StatusCounts, error)
	CountScheduledBetween(ctx context.Context, from, to time.Time) (int, error)
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]PendingDelivery, error)
	ListOverdue(ctx context.Context, now time.Time) ([]PendingDelivery, error)
	DailyDeliveries(ctx context.Context, from, to time.Time) ([]DailyCount, error)
	DailyReads(ctx context.Context, from, to time.Time) ([]DailyCount, error)
	UserCounts(ctx context.Context, userID int64, now time.Time) (UserDeliveryCounts, error)
	Durations(ctx context.Context) (DeliveryDurations, error)
}

// Cipher шифрует содержимое писем ключом пользователя.
type Cipher interface {
	Encrypt(plaintext, key string) (string, error)
	// Decrypt возвращает ошибку, оборачивающую ErrDecryption, при битом шифротексте или чужом ключе.
	Decrypt(ciphertext, key string) (string, error)
}

// Notifier доставляет уведомления. Методы не возвращают ошибок: результат — признак успеха,
// а реакцию на неудачу выбирает вызывающая сторона.
type Notifier interface {
	NotifyMessageReady(ctx context.Context, notice MessageReadyNotice) bool
	NotifyBacklog(ctx context.Context, notice BacklogNotice) bool
	NotifyWelcome(ctx context.Context, notice WelcomeNotice) bool
}

// Cache используется для идемпотентных действий с TTL.
type Cache interface {
	// Once выполняет fn, если ключ ещё не занят. Первое значение — была ли выполнена fn.
	Once(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}
