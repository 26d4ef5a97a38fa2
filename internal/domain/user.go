package domain

import (
	"strings"
	"time"
)

// User хранит учётную запись автора писем.
type User struct {
	ID             int64
	Email          string
	PasswordHash   string
	FullName       string
	Tier           SubscriptionTier
	EncryptionKey  string
	TelegramChatID *int64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLoginAt    *time.Time
}

// DisplayName возвращает имя для обращения в уведомлениях.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return "there"
}

// Plan возвращает тариф пользователя.
func (u User) Plan() TierPlan {
	return PlanForTier(u.Tier)
}
