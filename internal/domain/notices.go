package domain

import (
	"time"

	"github.com/google/uuid"
)

// Recipient — адресат уведомления.
type Recipient struct {
	UserID         int64
	Email          string
	Name           string
	TelegramChatID *int64
}

// RecipientFor собирает адресата из пользователя.
func RecipientFor(u User) Recipient {
	return Recipient{UserID: u.ID, Email: u.Email, Name: u.DisplayName(), TelegramChatID: u.TelegramChatID}
}

// MessageReadyNotice сообщает, что письмо из прошлого доставлено.
type MessageReadyNotice struct {
	To        Recipient
	Preview   string
	MessageID uuid.UUID
	CreatedAt time.Time
}

// BacklogNotice напоминает о непрочитанных письмах.
type BacklogNotice struct {
	To      Recipient
	Pending int
}

// WelcomeNotice отправляется после регистрации.
type WelcomeNotice struct {
	To Recipient
}

// UnreadBacklog — количество доставленных, но не прочитанных писем пользователя.
type UnreadBacklog struct {
	User  User
	Count int
}
