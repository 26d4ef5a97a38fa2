package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus описывает жизненный цикл письма.
type MessageStatus string

const (
	MessageStatusDraft     MessageStatus = "draft"
	MessageStatusScheduled MessageStatus = "scheduled"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusArchived  MessageStatus = "archived"
)

// MessageType описывает формат содержимого.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeVoice MessageType = "voice"
	MessageTypeVideo MessageType = "video"
)

var messageTransitions = map[MessageStatus][]MessageStatus{
	MessageStatusDraft:     {MessageStatusScheduled},
	MessageStatusScheduled: {MessageStatusDelivered},
	MessageStatusDelivered: {MessageStatusRead},
}

// ParseMessageStatus проверяет строковое значение статуса.
func ParseMessageStatus(raw string) (MessageStatus, bool) {
	switch s := MessageStatus(raw); s {
	case MessageStatusDraft, MessageStatusScheduled, MessageStatusDelivered, MessageStatusRead, MessageStatusArchived:
		return s, true
	}
	return "", false
}

// CanTransitionTo сообщает, допустим ли переход. В архив можно перейти из любого состояния, кроме самого архива.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	if next == MessageStatusArchived {
		return s != MessageStatusArchived
	}
	for _, allowed := range messageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Opened сообщает, что письмо уже доставлено и его можно показывать.
func (s MessageStatus) Opened() bool {
	return s == MessageStatusDelivered || s == MessageStatusRead
}

// Message — письмо самому себе в будущее.
type Message struct {
	ID               uuid.UUID
	UserID           int64
	EncryptedContent string
	Type             MessageType
	Status           MessageStatus
	TimingMode       TimingMode
	ScheduledFor     *time.Time
	DeliveredAt      *time.Time
	ReadAt           *time.Time
	Category         string
	Tags             []string
	AIContext        map[string]any
	ConfidenceScore  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsDue сообщает, пора ли доставлять письмо.
func (m Message) IsDue(now time.Time) bool {
	return m.Status == MessageStatusScheduled && m.ScheduledFor != nil && !m.ScheduledFor.After(now)
}
