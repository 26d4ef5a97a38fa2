package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *int64
	MessageID  *uuid.UUID
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventUserRegistered фиксирует регистрацию нового пользователя.
	BusinessMetricEventUserRegistered = "user_registered"
	// BusinessMetricEventMessageCreated фиксирует создание и планирование письма.
	BusinessMetricEventMessageCreated = "message_created"
	// BusinessMetricEventMessageDelivered фиксирует перевод письма в delivered.
	BusinessMetricEventMessageDelivered = "message_delivered"
	// BusinessMetricEventMessageRead фиксирует прочтение доставленного письма.
	BusinessMetricEventMessageRead = "message_read"
	// BusinessMetricEventReminderSent фиксирует отправку ежедневного напоминания.
	BusinessMetricEventReminderSent = "reminder_sent"
	// BusinessMetricEventCompanionChat фиксирует реплику в разговоре с компаньоном.
	BusinessMetricEventCompanionChat = "companion_chat"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
