package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusCounts — количество писем по статусам.
type StatusCounts struct {
	Draft     int
	Scheduled int
	Delivered int
	Read      int
	Archived  int
}

// DeliveryOverview — сводка по доставке для всей системы.
type DeliveryOverview struct {
	Counts           StatusCounts
	ReadyForDelivery int
	Upcoming7Days    int
}

// PendingDelivery — запланированное письмо с данными адресата для отчётов.
type PendingDelivery struct {
	MessageID    uuid.UUID
	UserEmail    string
	ScheduledFor time.Time
	TimingMode   TimingMode
	Category     string
	Tags         []string
}

// DailyCount — количество событий за день.
type DailyCount struct {
	Date  time.Time
	Count int
}

// UserDeliveryCounts — счётчики писем пользователя и ближайшая доставка.
type UserDeliveryCounts struct {
	Counts StatusCounts
	Next   *PendingDelivery
}

// DeliveryDurations — суммарные задержки доставки и прочтения.
type DeliveryDurations struct {
	DeliveredCount     int
	AvgCreateToDeliver time.Duration
	ReadCount          int
	AvgDeliverToRead   time.Duration
}
