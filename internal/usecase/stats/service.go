package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"future-you/internal/domain"
)

const (
	day = 24 * time.Hour

	DefaultUpcomingDays = 7
	DefaultTimelineDays = 30
	maxWindowDays       = 365
)

// Overview — сводка по доставке для всей системы.
type Overview struct {
	TotalMessages    int     `json:"total_messages"`
	Scheduled        int     `json:"scheduled"`
	Delivered        int     `json:"delivered"`
	Read             int     `json:"read"`
	ReadyForDelivery int     `json:"ready_for_delivery"`
	Upcoming7Days    int     `json:"upcoming_7_days"`
	DeliveryRate     float64 `json:"delivery_rate"`
	ReadRate         float64 `json:"read_rate"`
}

// Upcoming — письмо, которое будет доставлено в ближайшие дни.
type Upcoming struct {
	MessageID    uuid.UUID         `json:"message_id"`
	UserEmail    string            `json:"user_email"`
	ScheduledFor time.Time         `json:"scheduled_for"`
	DaysUntil    int               `json:"days_until"`
	TimingMode   domain.TimingMode `json:"delivery_timing"`
	Category     string            `json:"category"`
	Tags         []string          `json:"tags"`
}

// Overdue — письмо, срок доставки которого уже прошёл.
type Overdue struct {
	MessageID    uuid.UUID         `json:"message_id"`
	UserEmail    string            `json:"user_email"`
	ScheduledFor time.Time         `json:"scheduled_for"`
	DaysOverdue  int               `json:"days_overdue"`
	TimingMode   domain.TimingMode `json:"delivery_timing"`
}

// DayCount — количество событий за календарный день UTC.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Timeline — доставки и прочтения по дням.
type Timeline struct {
	DailyDeliveries []DayCount `json:"daily_deliveries"`
	DailyReads      []DayCount `json:"daily_reads"`
}

// NextDelivery — ближайшее письмо пользователя.
type NextDelivery struct {
	MessageID    uuid.UUID `json:"message_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
	DaysUntil    int       `json:"days_until"`
	Category     string    `json:"category"`
}

// UserStats — статистика доставки одного пользователя.
type UserStats struct {
	TotalMessages int           `json:"total_messages"`
	Scheduled     int           `json:"scheduled"`
	Delivered     int           `json:"delivered"`
	Read          int           `json:"read"`
	Unread        int           `json:"unread"`
	NextDelivery  *NextDelivery `json:"next_delivery"`
	ReadRate      float64       `json:"read_rate"`
}

// Performance — средние задержки доставки и прочтения.
type Performance struct {
	AvgWaitDays    float64 `json:"avg_wait_days"`
	AvgReadHours   float64 `json:"avg_read_hours"`
	TotalDelivered int     `json:"total_delivered"`
	TotalRead      int     `json:"total_read"`
}

// Service строит отчёты о доставке.
type Service struct {
	repo domain.StatsRepo
	now  func() time.Time
}

// NewService создаёт сервис статистики.
func NewService(repo domain.StatsRepo) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round(float64(part)/float64(total)*100, 2)
}

func clampDays(days, def int) int {
	if days <= 0 {
		return def
	}
	return min(days, maxWindowDays)
}

func wholeDays(d time.Duration) int {
	return int(d / day)
}

// Overview возвращает общую сводку.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	now := s.now()
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("счётчики статусов: %w", err)
	}
	ready, err := s.repo.CountScheduledBetween(ctx, time.Unix(0, 0).UTC(), now)
	if err != nil {
		return Overview{}, fmt.Errorf("готовые к доставке: %w", err)
	}
	upcoming, err := s.repo.CountScheduledBetween(ctx, now, now.Add(DefaultUpcomingDays*day))
	if err != nil {
		return Overview{}, fmt.Errorf("ближайшие доставки: %w", err)
	}
	opened := counts.Delivered + counts.Read
	total := counts.Scheduled + opened
	return Overview{
		TotalMessages:    total,
		Scheduled:        counts.Scheduled,
		Delivered:        counts.Delivered,
		Read:             counts.Read,
		ReadyForDelivery: ready,
		Upcoming7Days:    upcoming,
		DeliveryRate:     percent(opened, total),
		ReadRate:         percent(counts.Read, opened),
	}, nil
}

// Upcoming возвращает письма с доставкой в ближайшие days дней.
func (s *Service) Upcoming(ctx context.Context, days int) ([]Upcoming, error) {
	now := s.now()
	days = clampDays(days, DefaultUpcomingDays)
	pending, err := s.repo.ListScheduledBetween(ctx, now, now.Add(time.Duration(days)*day))
	if err != nil {
		return nil, fmt.Errorf("ближайшие доставки: %w", err)
	}
	res := make([]Upcoming, 0, len(pending))
	for _, p := range pending {
		res = append(res, Upcoming{
			MessageID:    p.MessageID,
			UserEmail:    p.UserEmail,
			ScheduledFor: p.ScheduledFor,
			DaysUntil:    wholeDays(p.ScheduledFor.Sub(now)),
			TimingMode:   p.TimingMode,
			Category:     p.Category,
			Tags:         p.Tags,
		})
	}
	return res, nil
}

// Overdue возвращает письма, которые должны были быть доставлены.
func (s *Service) Overdue(ctx context.Context) ([]Overdue, error) {
	now := s.now()
	pending, err := s.repo.ListOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("просроченные доставки: %w", err)
	}
	res := make([]Overdue, 0, len(pending))
	for _, p := range pending {
		res = append(res, Overdue{
			MessageID:    p.MessageID,
			UserEmail:    p.UserEmail,
			ScheduledFor: p.ScheduledFor,
			DaysOverdue:  wholeDays(now.Sub(p.ScheduledFor)),
			TimingMode:   p.TimingMode,
		})
	}
	return res, nil
}

// Timeline возвращает доставки и прочтения за последние days дней, включая дни без событий.
func (s *Service) Timeline(ctx context.Context, days int) (Timeline, error) {
	days = clampDays(days, DefaultTimelineDays)
	start := s.now().Add(-time.Duration(days) * day)
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, days)

	deliveries, err := s.repo.DailyDeliveries(ctx, from, to)
	if err != nil {
		return Timeline{}, fmt.Errorf("доставки по дням: %w", err)
	}
	reads, err := s.repo.DailyReads(ctx, from, to)
	if err != nil {
		return Timeline{}, fmt.Errorf("прочтения по дням: %w", err)
	}
	return Timeline{
		DailyDeliveries: fillDays(from, days, deliveries),
		DailyReads:      fillDays(from, days, reads),
	}, nil
}

func fillDays(from time.Time, days int, counts []domain.DailyCount) []DayCount {
	byDate := make(map[string]int, len(counts))
	for _, c := range counts {
		byDate[c.Date.UTC().Format(time.DateOnly)] += c.Count
	}
	res := make([]DayCount, 0, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format(time.DateOnly)
		res = append(res, DayCount{Date: date, Count: byDate[date]})
	}
	return res
}

// ForUser возвращает статистику пользователя.
func (s *Service) ForUser(ctx context.Context, userID int64) (UserStats, error) {
	now := s.now()
	uc, err := s.repo.UserCounts(ctx, userID, now)
	if err != nil {
		return UserStats{}, fmt.Errorf("статистика пользователя: %w", err)
	}
	c := uc.Counts
	res := UserStats{
		TotalMessages: c.Draft + c.Scheduled + c.Delivered + c.Read + c.Archived,
		Scheduled:     c.Scheduled,
		Delivered:     c.Delivered,
		Read:          c.Read,
		Unread:        c.Delivered,
		ReadRate:      percent(c.Read, c.Delivered+c.Read),
	}
	if uc.Next != nil {
		res.NextDelivery = &NextDelivery{
			MessageID:    uc.Next.MessageID,
			ScheduledFor: uc.Next.ScheduledFor,
			DaysUntil:    wholeDays(uc.Next.ScheduledFor.Sub(now)),
			Category:     uc.Next.Category,
		}
	}
	return res, nil
}

// Performance возвращает средние задержки доставки и прочтения.
func (s *Service) Performance(ctx context.Context) (Performance, error) {
	d, err := s.repo.Durations(ctx)
	if err != nil {
		return Performance{}, fmt.Errorf("задержки доставки: %w", err)
	}
	return Performance{
		AvgWaitDays:    round(d.AvgCreateToDeliver.Hours()/24, 1),
		AvgReadHours:   round(d.AvgDeliverToRead.Hours(), 1),
		TotalDelivered: d.DeliveredCount,
		TotalRead:      d.ReadCount,
	}, nil
}
