package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"future-you/internal/domain"
)

type stubBacklog struct {
	items []domain.UnreadBacklog
	err   error
}

func (s *stubBacklog) ListUnreadBacklog(context.Context) ([]domain.UnreadBacklog, error) {
	return s.items, s.err
}

// memGuard ведёт себя как RedisCache.Once: ключ освобождается, если fn вернула ошибку.
type memGuard struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (g *memGuard) Once(ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context) error) (bool, error) {
	g.mu.Lock()
	if g.keys == nil {
		g.keys = map[string]bool{}
	}
	if g.keys[key] {
		g.mu.Unlock()
		return false, nil
	}
	g.keys[key] = true
	g.mu.Unlock()
	if err := fn(ctx); err != nil {
		g.mu.Lock()
		delete(g.keys, key)
		g.mu.Unlock()
		return true, err
	}
	return true, nil
}

type stubEvents struct {
	events []domain.BusinessMetric
	err    error
}

func (s *stubEvents) RecordBusinessMetric(_ context.Context, m domain.BusinessMetric) error {
	s.events = append(s.events, m)
	return s.err
}

func backlogOf(counts ...int) []domain.UnreadBacklog {
	var items []domain.UnreadBacklog
	for i, c := range counts {
		id := int64(i + 1)
		items = append(items, domain.UnreadBacklog{User: domain.User{ID: id, Email: "u@example.com"}, Count: c})
	}
	return items
}

var reminderDay = time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC)

func TestReminderSendsOnePerUser(t *testing.T) {
	notifier := &recordingNotifier{}
	events := &stubEvents{}
	r := NewReminder(&stubBacklog{items: backlogOf(3, 1, 0)}, notifier, nil, events, time.Second, zerolog.Nop())

	res := r.Run(context.Background(), reminderDay)

	assert.Equal(t, ReminderResult{Users: 3, Sent: 2, Skipped: 1}, res)
	require.Len(t, notifier.backlog, 2)
	assert.Equal(t, 3, notifier.backlog[0].Pending)
	assert.Equal(t, 1, notifier.backlog[1].Pending)
	require.Len(t, events.events, 2)
	assert.Equal(t, domain.BusinessMetricEventReminderSent, events.events[0].Event)
}

func TestReminderIsolatesUserFailures(t *testing.T) {
	notifier := &recordingNotifier{failFor: map[int64]bool{1: true}}
	events := &stubEvents{err: errors.New("metrics table missing")}
	r := NewReminder(&stubBacklog{items: backlogOf(2, 5, 1)}, notifier, nil, events, time.Second, zerolog.Nop())

	res := r.Run(context.Background(), reminderDay)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Sent)
	require.Len(t, notifier.backlog, 2)
	assert.Equal(t, int64(2), notifier.backlog[0].To.UserID)
}

func TestReminderGuardPreventsDuplicatesSameDay(t *testing.T) {
	notifier := &recordingNotifier{failFor: map[int64]bool{2: true}}
	guard := &memGuard{}
	r := NewReminder(&stubBacklog{items: backlogOf(1, 1)}, notifier, guard, nil, time.Second, zerolog.Nop())

	first := r.Run(context.Background(), reminderDay)
	assert.Equal(t, 1, first.Sent)
	assert.Equal(t, 1, first.Failed)

	// пользователь 2 получил отказ, ключ освобождён, повтор разрешён
	notifier.failFor = nil
	second := r.Run(context.Background(), reminderDay)
	assert.Equal(t, 1, second.Sent)
	assert.Equal(t, 1, second.Skipped)

	next := r.Run(context.Background(), reminderDay.Add(24*time.Hour))
	assert.Equal(t, 2, next.Sent)
	assert.Len(t, notifier.backlog, 4)
}

func TestReminderBacklogFailure(t *testing.T) {
	r := NewReminder(&stubBacklog{err: errors.New("timeout")}, &recordingNotifier{}, nil, nil, time.Second, zerolog.Nop())
	assert.Equal(t, ReminderResult{}, r.Run(context.Background(), reminderDay))
}

type brokenGuard struct{}

func (brokenGuard) Once(context.Context, string, time.Duration, func(ctx context.Context) error) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func TestReminderSendsWhenGuardUnavailable(t *testing.T) {
	notifier := &recordingNotifier{}
	events := &stubEvents{}
	r := NewReminder(&stubBacklog{items: backlogOf(2, 4)}, notifier, brokenGuard{}, events, time.Second, zerolog.Nop())

	res := r.Run(context.Background(), reminderDay)

	assert.Equal(t, ReminderResult{Users: 2, Sent: 2}, res)
	assert.Len(t, notifier.backlog, 2)
	assert.Len(t, events.events, 2)
}
