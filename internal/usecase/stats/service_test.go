package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"future-you/internal/domain"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type stubRepo struct {
	counts     domain.StatusCounts
	between    map[time.Time]int
	pending    []domain.PendingDelivery
	overdue    []domain.PendingDelivery
	deliveries []domain.DailyCount
	reads      []domain.DailyCount
	user       domain.UserDeliveryCounts
	durations  domain.DeliveryDurations
	err        error

	lastFrom, lastTo time.Time
}

func (s *stubRepo) CountByStatus(context.Context) (domain.StatusCounts, error) {
	return s.counts, s.err
}

func (s *stubRepo) CountScheduledBetween(_ context.Context, _, to time.Time) (int, error) {
	return s.between[to], s.err
}

func (s *stubRepo) ListScheduledBetween(_ context.Context, from, to time.Time) ([]domain.PendingDelivery, error) {
	s.lastFrom, s.lastTo = from, to
	return s.pending, s.err
}

func (s *stubRepo) ListOverdue(context.Context, time.Time) ([]domain.PendingDelivery, error) {
	return s.overdue, s.err
}

func (s *stubRepo) DailyDeliveries(_ context.Context, from, to time.Time) ([]domain.DailyCount, error) {
	s.lastFrom, s.lastTo = from, to
	return s.deliveries, s.err
}

func (s *stubRepo) DailyReads(context.Context, time.Time, time.Time) ([]domain.DailyCount, error) {
	return s.reads, s.err
}

func (s *stubRepo) UserCounts(context.Context, int64, time.Time) (domain.UserDeliveryCounts, error) {
	return s.user, s.err
}

func (s *stubRepo) Durations(context.Context) (domain.DeliveryDurations, error) {
	return s.durations, s.err
}

func newTestService(repo *stubRepo) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestOverviewRates(t *testing.T) {
	week := testNow.Add(7 * 24 * time.Hour)
	repo := &stubRepo{
		counts:  domain.StatusCounts{Draft: 4, Scheduled: 4, Delivered: 1, Read: 2, Archived: 9},
		between: map[time.Time]int{testNow: 3, week: 2},
	}
	o, err := newTestService(repo).Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, o.TotalMessages)
	assert.Equal(t, 3, o.ReadyForDelivery)
	assert.Equal(t, 2, o.Upcoming7Days)
	assert.Equal(t, 42.86, o.DeliveryRate)
	assert.Equal(t, 66.67, o.ReadRate)
}

func TestOverviewEmpty(t *testing.T) {
	o, err := newTestService(&stubRepo{}).Overview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, o.DeliveryRate)
	assert.Zero(t, o.ReadRate)
}

func TestUpcomingAndOverdue(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{
		pending: []domain.PendingDelivery{{MessageID: id, UserEmail: "a@b.c", ScheduledFor: testNow.Add(50 * time.Hour), TimingMode: domain.TimingRandom}},
		overdue: []domain.PendingDelivery{{MessageID: id, ScheduledFor: testNow.Add(-73 * time.Hour)}},
	}
	svc := newTestService(repo)

	up, err := svc.Upcoming(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, 2, up[0].DaysUntil)
	assert.Equal(t, testNow.Add(7*24*time.Hour), repo.lastTo, "по умолчанию 7 дней")

	_, err = svc.Upcoming(context.Background(), 10000)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(365*24*time.Hour), repo.lastTo)

	over, err := svc.Overdue(context.Background())
	require.NoError(t, err)
	require.Len(t, over, 1)
	assert.Equal(t, 3, over[0].DaysOverdue)
}

func TestTimelineFillsEmptyDays(t *testing.T) {
	repo := &stubRepo{
		deliveries: []domain.DailyCount{{Date: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), Count: 4}},
		reads:      []domain.DailyCount{{Date: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), Count: 1}},
	}
	tl, err := newTestService(repo).Timeline(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), repo.lastFrom)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), repo.lastTo)
	assert.Equal(t, []DayCount{{"2025-03-12", 0}, {"2025-03-13", 4}, {"2025-03-14", 0}}, tl.DailyDeliveries)
	assert.Equal(t, []DayCount{{"2025-03-12", 0}, {"2025-03-13", 0}, {"2025-03-14", 1}}, tl.DailyReads)
}

func TestForUser(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{user: domain.UserDeliveryCounts{
		Counts: domain.StatusCounts{Scheduled: 2, Delivered: 1, Read: 3, Archived: 1},
		Next:   &domain.PendingDelivery{MessageID: id, ScheduledFor: testNow.Add(36 * time.Hour), Category: "reflection"},
	}}
	st, err := newTestService(repo).ForUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 7, st.TotalMessages)
	assert.Equal(t, 1, st.Unread)
	assert.Equal(t, 75.0, st.ReadRate)
	require.NotNil(t, st.NextDelivery)
	assert.Equal(t, 1, st.NextDelivery.DaysUntil)
	assert.Equal(t, id, st.NextDelivery.MessageID)
}

func TestPerformance(t *testing.T) {
	repo := &stubRepo{durations: domain.DeliveryDurations{
		DeliveredCount:     10,
		AvgCreateToDeliver: 36 * time.Hour,
		ReadCount:          4,
		AvgDeliverToRead:   90 * time.Minute,
	}}
	p, err := newTestService(repo).Performance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Performance{AvgWaitDays: 1.5, AvgReadHours: 1.5, TotalDelivered: 10, TotalRead: 4}, p)
}

func TestErrorsAreWrapped(t *testing.T) {
	boom := errors.New("boom")
	svc := newTestService(&stubRepo{err: boom})
	_, err := svc.Overview(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = svc.Timeline(context.Background(), 5)
	assert.ErrorIs(t, err, boom)
	_, err = svc.Performance(context.Background())
	assert.ErrorIs(t, err, boom)
}
