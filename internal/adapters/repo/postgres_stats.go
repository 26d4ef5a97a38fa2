package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

func addStatus(c *domain.StatusCounts, status string, n int) {
	switch domain.MessageStatus(status) {
	case domain.MessageStatusDraft:
		c.Draft = n
	case domain.MessageStatusScheduled:
		c.Scheduled = n
	case domain.MessageStatusDelivered:
		c.Delivered = n
	case domain.MessageStatusRead:
		c.Read = n
	case domain.MessageStatusArchived:
		c.Archived = n
	}
}

func (p *Postgres) countByStatus(ctx context.Context, userID *int64) (domain.StatusCounts, error) {
	var counts domain.StatusCounts
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT status, count(*) FROM messages
WHERE $1::bigint IS NULL OR user_id=$1
GROUP BY status`, userID)
	metrics.ObserveNetworkRequest("postgres", "stats_by_status", "messages", start, err)
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, err
		}
		addStatus(&counts, status, n)
	}
	return counts, rows.Err()
}

// CountByStatus реализует domain.StatsRepo.
func (p *Postgres) CountByStatus(ctx context.Context) (domain.StatusCounts, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	return p.countByStatus(ctx, nil)
}

// CountScheduledBetween считает запланированные письма с датой доставки в (from, to].
func (p *Postgres) CountScheduledBetween(ctx context.Context, from, to time.Time) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var n int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT count(*) FROM messages
WHERE status='scheduled' AND scheduled_for > $1 AND scheduled_for <= $2`, from, to).Scan(&n)
	metrics.ObserveNetworkRequest("postgres", "stats_scheduled_count", "messages", start, err)
	return n, err
}

const pendingQuery = `
SELECT m.id, u.email, m.scheduled_for, m.timing_mode, m.category, m.tags
FROM messages m
JOIN users u ON u.id = m.user_id
WHERE m.status='scheduled' AND m.scheduled_for > $1 AND m.scheduled_for <= $2
ORDER BY m.scheduled_for`

func scanPending(row pgx.Row) (domain.PendingDelivery, error) {
	var (
		d    domain.PendingDelivery
		mode string
		tags []byte
	)
	if err := row.Scan(&d.MessageID, &d.UserEmail, &d.ScheduledFor, &mode, &d.Category, &tags); err != nil {
		return d, err
	}
	d.TimingMode = domain.TimingMode(mode)
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &d.Tags)
	}
	return d, nil
}

func (p *Postgres) listPending(ctx context.Context, op string, from, to time.Time) ([]domain.PendingDelivery, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, pendingQuery, from, to)
	metrics.ObserveNetworkRequest("postgres", op, "messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PendingDelivery
	for rows.Next() {
		d, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// ListScheduledBetween возвращает запланированные письма с датой доставки в (from, to].
func (p *Postgres) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]domain.PendingDelivery, error) {
	return p.listPending(ctx, "stats_upcoming", from, to)
}

// ListOverdue возвращает запланированные письма, срок которых уже наступил.
func (p *Postgres) ListOverdue(ctx context.Context, now time.Time) ([]domain.PendingDelivery, error) {
	return p.listPending(ctx, "stats_overdue", time.Unix(0, 0).UTC(), now)
}

func (p *Postgres) daily(ctx context.Context, op, column, statuses string, from, to time.Time) ([]domain.DailyCount, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT (`+column+` AT TIME ZONE 'UTC')::date AS day, count(*)
FROM messages
WHERE `+column+` >= $1 AND `+column+` < $2 AND status IN (`+statuses+`)
GROUP BY day
ORDER BY day`, from, to)
	metrics.ObserveNetworkRequest("postgres", op, "messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DailyCount
	for rows.Next() {
		var c domain.DailyCount
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// DailyDeliveries считает доставленные и прочитанные письма по дню доставки (UTC) в [from, to).
func (p *Postgres) DailyDeliveries(ctx context.Context, from, to time.Time) ([]domain.DailyCount, error) {
	return p.daily(ctx, "stats_daily_delivered", "delivered_at", "'delivered', 'read'", from, to)
}

// DailyReads считает прочитанные письма по дню прочтения (UTC) в [from, to).
func (p *Postgres) DailyReads(ctx context.Context, from, to time.Time) ([]domain.DailyCount, error) {
	return p.daily(ctx, "stats_daily_read", "read_at", "'read'", from, to)
}

// UserCounts возвращает счётчики писем пользователя и ближайшую доставку.
func (p *Postgres) UserCounts(ctx context.Context, userID int64, now time.Time) (domain.UserDeliveryCounts, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var res domain.UserDeliveryCounts
	counts, err := p.countByStatus(ctx, &userID)
	if err != nil {
		return res, err
	}
	res.Counts = counts

	start := time.Now()
	next, err := scanPending(p.pool.QueryRow(ctx, `
SELECT m.id, u.email, m.scheduled_for, m.timing_mode, m.category, m.tags
FROM messages m
JOIN users u ON u.id = m.user_id
WHERE m.user_id=$1 AND m.status='scheduled' AND m.scheduled_for > $2
ORDER BY m.scheduled_for
LIMIT 1`, userID, now))
	metrics.ObserveNetworkRequest("postgres", "stats_user_next", "messages", start, err)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return res, err
	default:
		res.Next = &next
	}
	return res, nil
}

// Durations считает средние задержки доставки и прочтения по доставленным и прочитанным письмам.
func (p *Postgres) Durations(ctx context.Context) (domain.DeliveryDurations, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var d domain.DeliveryDurations
	var toDeliverSec, toReadSec float64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT
    count(*) FILTER (WHERE status IN ('delivered', 'read')),
    COALESCE(EXTRACT(EPOCH FROM avg(delivered_at - created_at) FILTER (WHERE status IN ('delivered', 'read'))), 0)::float8,
    count(*) FILTER (WHERE status = 'read' AND read_at IS NOT NULL),
    COALESCE(EXTRACT(EPOCH FROM avg(read_at - delivered_at) FILTER (WHERE status = 'read' AND read_at IS NOT NULL)), 0)::float8
FROM messages
WHERE delivered_at IS NOT NULL`).Scan(&d.DeliveredCount, &toDeliverSec, &d.ReadCount, &toReadSec)
	metrics.ObserveNetworkRequest("postgres", "stats_durations", "messages", start, err)
	if err != nil {
		return d, err
	}
	d.AvgCreateToDeliver = time.Duration(toDeliverSec * float64(time.Second))
	d.AvgDeliverToRead = time.Duration(toReadSec * float64(time.Second))
	return d, nil
}
