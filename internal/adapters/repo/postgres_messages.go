package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

const messageColumns = `id, user_id, encrypted_content, message_type, status, timing_mode,
scheduled_for, delivered_at, read_at, category, tags, ai_context, confidence_score, created_at, updated_at`

func scanMessage(row pgx.Row) (domain.Message, error) {
	var (
		m                    domain.Message
		msgType, status, mod string
		tags, aiContext      []byte
	)
	err := row.Scan(&m.ID, &m.UserID, &m.EncryptedContent, &msgType, &status, &mod,
		&m.ScheduledFor, &m.DeliveredAt, &m.ReadAt, &m.Category, &tags, &aiContext,
		&m.ConfidenceScore, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Message{}, err
	}
	m.Type = domain.MessageType(msgType)
	m.Status = domain.MessageStatus(status)
	m.TimingMode = domain.TimingMode(mod)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &m.Tags); err != nil {
			return domain.Message{}, fmt.Errorf("теги письма %s: %w", m.ID, err)
		}
	}
	if len(aiContext) > 0 {
		if err := json.Unmarshal(aiContext, &m.AIContext); err != nil {
			return domain.Message{}, fmt.Errorf("ai_context письма %s: %w", m.ID, err)
		}
	}
	return m, nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()
	var res []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// SaveMessage создаёт письмо или обновляет изменяемые поля. Дата доставки, однажды заданная, не меняется.
func (p *Postgres) SaveMessage(ctx context.Context, msg domain.Message) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	tags, err := json.Marshal(msg.Tags)
	if err != nil {
		return fmt.Errorf("теги: %w", err)
	}
	aiContext, err := json.Marshal(msg.AIContext)
	if err != nil {
		return fmt.Errorf("ai_context: %w", err)
	}
	if msg.Tags == nil {
		tags = []byte("[]")
	}
	if msg.AIContext == nil {
		aiContext = []byte("{}")
	}

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO messages (id, user_id, encrypted_content, message_type, status, timing_mode,
                      scheduled_for, category, tags, ai_context, confidence_score, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    scheduled_for = COALESCE(messages.scheduled_for, EXCLUDED.scheduled_for),
    category = EXCLUDED.category,
    tags = EXCLUDED.tags,
    ai_context = EXCLUDED.ai_context,
    confidence_score = EXCLUDED.confidence_score,
    updated_at = now()
`, msg.ID, msg.UserID, msg.EncryptedContent, string(msg.Type), string(msg.Status), string(msg.TimingMode),
		msg.ScheduledFor, msg.Category, tags, aiContext, msg.ConfidenceScore, msg.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "messages_upsert", "messages", start, err)
	return err
}

// GetMessage реализует domain.MessageRepo.
func (p *Postgres) GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	m, err := scanMessage(p.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id))
	metrics.ObserveNetworkRequest("postgres", "messages_select", "messages", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	return m, err
}

// ListByUser реализует domain.MessageRepo.
func (p *Postgres) ListByUser(ctx context.Context, userID int64, status *domain.MessageStatus) ([]domain.Message, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+messageColumns+` FROM messages
WHERE user_id=$1 AND ($2::text IS NULL OR status=$2)
ORDER BY created_at`, userID, statusArg)
	metrics.ObserveNetworkRequest("postgres", "messages_by_user", "messages", start, err)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// CountCreatedSince считает письма пользователя, созданные начиная с since.
func (p *Postgres) CountCreatedSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var n int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE user_id=$1 AND created_at >= $2`, userID, since).Scan(&n)
	metrics.ObserveNetworkRequest("postgres", "messages_count_since", "messages", start, err)
	return n, err
}

// limitArg превращает неположительный лимит в NULL: LIMIT NULL в Postgres означает отсутствие ограничения.
func limitArg(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

// ListDue возвращает запланированные письма, срок которых наступил, самые ранние первыми.
func (p *Postgres) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Message, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+messageColumns+` FROM messages
WHERE status='scheduled' AND scheduled_for <= $1
ORDER BY scheduled_for
LIMIT $2`, now, limitArg(limit))
	metrics.ObserveNetworkRequest("postgres", "messages_due", "messages", start, err)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// MarkDelivered атомарно переводит scheduled -> delivered и пишет бизнесовое событие в той же транзакции.
func (p *Postgres) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var userID int64
	start := time.Now()
	err = tx.QueryRow(ctx, `
UPDATE messages SET status='delivered', delivered_at=$2, updated_at=now()
WHERE id=$1 AND status='scheduled'
RETURNING user_id`, id, at).Scan(&userID)
	metrics.ObserveNetworkRequest("postgres", "messages_mark_delivered", "messages", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := insertBusinessMetric(ctx, tx, domain.BusinessMetric{
		Event:      domain.BusinessMetricEventMessageDelivered,
		UserID:     &userID,
		MessageID:  &id,
		OccurredAt: at,
	}); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// MarkRead переводит доставленное письмо владельца в read.
func (p *Postgres) MarkRead(ctx context.Context, userID int64, id uuid.UUID, at time.Time) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	start := time.Now()
	tag, err := tx.Exec(ctx, `
UPDATE messages SET status='read', read_at=$3, updated_at=now()
WHERE id=$2 AND user_id=$1 AND status='delivered'`, userID, id, at)
	metrics.ObserveNetworkRequest("postgres", "messages_mark_read", "messages", start, err)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := insertBusinessMetric(ctx, tx, domain.BusinessMetric{
		Event:      domain.BusinessMetricEventMessageRead,
		UserID:     &userID,
		MessageID:  &id,
		OccurredAt: at,
	}); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Archive переводит письмо владельца в архив из любого статуса.
func (p *Postgres) Archive(ctx context.Context, userID int64, id uuid.UUID) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE messages SET status='archived', updated_at=now()
WHERE id=$2 AND user_id=$1 AND status <> 'archived'`, userID, id)
	metrics.ObserveNetworkRequest("postgres", "messages_archive", "messages", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteMessage удаляет письмо владельца.
func (p *Postgres) DeleteMessage(ctx context.Context, userID int64, id uuid.UUID) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM messages WHERE id=$2 AND user_id=$1`, userID, id)
	metrics.ObserveNetworkRequest("postgres", "messages_delete", "messages", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
