package repo

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

var _ domain.CompanionRepo = (*Postgres)(nil)

const companionColumns = `user_id, name, personality, custom_instructions, total_conversations,
       last_interaction_at, created_at, updated_at`

func scanCompanion(row pgx.Row) (domain.Companion, error) {
	var (
		c           domain.Companion
		personality string
	)
	err := row.Scan(&c.UserID, &c.Name, &personality, &c.CustomInstructions, &c.TotalConversations,
		&c.LastInteractionAt, &c.CreatedAt, &c.UpdatedAt)
	c.Personality = domain.CompanionPersonality(personality)
	return c, err
}

// GetOrCreateCompanion реализует domain.CompanionRepo.
func (p *Postgres) GetOrCreateCompanion(ctx context.Context, userID int64) (domain.Companion, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	// DO UPDATE без изменений нужен, чтобы RETURNING вернул уже существующую строку.
	c, err := scanCompanion(p.pool.QueryRow(ctx, `
INSERT INTO ai_companions (user_id) VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING `+companionColumns, userID))
	metrics.ObserveNetworkRequest("postgres", "companions_upsert", "ai_companions", start, err)
	return c, err
}

// UpdateCompanion реализует domain.CompanionRepo.
func (p *Postgres) UpdateCompanion(ctx context.Context, userID int64, personality domain.CompanionPersonality, instructions string) (domain.Companion, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	c, err := scanCompanion(p.pool.QueryRow(ctx, `
UPDATE ai_companions SET personality=$2, custom_instructions=$3, updated_at=now()
WHERE user_id=$1
RETURNING `+companionColumns, userID, string(personality), instructions))
	metrics.ObserveNetworkRequest("postgres", "companions_update", "ai_companions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Companion{}, domain.ErrUserNotFound
	}
	return c, err
}

// ListConversations реализует domain.CompanionRepo.
func (p *Postgres) ListConversations(ctx context.Context, userID int64, limit int) ([]domain.CompanionExchange, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, user_message, companion_response, coalesce(emotion, ''), created_at
FROM companion_conversations
WHERE user_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2`, userID, limitArg(limit))
	metrics.ObserveNetworkRequest("postgres", "companion_conversations_select", "companion_conversations", start, err)
	if err != nil {
		return nil, err
	}
	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CompanionExchange, error) {
		var ex domain.CompanionExchange
		err := row.Scan(&ex.ID, &ex.UserID, &ex.UserMessage, &ex.CompanionResponse, &ex.Emotion, &ex.CreatedAt)
		return ex, err
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(res)
	return res, nil
}

// SaveConversation сохраняет реплику, обновляет счётчики компаньона и пишет бизнесовое событие в одной транзакции.
func (p *Postgres) SaveConversation(ctx context.Context, ex domain.CompanionExchange) (domain.CompanionExchange, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.CompanionExchange{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var emotion *string
	if ex.Emotion != "" {
		emotion = &ex.Emotion
	}
	start := time.Now()
	err = tx.QueryRow(ctx, `
INSERT INTO companion_conversations (user_id, user_message, companion_response, emotion, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, ex.UserID, ex.UserMessage, ex.CompanionResponse, emotion, ex.CreatedAt).Scan(&ex.ID)
	metrics.ObserveNetworkRequest("postgres", "companion_conversations_insert", "companion_conversations", start, err)
	if err != nil {
		return domain.CompanionExchange{}, err
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE ai_companions SET total_conversations = total_conversations + 1, last_interaction_at=$2, updated_at=now()
WHERE user_id=$1`, ex.UserID, ex.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "companions_touch", "ai_companions", start, err)
	if err != nil {
		return domain.CompanionExchange{}, err
	}

	userID := ex.UserID
	if err := insertBusinessMetric(ctx, tx, domain.BusinessMetric{
		Event:      domain.BusinessMetricEventCompanionChat,
		UserID:     &userID,
		Metadata:   map[string]any{"emotion": ex.Emotion},
		OccurredAt: ex.CreatedAt,
	}); err != nil {
		return domain.CompanionExchange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.CompanionExchange{}, err
	}
	return ex, nil
}
