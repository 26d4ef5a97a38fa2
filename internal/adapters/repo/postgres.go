package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"future-you/internal/domain"
	"future-you/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
	_ domain.MessageRepo        = (*Postgres)(nil)
	_ domain.DueMessageStore    = (*Postgres)(nil)
	_ domain.UserRepo           = (*Postgres)(nil)
	_ domain.EmotionSource      = (*Postgres)(nil)
	_ domain.BacklogRepo        = (*Postgres)(nil)
	_ domain.StatsRepo          = (*Postgres)(nil)
)

const uniqueViolation = "23505"

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertBusinessMetric(ctx context.Context, db execer, metric domain.BusinessMetric) error {
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	var userID sql.NullInt64
	if metric.UserID != nil {
		userID = sql.NullInt64{Int64: *metric.UserID, Valid: true}
	}

	var messageID *uuid.UUID
	if metric.MessageID != nil {
		id := *metric.MessageID
		messageID = &id
	}

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := db.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, message_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, userID, messageID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	return insertBusinessMetric(ctx, p.pool, metric)
}

const userColumns = `id, email, password_hash, full_name, subscription_tier, encryption_key,
telegram_chat_id, is_active, created_at, updated_at, last_login_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		tier string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &tier, &u.EncryptionKey,
		&u.TelegramChatID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		return domain.User{}, err
	}
	u.Tier = domain.SubscriptionTier(tier)
	return u, nil
}

// CreateUser реализует domain.UserRepo. Занятый email возвращает domain.ErrEmailTaken.
func (p *Postgres) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if user.Tier == "" {
		user.Tier = domain.TierFree
	}
	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO users (email, password_hash, full_name, subscription_tier, encryption_key, telegram_chat_id, is_active)
VALUES (lower($1), $2, $3, $4, $5, $6, TRUE)
RETURNING `+userColumns,
		strings.TrimSpace(user.Email), user.PasswordHash, strings.TrimSpace(user.FullName),
		string(user.Tier), user.EncryptionKey, user.TelegramChatID)
	created, err := scanUser(row)
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("создание пользователя: %w", err)
	}
	return created, nil
}

// GetUser реализует domain.UserRepo.
func (p *Postgres) GetUser(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	metrics.ObserveNetworkRequest("postgres", "users_select", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, err
}

// GetUserByEmail реализует domain.UserRepo.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=lower($1)`, strings.TrimSpace(email)))
	metrics.ObserveNetworkRequest("postgres", "users_select_email", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, err
}

// TouchLogin фиксирует время последнего входа.
func (p *Postgres) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE users SET last_login_at=$2, updated_at=now() WHERE id=$1`, id, at)
	metrics.ObserveNetworkRequest("postgres", "users_touch_login", "users", start, err)
	return err
}

// ListRecentEmotions возвращает эмоции последних разговоров с компаньоном, от новых к старым.
func (p *Postgres) ListRecentEmotions(ctx context.Context, userID int64, limit int) ([]string, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT emotion FROM companion_conversations
WHERE user_id=$1 AND emotion IS NOT NULL AND emotion <> ''
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
	metrics.ObserveNetworkRequest("postgres", "companion_emotions", "companion_conversations", start, err)
	if err != nil {
		return nil, err
	}
	emotions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("чтение эмоций: %w", err)
	}
	return emotions, nil
}

// ListUnreadBacklog возвращает активных пользователей с доставленными, но непрочитанными письмами.
func (p *Postgres) ListUnreadBacklog(ctx context.Context) ([]domain.UnreadBacklog, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT u.id, u.email, u.password_hash, u.full_name, u.subscription_tier, u.encryption_key,
       u.telegram_chat_id, u.is_active, u.created_at, u.updated_at, u.last_login_at, count(m.id)
FROM users u
JOIN messages m ON m.user_id = u.id
WHERE u.is_active AND m.status = 'delivered'
GROUP BY u.id
ORDER BY u.id`)
	metrics.ObserveNetworkRequest("postgres", "unread_backlog", "messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.UnreadBacklog
	for rows.Next() {
		var (
			item domain.UnreadBacklog
			tier string
		)
		u := &item.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &tier, &u.EncryptionKey,
			&u.TelegramChatID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt, &item.Count); err != nil {
			return nil, err
		}
		u.Tier = domain.SubscriptionTier(tier)
		res = append(res, item)
	}
	return res, rows.Err()
}
