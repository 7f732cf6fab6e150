package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auction-service/internal/domain"
)

// NotificationRepository stores per-user notifications.
type NotificationRepository interface {
	// CreateMany inserts notifications, skipping any the user already has for the same
	// auction, and returns the rows actually created.
	CreateMany(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a Postgres-backed implementation.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) CreateMany(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error) {
	if len(notifications) == 0 {
		return nil, nil
	}

	const query = `
        INSERT INTO notifications (user_id, auction_id, data)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, auction_id) DO NOTHING
        RETURNING id, created_at`

	batch := &pgx.Batch{}
	for i := range notifications {
		n := notifications[i]
		batch.Queue(query, n.UserID, n.Data.AuctionID, n.Data)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	created := make([]domain.Notification, 0, len(notifications))
	for i := range notifications {
		n := notifications[i]
		err := results.QueryRow().Scan(&n.ID, &n.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, classify(err)
		}
		created = append(created, n)
	}
	return created, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	const query = `
        SELECT id, user_id, data, created_at
        FROM notifications WHERE user_id=$1 ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Data, &n.CreatedAt); err != nil {
			return nil, classify(err)
		}
		result = append(result, n)
	}
	return result, classify(rows.Err())
}

func (r *notificationRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id=$1`, userID)
	if err != nil {
		return 0, classify(err)
	}
	return cmd.RowsAffected(), nil
}
