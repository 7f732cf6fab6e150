package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auction-service/internal/domain"
)

// StatisticsRepository aggregates per-user activity.
type StatisticsRepository interface {
	ForUser(ctx context.Context, userID string) (*domain.UserStatistics, error)
}

type statisticsRepository struct {
	pool *pgxpool.Pool
}

// NewStatisticsRepository returns a Postgres-backed implementation.
func NewStatisticsRepository(pool *pgxpool.Pool) StatisticsRepository {
	return &statisticsRepository{pool: pool}
}

func (r *statisticsRepository) ForUser(ctx context.Context, userID string) (*domain.UserStatistics, error) {
	const query = `
        SELECT
            (SELECT COALESCE(SUM(closed_price), 0) FROM auctions WHERE owner_id=$1 AND status='CLOSED'),
            (SELECT COUNT(*) FROM auctions WHERE owner_id=$1),
            (SELECT COUNT(DISTINCT b.auction_id) FROM bids b
                JOIN auctions a ON a.id=b.auction_id
                WHERE b.bidder_id=$1 AND a.status='ACTIVE'),
            (SELECT COUNT(*) FROM bids b
                JOIN auctions a ON a.id=b.auction_id
                WHERE b.bidder_id=$1 AND b.status='WINNING' AND a.status='ACTIVE')`

	var stats domain.UserStatistics
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&stats.Earnings,
		&stats.PostedAuctions,
		&stats.ActiveBids,
		&stats.CurrentlyWinning,
	); err != nil {
		return nil, classify(err)
	}
	return &stats, nil
}
