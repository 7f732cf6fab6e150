package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/auction-service/internal/domain"
)

// AutoBidRepository stores standing auto-bid orders.
type AutoBidRepository interface {
	// Create returns ErrConflict when the bidder already has an auto-bid on the auction.
	Create(ctx context.Context, autoBid *domain.AutoBid) error
	// ListEligible returns auto-bids of other bidders whose cap reaches minMax,
	// earliest registered first.
	ListEligible(ctx context.Context, auctionID, excludeBidderID string, minMax decimal.Decimal) ([]domain.AutoBid, error)
}

type autoBidRepository struct {
	pool *pgxpool.Pool
}

// NewAutoBidRepository returns a Postgres-backed implementation.
func NewAutoBidRepository(pool *pgxpool.Pool) AutoBidRepository {
	return &autoBidRepository{pool: pool}
}

func (r *autoBidRepository) Create(ctx context.Context, autoBid *domain.AutoBid) error {
	const query = `
        INSERT INTO auto_bids (auction_id, bidder_id, increment_amount, max_amount)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		autoBid.AuctionID,
		autoBid.BidderID,
		autoBid.IncrementAmount,
		autoBid.MaxAmount,
	).Scan(&autoBid.ID, &autoBid.CreatedAt)
	return classify(err)
}

func (r *autoBidRepository) ListEligible(ctx context.Context, auctionID, excludeBidderID string, minMax decimal.Decimal) ([]domain.AutoBid, error) {
	const query = `
        SELECT id, auction_id, bidder_id, increment_amount, max_amount, created_at
        FROM auto_bids
        WHERE auction_id=$1 AND bidder_id::text <> $2 AND max_amount >= $3
        ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, auctionID, excludeBidderID, minMax)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []domain.AutoBid
	for rows.Next() {
		var autoBid domain.AutoBid
		if err := rows.Scan(
			&autoBid.ID,
			&autoBid.AuctionID,
			&autoBid.BidderID,
			&autoBid.IncrementAmount,
			&autoBid.MaxAmount,
			&autoBid.CreatedAt,
		); err != nil {
			return nil, classify(err)
		}
		result = append(result, autoBid)
	}
	return result, classify(rows.Err())
}
