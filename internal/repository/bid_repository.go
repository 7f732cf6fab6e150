package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auction-service/internal/domain"
)

// BidBuilder validates a bid attempt against the locked auction and its current
// highest bid (nil when none, auction nil when missing) and returns the bid to insert.
type BidBuilder func(auction *domain.Auction, last *domain.Bid) (*domain.Bid, error)

// BidRepository defines persistence access for bids.
type BidRepository interface {
	// PlaceWinning serializes bid attempts per auction. Within one transaction it reads
	// the auction and current highest bid, calls build, demotes the current winner to
	// OUTBID and inserts the built bid as WINNING.
	PlaceWinning(ctx context.Context, auctionID string, build BidBuilder) (*domain.Bid, error)
	FindHighest(ctx context.Context, auctionID string) (*domain.Bid, error)
	ListByAuction(ctx context.Context, auctionID string) ([]domain.Bid, error)
	LatestPerBidder(ctx context.Context, auctionID string) ([]domain.Bid, error)
}

const bidColumns = `id, auction_id, bidder_id, amount, status, created_at`

type bidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository returns a Postgres-backed implementation.
func NewBidRepository(pool *pgxpool.Pool) BidRepository {
	return &bidRepository{pool: pool}
}

func (r *bidRepository) PlaceWinning(ctx context.Context, auctionID string, build BidBuilder) (*domain.Bid, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, classify(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	lockAuction := `SELECT ` + auctionColumns + ` FROM auctions WHERE id=$1 FOR UPDATE`
	auction, err := scanAuction(tx.QueryRow(ctx, lockAuction, auctionID))
	if err != nil {
		if err = classify(err); !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	var last *domain.Bid
	if auction != nil {
		highest := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id=$1 ORDER BY amount DESC LIMIT 1`
		last, err = scanBid(tx.QueryRow(ctx, highest, auctionID))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, classify(err)
		}
	}

	bid, err := build(auction, last)
	if err != nil {
		return nil, err
	}

	const demote = `UPDATE bids SET status='OUTBID' WHERE auction_id=$1 AND status='WINNING'`
	if _, err := tx.Exec(ctx, demote, auctionID); err != nil {
		return nil, classify(err)
	}

	// clock_timestamp keeps created_at in lock order; NOW() is fixed at transaction start.
	const insert = `
        INSERT INTO bids (auction_id, bidder_id, amount, status, created_at)
        VALUES ($1, $2, $3, 'WINNING', clock_timestamp())
        RETURNING id, status, created_at`
	if err := tx.QueryRow(ctx, insert, auctionID, bid.BidderID, bid.Amount).
		Scan(&bid.ID, &bid.Status, &bid.CreatedAt); err != nil {
		return nil, classify(err)
	}
	bid.AuctionID = auctionID

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err)
	}
	return bid, nil
}

func (r *bidRepository) FindHighest(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id=$1 ORDER BY amount DESC LIMIT 1`
	bid, err := scanBid(r.pool.QueryRow(ctx, query, auctionID))
	if err != nil {
		return nil, classify(err)
	}
	return bid, nil
}

func (r *bidRepository) ListByAuction(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id=$1 ORDER BY created_at DESC, amount DESC`
	return r.list(ctx, query, auctionID)
}

func (r *bidRepository) LatestPerBidder(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	query := `SELECT DISTINCT ON (bidder_id) ` + bidColumns + ` FROM bids
        WHERE auction_id=$1 ORDER BY bidder_id, created_at DESC, amount DESC`
	return r.list(ctx, query, auctionID)
}

func (r *bidRepository) list(ctx context.Context, query string, args ...any) ([]domain.Bid, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, classify(err)
		}
		result = append(result, *bid)
	}
	return result, classify(rows.Err())
}

func scanBid(row pgx.Row) (*domain.Bid, error) {
	var bid domain.Bid
	if err := row.Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.BidderID,
		&bid.Amount,
		&bid.Status,
		&bid.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &bid, nil
}
