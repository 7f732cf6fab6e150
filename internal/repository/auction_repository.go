package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/auction-service/internal/domain"
)

// AuctionRepository defines persistence access for auctions, including the lifecycle sweep.
type AuctionRepository interface {
	Create(ctx context.Context, auction *domain.Auction) error
	Update(ctx context.Context, auction *domain.Auction) error
	GetByID(ctx context.Context, id string) (*domain.Auction, error)
	ListActive(ctx context.Context, limit, offset int) ([]domain.Auction, error)
	// CloseDue closes every ACTIVE auction whose deadline is at or before now and
	// returns the auctions it closed.
	CloseDue(ctx context.Context, now time.Time) ([]domain.Auction, error)
	// AssignWinners marks the highest bid of every CLOSED auction lacking a WON bid as WON.
	AssignWinners(ctx context.Context) ([]domain.Bid, error)
}

const auctionColumns = `id, title, description, image_url, starting_price, status, owner_id, ends_at, closed_price, created_at, updated_at`

type auctionRepository struct {
	pool *pgxpool.Pool
}

// NewAuctionRepository returns a Postgres-backed implementation.
func NewAuctionRepository(pool *pgxpool.Pool) AuctionRepository {
	return &auctionRepository{pool: pool}
}

func (r *auctionRepository) Create(ctx context.Context, auction *domain.Auction) error {
	const query = `
        INSERT INTO auctions (title, description, image_url, starting_price, status, owner_id, ends_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		auction.Title,
		auction.Description,
		auction.ImageURL,
		auction.StartingPrice,
		auction.Status,
		auction.OwnerID,
		auction.EndsAt,
	).Scan(&auction.ID, &auction.CreatedAt, &auction.UpdatedAt)
	return classify(err)
}

func (r *auctionRepository) Update(ctx context.Context, auction *domain.Auction) error {
	const query = `
        UPDATE auctions SET title=$1, description=$2, image_url=$3, ends_at=$4, updated_at=NOW()
        WHERE id=$5 AND status='ACTIVE'
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		auction.Title,
		auction.Description,
		auction.ImageURL,
		auction.EndsAt,
		auction.ID,
	).Scan(&auction.UpdatedAt)
	return classify(err)
}

func (r *auctionRepository) GetByID(ctx context.Context, id string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id=$1`
	auction, err := scanAuction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(err)
	}
	return auction, nil
}

func (r *auctionRepository) ListActive(ctx context.Context, limit, offset int) ([]domain.Auction, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + auctionColumns + ` FROM auctions
        WHERE status='ACTIVE' ORDER BY ends_at ASC, id ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, classify(err)
		}
		result = append(result, *auction)
	}
	return result, classify(rows.Err())
}

func (r *auctionRepository) CloseDue(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, classify(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Row locks wait out in-flight bid transactions so the closing price sees their result.
	const lockDue = `
        SELECT id FROM auctions
        WHERE status='ACTIVE' AND ends_at <= $1
        ORDER BY id
        FOR UPDATE`
	rows, err := tx.Query(ctx, lockDue, now)
	if err != nil {
		return nil, classify(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	closeQuery := `
        UPDATE auctions a SET
            status='CLOSED',
            closed_price=COALESCE(
                (SELECT b.amount FROM bids b WHERE b.auction_id=a.id ORDER BY b.amount DESC LIMIT 1), 0),
            updated_at=NOW()
        WHERE a.id = ANY($1) AND a.status='ACTIVE'
        RETURNING ` + prefixed("a.", auctionColumns)
	closedRows, err := tx.Query(ctx, closeQuery, ids)
	if err != nil {
		return nil, classify(err)
	}
	defer closedRows.Close()

	var closed []domain.Auction
	for closedRows.Next() {
		auction, err := scanAuction(closedRows)
		if err != nil {
			return nil, classify(err)
		}
		closed = append(closed, *auction)
	}
	if err := closedRows.Err(); err != nil {
		return nil, classify(err)
	}
	closedRows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err)
	}
	return closed, nil
}

func (r *auctionRepository) AssignWinners(ctx context.Context) ([]domain.Bid, error) {
	query := `
        UPDATE bids b SET status='WON'
        FROM (
            SELECT DISTINCT ON (bd.auction_id) bd.id
            FROM bids bd
            JOIN auctions a ON a.id = bd.auction_id
            WHERE a.status='CLOSED'
              AND NOT EXISTS (SELECT 1 FROM bids w WHERE w.auction_id=a.id AND w.status='WON')
            ORDER BY bd.auction_id, bd.amount DESC
        ) top
        WHERE b.id = top.id
        RETURNING ` + prefixed("b.", bidColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var won []domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, classify(err)
		}
		won = append(won, *bid)
	}
	return won, classify(rows.Err())
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	var (
		auction     domain.Auction
		closedPrice decimal.NullDecimal
	)
	if err := row.Scan(
		&auction.ID,
		&auction.Title,
		&auction.Description,
		&auction.ImageURL,
		&auction.StartingPrice,
		&auction.Status,
		&auction.OwnerID,
		&auction.EndsAt,
		&closedPrice,
		&auction.CreatedAt,
		&auction.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if closedPrice.Valid {
		auction.ClosedPrice = &closedPrice.Decimal
	}
	return &auction, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
