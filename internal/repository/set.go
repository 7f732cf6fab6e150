package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Set groups the repositories the services depend on.
type Set struct {
	Users         UserRepository
	Auctions      AuctionRepository
	Bids          BidRepository
	AutoBids      AutoBidRepository
	Notifications NotificationRepository
	Statistics    StatisticsRepository
}

// NewPostgresSet builds every repository over one pool.
func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Users:         NewUserRepository(pool),
		Auctions:      NewAuctionRepository(pool),
		Bids:          NewBidRepository(pool),
		AutoBids:      NewAutoBidRepository(pool),
		Notifications: NewNotificationRepository(pool),
		Statistics:    NewStatisticsRepository(pool),
	}
}
