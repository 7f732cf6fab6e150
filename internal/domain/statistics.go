package domain

import "github.com/shopspring/decimal"

// UserStatistics summarizes a user's activity as seller and bidder.
type UserStatistics struct {
	Earnings         decimal.Decimal
	PostedAuctions   int64
	ActiveBids       int64
	CurrentlyWinning int64
}
