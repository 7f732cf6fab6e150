package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AutoBid is a standing order to outbid others by IncrementAmount up to MaxAmount.
type AutoBid struct {
	ID              string
	AuctionID       string
	BidderID        string
	IncrementAmount decimal.Decimal
	MaxAmount       decimal.Decimal
	CreatedAt       time.Time
}
