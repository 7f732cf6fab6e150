package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus enumerates the standing of a bid within its auction.
type BidStatus string

const (
	BidStatusWinning BidStatus = "WINNING"
	BidStatusOutbid  BidStatus = "OUTBID"
	BidStatusWon     BidStatus = "WON"
)

// Bid is an offer placed on an auction. Only Status changes after creation.
type Bid struct {
	ID        string
	AuctionID string
	BidderID  string
	Amount    decimal.Decimal
	Status    BidStatus
	CreatedAt time.Time
}
