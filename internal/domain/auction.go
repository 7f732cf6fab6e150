package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus enumerates lifecycle states for auctions. CLOSED is terminal.
type AuctionStatus string

const (
	AuctionStatusActive AuctionStatus = "ACTIVE"
	AuctionStatusClosed AuctionStatus = "CLOSED"
)

// Auction is an item listed for bidding by its owner.
type Auction struct {
	ID            string
	Title         string
	Description   string
	ImageURL      string
	StartingPrice decimal.Decimal
	Status        AuctionStatus
	OwnerID       string
	EndsAt        time.Time
	ClosedPrice   *decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsActive reports whether the auction still accepts bids.
func (a *Auction) IsActive() bool {
	return a.Status == AuctionStatusActive
}

// IsDue reports whether an active auction has reached its deadline.
func (a *Auction) IsDue(now time.Time) bool {
	return a.IsActive() && !a.EndsAt.After(now)
}
