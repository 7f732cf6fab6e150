package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/auction-service/internal/domain"
)

// CreateAuctionRequest lists a new item.
type CreateAuctionRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	ImageURL      string          `json:"image_url"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	EndsAt        time.Time       `json:"ends_at"`
}

// UpdateAuctionRequest edits an active listing. The starting price cannot change.
type UpdateAuctionRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"image_url"`
	EndsAt      time.Time `json:"ends_at"`
}

// AuctionResponse is the public view of an auction.
type AuctionResponse struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	ImageURL      string               `json:"image_url,omitempty"`
	StartingPrice decimal.Decimal      `json:"starting_price"`
	Status        domain.AuctionStatus `json:"status"`
	OwnerID       string               `json:"owner_id"`
	EndsAt        time.Time            `json:"ends_at"`
	ClosedPrice   *decimal.Decimal     `json:"closed_price,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// PlaceBidRequest offers an amount on an auction.
type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BidResponse is the public view of a bid.
type BidResponse struct {
	ID        string           `json:"id"`
	AuctionID string           `json:"auction_id"`
	BidderID  string           `json:"bidder_id"`
	Amount    decimal.Decimal  `json:"amount"`
	Status    domain.BidStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// CreateAutoBidRequest registers a standing order.
type CreateAutoBidRequest struct {
	IncrementAmount decimal.Decimal `json:"increment_amount"`
	MaxAmount       decimal.Decimal `json:"max_amount"`
}

// AutoBidResponse echoes a registered auto-bid.
type AutoBidResponse struct {
	ID              string          `json:"id"`
	AuctionID       string          `json:"auction_id"`
	BidderID        string          `json:"bidder_id"`
	IncrementAmount decimal.Decimal `json:"increment_amount"`
	MaxAmount       decimal.Decimal `json:"max_amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewAuctionResponse maps a domain auction.
func NewAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		ID:            a.ID,
		Title:         a.Title,
		Description:   a.Description,
		ImageURL:      a.ImageURL,
		StartingPrice: a.StartingPrice,
		Status:        a.Status,
		OwnerID:       a.OwnerID,
		EndsAt:        a.EndsAt,
		ClosedPrice:   a.ClosedPrice,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func NewBidResponse(b *domain.Bid) BidResponse {
	return BidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
	}
}

func NewAutoBidResponse(a *domain.AutoBid) AutoBidResponse {
	return AutoBidResponse{
		ID:              a.ID,
		AuctionID:       a.AuctionID,
		BidderID:        a.BidderID,
		IncrementAmount: a.IncrementAmount,
		MaxAmount:       a.MaxAmount,
		CreatedAt:       a.CreatedAt,
	}
}
