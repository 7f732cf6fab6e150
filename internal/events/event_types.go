package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventNewBid          EventType = "NEW_BID"
	EventNewNotification EventType = "NEW_NOTIFICATION"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AuctionID string      `json:"auction_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewBidPayload describes an accepted bid, or a synthetic one raised when an auto-bid is registered.
type NewBidPayload struct {
	AuctionID string          `json:"auctionId"`
	BidderID  string          `json:"bidderId"`
	Amount    decimal.Decimal `json:"amount"`
	Synthetic bool            `json:"synthetic,omitempty"`
}

// NewBid extracts the bid payload from a NEW_BID event.
func (e Event) NewBid() (NewBidPayload, bool) {
	if e.Type != EventNewBid {
		return NewBidPayload{}, false
	}
	switch p := e.Payload.(type) {
	case NewBidPayload:
		return p, true
	case *NewBidPayload:
		if p != nil {
			return *p, true
		}
	}
	return NewBidPayload{}, false
}
