package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeClosed marks a bidder who did not win the auction.
const OutcomeClosed = "CLOSED"

// Notification is a durable message addressed to a single user.
type Notification struct {
	ID        string
	UserID    string
	Data      AuctionOutcome
	CreatedAt time.Time
}

// AuctionOutcome describes how an auction ended for one bidder.
type AuctionOutcome struct {
	AuctionID string    `json:"auctionId"`
	Message   string    `json:"message"`
	BidStatus BidStatus `json:"bidStatus"`
	Outcome   Outcome   `json:"outcome"`
}

// Outcome is either the winning amount or the literal "CLOSED".
type Outcome struct {
	Amount *decimal.Decimal
}

// WonOutcome builds the outcome for a winning bidder.
func WonOutcome(amount decimal.Decimal) Outcome {
	return Outcome{Amount: &amount}
}

// LostOutcome builds the outcome for a bidder who was outbid.
func LostOutcome() Outcome {
	return Outcome{}
}

// Won reports whether the outcome carries a winning amount.
func (o Outcome) Won() bool {
	return o.Amount != nil
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Amount == nil {
		return json.Marshal(OutcomeClosed)
	}
	return []byte(o.Amount.String()), nil
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`"`+OutcomeClosed+`"`)) {
		o.Amount = nil
		return nil
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	o.Amount = &amount
	return nil
}
