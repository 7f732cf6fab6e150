package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/auction-service/internal/domain"
)

// NotificationResponse is a stored auction outcome. Data keeps the payload shape pushed
// to live subscribers.
type NotificationResponse struct {
	ID        string                `json:"id"`
	Data      domain.AuctionOutcome `json:"data"`
	CreatedAt time.Time             `json:"created_at"`
}

// ClearNotificationsResponse reports how many rows were removed.
type ClearNotificationsResponse struct {
	Deleted int64 `json:"deleted"`
}

// StatisticsResponse summarizes the caller's activity.
type StatisticsResponse struct {
	Earnings         decimal.Decimal `json:"earnings"`
	PostedAuctions   int64           `json:"posted_auctions"`
	ActiveBids       int64           `json:"active_bids"`
	CurrentlyWinning int64           `json:"currently_winning"`
}

func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{ID: n.ID, Data: n.Data, CreatedAt: n.CreatedAt}
}

func NewStatisticsResponse(s *domain.UserStatistics) StatisticsResponse {
	return StatisticsResponse{
		Earnings:         s.Earnings,
		PostedAuctions:   s.PostedAuctions,
		ActiveBids:       s.ActiveBids,
		CurrentlyWinning: s.CurrentlyWinning,
	}
}
