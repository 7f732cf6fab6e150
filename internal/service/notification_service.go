package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/events"
	"github.com/spec-kit/auction-service/internal/observability"
	"github.com/spec-kit/auction-service/internal/repository"
)

// LivePublisher delivers an event to a connected user. It never blocks for long and
// reports whether anyone received the message.
type LivePublisher interface {
	Publish(ctx context.Context, userID, event string, payload any) bool
}

// NotificationService records auction outcomes and pushes them to connected users.
type NotificationService struct {
	notifications repository.NotificationRepository
	publisher     LivePublisher
	logger        *zap.Logger
	metrics       *observability.Metrics

	pushes sync.WaitGroup
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	Publisher        LivePublisher
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		publisher:     deps.Publisher,
		logger:        logger,
		metrics:       deps.Metrics,
	}
}

// NotificationView is the live push payload for a stored notification.
type NotificationView struct {
	ID        string                `json:"id"`
	Data      domain.AuctionOutcome `json:"data"`
	CreatedAt time.Time             `json:"createdAt"`
}

// SendAuctionClosedNotifications stores one outcome per bidder of a closed auction and
// pushes the stored rows in the background. bids holds each bidder's latest bid.
func (n *NotificationService) SendAuctionClosedNotifications(ctx context.Context, auction *domain.Auction, bids []domain.Bid) ([]domain.Notification, error) {
	if len(bids) == 0 {
		return nil, nil
	}

	batch := make([]domain.Notification, 0, len(bids))
	for _, bid := range bids {
		outcome := domain.LostOutcome()
		if bid.Status == domain.BidStatusWon {
			outcome = domain.WonOutcome(bid.Amount)
		}
		batch = append(batch, domain.Notification{
			UserID: bid.BidderID,
			Data: domain.AuctionOutcome{
				AuctionID: auction.ID,
				Message:   auction.Title,
				BidStatus: bid.Status,
				Outcome:   outcome,
			},
		})
	}

	created, err := n.notifications.CreateMany(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("store auction closed notifications: %w", err)
	}
	n.metrics.NotificationsCreated(len(created))
	n.logger.Info("auction closed notifications stored",
		zap.String("auction_id", auction.ID),
		zap.Int("bidders", len(bids)),
		zap.Int("created", len(created)),
	)

	if n.publisher != nil && len(created) > 0 {
		n.pushes.Add(1)
		go n.push(context.WithoutCancel(ctx), created)
	}
	return created, nil
}

func (n *NotificationService) push(ctx context.Context, created []domain.Notification) {
	defer n.pushes.Done()
	for _, notification := range created {
		delivered := n.publisher.Publish(ctx, notification.UserID, string(events.EventNewNotification), NotificationView{
			ID:        notification.ID,
			Data:      notification.Data,
			CreatedAt: notification.CreatedAt,
		})
		n.metrics.PushAttempt(delivered)
		if !delivered {
			n.logger.Debug("notification not delivered live",
				zap.String("notification_id", notification.ID),
				zap.String("user_id", notification.UserID),
			)
		}
	}
}

// Wait blocks until background pushes started so far have finished.
func (n *NotificationService) Wait() {
	n.pushes.Wait()
}

// FindUserNotifications returns the user's notifications, newest first.
func (n *NotificationService) FindUserNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	notifications, err := n.notifications.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// ClearNotifications deletes every notification of the user.
func (n *NotificationService) ClearNotifications(ctx context.Context, userID string) (int64, error) {
	deleted, err := n.notifications.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	n.logger.Info("notifications cleared", zap.String("user_id", userID), zap.Int64("deleted", deleted))
	return deleted, nil
}
