package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/events"
	"github.com/spec-kit/auction-service/internal/observability"
	"github.com/spec-kit/auction-service/internal/repository"
	apperrors "github.com/spec-kit/auction-service/pkg/util/errorutil"
)

const moneyPlaces = 2

// BidReader exposes read access to recorded bids.
type BidReader interface {
	FindLastBid(ctx context.Context, auctionID string) (*domain.Bid, error)
	LatestBidsPerBidder(ctx context.Context, auctionID string) ([]domain.Bid, error)
}

// BidWriter places bids under the ledger's rules.
type BidWriter interface {
	Create(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*domain.Bid, error)
}

// AuctionBroadcaster pushes events to everyone watching an auction.
type AuctionBroadcaster interface {
	PublishAuction(ctx context.Context, auctionID, event string, payload any) bool
}

// BidLedger is the only writer of bids and keeps one WINNING bid per auction.
type BidLedger struct {
	bids           repository.BidRepository
	publisher      events.Publisher
	broadcaster    AuctionBroadcaster
	publishTimeout time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time

	broadcasts sync.WaitGroup
}

// BidLedgerDependencies bundles collaborators for the ledger.
type BidLedgerDependencies struct {
	BidRepo        repository.BidRepository
	Publisher      events.Publisher
	Broadcaster    AuctionBroadcaster
	PublishTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Now            func() time.Time
}

// NewBidLedger constructs the ledger.
func NewBidLedger(deps BidLedgerDependencies) *BidLedger {
	l := &BidLedger{
		bids:           deps.BidRepo,
		publisher:      deps.Publisher,
		broadcaster:    deps.Broadcaster,
		publishTimeout: deps.PublishTimeout,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		now:            deps.Now,
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.now == nil {
		l.now = func() time.Time { return time.Now().UTC() }
	}
	if l.publishTimeout <= 0 {
		l.publishTimeout = 2 * time.Second
	}
	return l
}

// Create validates and records a bid, then announces it once the transaction has committed.
func (l *BidLedger) Create(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*domain.Bid, error) {
	if !amount.Equal(amount.Round(moneyPlaces)) {
		return nil, apperrors.NewValidationError("amount supports at most two decimal places", map[string]any{
			"amount": amount.String(),
		})
	}

	bid, err := l.bids.PlaceWinning(ctx, auctionID, checkBid(bidderID, amount))
	if err != nil {
		if reason, ok := apperrors.ReasonOf(err); ok {
			l.metrics.BidRejected(string(reason))
			return nil, err
		}
		if apperrors.IsTransient(err) {
			return nil, err
		}
		return nil, fmt.Errorf("place bid: %w", err)
	}

	l.metrics.BidPlaced()
	l.logger.Info("bid placed",
		zap.String("auction_id", bid.AuctionID),
		zap.String("bid_id", bid.ID),
		zap.String("bidder_id", bid.BidderID),
		zap.String("amount", bid.Amount.String()),
	)

	l.announce(ctx, bid)
	return bid, nil
}

// checkBid applies the bidding rules, in order, to the state read inside the bid transaction.
func checkBid(bidderID string, amount decimal.Decimal) repository.BidBuilder {
	return func(auction *domain.Auction, last *domain.Bid) (*domain.Bid, error) {
		if auction == nil {
			return nil, apperrors.NewBusinessRuleError(apperrors.ReasonAuctionNotFound, "auction not found", nil)
		}
		details := map[string]any{"auction_id": auction.ID}
		if !auction.IsActive() {
			return nil, apperrors.NewBusinessRuleError(apperrors.ReasonAuctionNotActive, "auction is not active", details)
		}
		if auction.OwnerID == bidderID {
			return nil, apperrors.NewBusinessRuleError(apperrors.ReasonOwnerCannotBid, "owner cannot bid on their own auction", details)
		}
		if !amount.GreaterThan(auction.StartingPrice) {
			details["starting_price"] = auction.StartingPrice.String()
			return nil, apperrors.NewBusinessRuleError(apperrors.ReasonBelowStartingPrice, "bid must exceed the starting price", details)
		}

		current := auction.StartingPrice
		if last != nil {
			current = last.Amount
		}
		if !amount.GreaterThan(current) {
			details["current_amount"] = current.String()
			return nil, apperrors.NewBusinessRuleError(apperrors.ReasonBidTooLow, "bid must exceed the current winning amount", details)
		}
		if last != nil && last.BidderID == bidderID {
			return nil, apperrors.NewBusinessRuleError(apperrors.ReasonAlreadyHighestBidder, "you are already the highest bidder", details)
		}

		return &domain.Bid{
			AuctionID: auction.ID,
			BidderID:  bidderID,
			Amount:    amount,
		}, nil
	}
}

// announce runs after commit; failures are logged and never undo the bid.
func (l *BidLedger) announce(ctx context.Context, bid *domain.Bid) {
	ctx = context.WithoutCancel(ctx)
	payload := events.NewBidPayload{AuctionID: bid.AuctionID, BidderID: bid.BidderID, Amount: bid.Amount}

	if err := publishNewBid(ctx, l.publisher, l.publishTimeout, payload, l.now()); err != nil {
		l.metrics.EventDropped()
		l.logger.Warn("new bid event not queued",
			zap.String("auction_id", bid.AuctionID),
			zap.String("bid_id", bid.ID),
			zap.Error(err),
		)
	}

	if l.broadcaster != nil {
		l.broadcasts.Add(1)
		go func() {
			defer l.broadcasts.Done()
			if !l.broadcaster.PublishAuction(ctx, payload.AuctionID, string(events.EventNewBid), payload) {
				l.logger.Debug("new bid not broadcast", zap.String("auction_id", payload.AuctionID))
			}
		}()
	}
}

// Wait blocks until background broadcasts started so far have finished.
func (l *BidLedger) Wait() {
	l.broadcasts.Wait()
}

// FindLastBid returns the highest bid for the auction, or nil when it has none.
func (l *BidLedger) FindLastBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	bid, err := l.bids.FindHighest(ctx, auctionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find last bid: %w", err)
	}
	return bid, nil
}

// ListBids returns the auction's bids, newest first.
func (l *BidLedger) ListBids(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	bids, err := l.bids.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}

// LatestBidsPerBidder returns each distinct bidder's most recent bid on the auction.
func (l *BidLedger) LatestBidsPerBidder(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	bids, err := l.bids.LatestPerBidder(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("latest bids per bidder: %w", err)
	}
	return bids, nil
}

func publishNewBid(ctx context.Context, publisher events.Publisher, timeout time.Duration, payload events.NewBidPayload, now time.Time) error {
	if publisher == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return publisher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventNewBid,
		AuctionID: payload.AuctionID,
		Timestamp: now,
		Payload:   payload,
	})
}
