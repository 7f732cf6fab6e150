package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/events"
	"github.com/spec-kit/auction-service/internal/observability"
	"github.com/spec-kit/auction-service/internal/repository"
	apperrors "github.com/spec-kit/auction-service/pkg/util/errorutil"
)

// AutoBidEngine places counter-bids on behalf of registered auto-bids.
type AutoBidEngine struct {
	autoBids       repository.AutoBidRepository
	auctions       repository.AuctionRepository
	reader         BidReader
	writer         BidWriter
	publisher      events.Publisher
	publishTimeout time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time
}

// AutoBidDependencies bundles collaborators for the engine.
type AutoBidDependencies struct {
	AutoBidRepo    repository.AutoBidRepository
	AuctionRepo    repository.AuctionRepository
	Reader         BidReader
	Writer         BidWriter
	Publisher      events.Publisher
	PublishTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Now            func() time.Time
}

// NewAutoBidEngine constructs the engine.
func NewAutoBidEngine(deps AutoBidDependencies) *AutoBidEngine {
	e := &AutoBidEngine{
		autoBids:       deps.AutoBidRepo,
		auctions:       deps.AuctionRepo,
		reader:         deps.Reader,
		writer:         deps.Writer,
		publisher:      deps.Publisher,
		publishTimeout: deps.PublishTimeout,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		now:            deps.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.publishTimeout <= 0 {
		e.publishTimeout = 2 * time.Second
	}
	return e
}

// Create registers an auto-bid and queues an immediate evaluation against the current winner.
func (e *AutoBidEngine) Create(ctx context.Context, auctionID, bidderID string, incrementAmount, maxAmount decimal.Decimal) (*domain.AutoBid, error) {
	if !incrementAmount.IsPositive() || !maxAmount.IsPositive() {
		return nil, apperrors.NewValidationError("increment and max amounts must be positive", nil)
	}
	if !incrementAmount.Equal(incrementAmount.Round(moneyPlaces)) || !maxAmount.Equal(maxAmount.Round(moneyPlaces)) {
		return nil, apperrors.NewValidationError("amounts support at most two decimal places", nil)
	}
	if !maxAmount.GreaterThan(incrementAmount) {
		return nil, apperrors.NewBusinessRuleError(apperrors.ReasonMaxMustExceedIncrement,
			"max amount must exceed the increment", map[string]any{
				"increment_amount": incrementAmount.String(),
				"max_amount":       maxAmount.String(),
			})
	}

	auction, err := e.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewBusinessRuleError(apperrors.ReasonAuctionNotFound, "auction not found", nil)
		}
		return nil, fmt.Errorf("load auction: %w", err)
	}
	details := map[string]any{"auction_id": auction.ID}
	if !auction.IsActive() {
		return nil, apperrors.NewBusinessRuleError(apperrors.ReasonAuctionNotActive, "auction is not active", details)
	}
	if auction.OwnerID == bidderID {
		return nil, apperrors.NewBusinessRuleError(apperrors.ReasonOwnerCannotBid, "owner cannot bid on their own auction", details)
	}

	autoBid := &domain.AutoBid{
		AuctionID:       auctionID,
		BidderID:        bidderID,
		IncrementAmount: incrementAmount,
		MaxAmount:       maxAmount,
	}
	if err := e.autoBids.Create(ctx, autoBid); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("auto-bid already registered for this auction", details)
		}
		return nil, fmt.Errorf("create auto-bid: %w", err)
	}

	e.logger.Info("auto-bid registered",
		zap.String("auction_id", auctionID),
		zap.String("bidder_id", bidderID),
		zap.String("increment", incrementAmount.String()),
		zap.String("max", maxAmount.String()),
	)

	payload := events.NewBidPayload{AuctionID: auctionID, BidderID: bidderID, Amount: maxAmount, Synthetic: true}
	if err := publishNewBid(context.WithoutCancel(ctx), e.publisher, e.publishTimeout, payload, e.now()); err != nil {
		e.metrics.EventDropped()
		e.logger.Warn("auto-bid evaluation not queued", zap.String("auction_id", auctionID), zap.Error(err))
	}
	return autoBid, nil
}

// HandleNewBidEvent is the queue consumer entry point.
func (e *AutoBidEngine) HandleNewBidEvent(ctx context.Context, event events.Event) error {
	payload, ok := event.NewBid()
	if !ok {
		return fmt.Errorf("unexpected event %q", event.Type)
	}
	return e.HandleNewBid(ctx, payload)
}

// HandleNewBid runs every eligible auto-bid of the auction once, earliest registered first.
// Eligible auto-bids belong to someone other than the current winner (the event's bidder
// while the auction has no bids) and can reach the current winning amount.
func (e *AutoBidEngine) HandleNewBid(ctx context.Context, payload events.NewBidPayload) error {
	auction, err := e.auctions.GetByID(ctx, payload.AuctionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			e.logger.Warn("new bid for unknown auction", zap.String("auction_id", payload.AuctionID))
			return nil
		}
		return fmt.Errorf("load auction: %w", err)
	}
	if !auction.IsActive() {
		return nil
	}

	last, err := e.reader.FindLastBid(ctx, auction.ID)
	if err != nil {
		return err
	}
	current := auction.StartingPrice
	exclude := payload.BidderID
	if last != nil {
		current = last.Amount
		exclude = last.BidderID
	}

	eligible, err := e.autoBids.ListEligible(ctx, auction.ID, exclude, current)
	if err != nil {
		return fmt.Errorf("list eligible auto-bids: %w", err)
	}

	for _, autoBid := range eligible {
		if _, err := e.AutoBid(ctx, autoBid.AuctionID, autoBid.BidderID, autoBid.IncrementAmount, autoBid.MaxAmount); err != nil {
			return err
		}
	}
	return nil
}

// AutoBid raises the bidder's bid by the increment, capped at maxAmount, using state read now.
// It returns nil without error when no improving bid is possible or the ledger rejects it.
func (e *AutoBidEngine) AutoBid(ctx context.Context, auctionID, bidderID string, incrementAmount, maxAmount decimal.Decimal) (*domain.Bid, error) {
	last, err := e.reader.FindLastBid(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	var candidate decimal.Decimal
	if last == nil {
		auction, err := e.auctions.GetByID(ctx, auctionID)
		if err != nil {
			return nil, fmt.Errorf("load auction: %w", err)
		}
		candidate = decimal.Min(auction.StartingPrice.Add(incrementAmount), maxAmount)
	} else {
		if last.BidderID == bidderID {
			return nil, nil
		}
		candidate = decimal.Min(last.Amount.Add(incrementAmount), maxAmount)
		if last.Amount.GreaterThanOrEqual(candidate) {
			e.metrics.AutoBidSkipped()
			e.logger.Debug("auto-bid cap reached",
				zap.String("auction_id", auctionID),
				zap.String("bidder_id", bidderID),
				zap.String("current_amount", last.Amount.String()),
			)
			return nil, nil
		}
	}

	bid, err := e.writer.Create(ctx, auctionID, bidderID, candidate)
	if err != nil {
		if reason, ok := apperrors.ReasonOf(err); ok {
			e.metrics.AutoBidSkipped()
			e.logger.Info("auto-bid rejected",
				zap.String("auction_id", auctionID),
				zap.String("bidder_id", bidderID),
				zap.String("amount", candidate.String()),
				zap.String("reason", string(reason)),
			)
			return nil, nil
		}
		return nil, err
	}

	e.metrics.AutoBidPlaced()
	return bid, nil
}
