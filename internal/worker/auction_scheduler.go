package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auction-service/internal/clock"
	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/observability"
	"github.com/spec-kit/auction-service/internal/repository"
	"github.com/spec-kit/auction-service/internal/service"
)

// ErrTickInProgress is returned by Tick while another tick is still running.
var ErrTickInProgress = errors.New("scheduler: tick already in progress")

// ClosedAuctionNotifier is told about every auction a tick closed.
type ClosedAuctionNotifier interface {
	SendAuctionClosedNotifications(ctx context.Context, auction *domain.Auction, bids []domain.Bid) ([]domain.Notification, error)
}

// TickResult summarizes one sweep.
type TickResult struct {
	ClosedCount int
	Auctions    []domain.Auction
	WinningBids []domain.Bid
}

// AuctionScheduler closes auctions whose deadline passed and assigns their winning bids.
type AuctionScheduler struct {
	auctions repository.AuctionRepository
	bids     service.BidReader
	notifier ClosedAuctionNotifier
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics

	running atomic.Bool
}

// SchedulerDependencies bundles collaborators for the scheduler.
type SchedulerDependencies struct {
	AuctionRepo repository.AuctionRepository
	BidReader   service.BidReader
	Notifier    ClosedAuctionNotifier
	Clock       clock.Clock
	Interval    time.Duration
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewAuctionScheduler constructs the scheduler.
func NewAuctionScheduler(deps SchedulerDependencies) *AuctionScheduler {
	s := &AuctionScheduler{
		auctions: deps.AuctionRepo,
		bids:     deps.BidReader,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		interval: deps.Interval,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.interval <= 0 {
		s.interval = time.Minute
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Run ticks once immediately and then every interval until ctx is cancelled.
// Failed ticks are logged; the next tick retries.
func (s *AuctionScheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("auction scheduler started", zap.Duration("interval", s.interval))
	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auction scheduler stopped")
			return
		case <-ticker.C():
			s.runTick(ctx)
		}
	}
}

func (s *AuctionScheduler) runTick(ctx context.Context) {
	result, err := s.Tick(ctx)
	if err != nil {
		if errors.Is(err, ErrTickInProgress) || ctx.Err() != nil {
			return
		}
		s.logger.Error("auction sweep failed", zap.Error(err))
		return
	}
	if result.ClosedCount > 0 || len(result.WinningBids) > 0 {
		s.logger.Info("auction sweep finished",
			zap.Int("closed", result.ClosedCount),
			zap.Int("winners", len(result.WinningBids)),
		)
	}
}

// Tick closes due auctions (phase A), then marks the highest bid of every closed auction
// without a winner as WON (phase B), then notifies bidders of the auctions closed here.
// Phase B also finishes auctions left without a winner by an interrupted earlier tick.
func (s *AuctionScheduler) Tick(ctx context.Context) (result TickResult, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return TickResult{}, ErrTickInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	defer func() {
		s.metrics.TickFinished(err, time.Since(start), result.ClosedCount, len(result.WinningBids))
	}()

	closed, err := s.auctions.CloseDue(ctx, s.clock.Now())
	if err != nil {
		return TickResult{}, fmt.Errorf("close due auctions: %w", err)
	}
	result.Auctions = closed
	result.ClosedCount = len(closed)

	won, err := s.auctions.AssignWinners(ctx)
	if err != nil {
		return result, fmt.Errorf("assign winners: %w", err)
	}
	result.WinningBids = won

	for i := range closed {
		s.notify(ctx, &closed[i])
	}
	return result, nil
}

func (s *AuctionScheduler) notify(ctx context.Context, auction *domain.Auction) {
	if s.notifier == nil || s.bids == nil {
		return
	}
	bids, err := s.bids.LatestBidsPerBidder(ctx, auction.ID)
	if err != nil {
		s.logger.Error("load bids for closed auction", zap.String("auction_id", auction.ID), zap.Error(err))
		return
	}
	if _, err := s.notifier.SendAuctionClosedNotifications(ctx, auction, bids); err != nil {
		s.logger.Error("auction closed notifications failed", zap.String("auction_id", auction.ID), zap.Error(err))
	}
}
