package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/repository"
)

func seedAuction(t *testing.T, s *Store, endsAt time.Time) *domain.Auction {
	t.Helper()
	auction := &domain.Auction{
		Title:         "Road bike",
		StartingPrice: decimal.NewFromInt(100),
		OwnerID:       "owner",
		EndsAt:        endsAt,
	}
	require.NoError(t, s.Auctions().Create(context.Background(), auction))
	return auction
}

func placeBid(t *testing.T, s *Store, auctionID, bidderID string, amount int64) *domain.Bid {
	t.Helper()
	bid, err := s.Bids().PlaceWinning(context.Background(), auctionID, func(_ *domain.Auction, _ *domain.Bid) (*domain.Bid, error) {
		return &domain.Bid{BidderID: bidderID, Amount: decimal.NewFromInt(amount)}, nil
	})
	require.NoError(t, err)
	return bid
}

func TestPlaceWinningDemotesPreviousWinner(t *testing.T) {
	t.Parallel()

	s := NewStore()
	auction := seedAuction(t, s, time.Now().Add(time.Hour))

	placeBid(t, s, auction.ID, "alice", 150)
	placeBid(t, s, auction.ID, "bob", 200)

	bids, err := s.Bids().ListByAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, "bob", bids[0].BidderID)
	assert.Equal(t, domain.BidStatusWinning, bids[0].Status)
	assert.Equal(t, domain.BidStatusOutbid, bids[1].Status)

	highest, err := s.Bids().FindHighest(context.Background(), auction.ID)
	require.NoError(t, err)
	assert.True(t, highest.Amount.Equal(decimal.NewFromInt(200)))
}

func TestPlaceWinningPassesMissingAuctionToBuilder(t *testing.T) {
	t.Parallel()

	s := NewStore()
	called := false
	_, err := s.Bids().PlaceWinning(context.Background(), "missing", func(a *domain.Auction, last *domain.Bid) (*domain.Bid, error) {
		called = true
		assert.Nil(t, a)
		assert.Nil(t, last)
		return nil, repository.ErrNotFound
	})
	assert.True(t, called)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCloseDueAndAssignWinnersAreIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore()
	withBids := seedAuction(t, s, now.Add(-time.Minute))
	empty := seedAuction(t, s, now.Add(-time.Minute))
	future := seedAuction(t, s, now.Add(time.Hour))
	placeBid(t, s, withBids.ID, "alice", 150)
	placeBid(t, s, future.ID, "alice", 120)

	closed, err := s.Auctions().CloseDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, closed, 2)

	won, err := s.Auctions().AssignWinners(context.Background())
	require.NoError(t, err)
	require.Len(t, won, 1)
	assert.Equal(t, withBids.ID, won[0].AuctionID)

	closed, err = s.Auctions().CloseDue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, closed)
	won, err = s.Auctions().AssignWinners(context.Background())
	require.NoError(t, err)
	assert.Empty(t, won)

	got, err := s.Auctions().GetByID(context.Background(), empty.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClosedPrice)
	assert.True(t, got.ClosedPrice.IsZero())
}

func TestNotificationsSkipDuplicates(t *testing.T) {
	t.Parallel()

	s := NewStore()
	batch := []domain.Notification{
		{UserID: "alice", Data: domain.AuctionOutcome{AuctionID: "a1", BidStatus: domain.BidStatusWon}},
		{UserID: "bob", Data: domain.AuctionOutcome{AuctionID: "a1", BidStatus: domain.BidStatusOutbid}},
	}

	created, err := s.Notifications().CreateMany(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	created, err = s.Notifications().CreateMany(context.Background(), batch)
	require.NoError(t, err)
	assert.Empty(t, created)

	deleted, err := s.Notifications().DeleteByUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	remaining, err := s.Notifications().ListByUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestRowsKeepCreationOrder(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	auction := seedAuction(t, s, time.Now().Add(time.Hour))

	for _, bidder := range []string{"zoe", "adam", "mia"} {
		require.NoError(t, s.AutoBids().Create(ctx, &domain.AutoBid{
			AuctionID:       auction.ID,
			BidderID:        bidder,
			IncrementAmount: decimal.NewFromInt(10),
			MaxAmount:       decimal.NewFromInt(300),
		}))
	}
	eligible, err := s.AutoBids().ListEligible(ctx, auction.ID, "adam", decimal.NewFromInt(100))
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	assert.Equal(t, "zoe", eligible[0].BidderID)
	assert.Equal(t, "mia", eligible[1].BidderID)

	for _, auctionID := range []string{"a1", "a2"} {
		_, err := s.Notifications().CreateMany(ctx, []domain.Notification{
			{UserID: "alice", Data: domain.AuctionOutcome{AuctionID: auctionID}},
		})
		require.NoError(t, err)
	}
	listed, err := s.Notifications().ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "a2", listed[0].Data.AuctionID)
}
