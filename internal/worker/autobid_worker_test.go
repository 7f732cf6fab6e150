package worker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/events"
	"github.com/spec-kit/auction-service/internal/repository/memory"
	"github.com/spec-kit/auction-service/internal/service"
)

func TestAutoBidWorkerRunsCascade(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	queue := events.NewQueue(64)
	ledger := service.NewBidLedger(service.BidLedgerDependencies{
		BidRepo:   store.Bids(),
		Publisher: queue,
		Logger:    logger,
	})
	engine := service.NewAutoBidEngine(service.AutoBidDependencies{
		AutoBidRepo: store.AutoBids(),
		AuctionRepo: store.Auctions(),
		Reader:      ledger,
		Writer:      ledger,
		Publisher:   queue,
		Logger:      logger,
	})

	auction := &domain.Auction{
		Title:         "Road bike",
		Description:   "Carbon frame",
		StartingPrice: decimal.NewFromInt(100),
		OwnerID:       "owner",
		EndsAt:        time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Auctions().Create(context.Background(), auction))

	ctx, cancel := context.WithCancel(context.Background())
	done := StartAutoBidWorker(ctx, queue, engine, logger)

	_, err := engine.Create(ctx, auction.ID, "carol", decimal.NewFromInt(50), decimal.NewFromInt(300))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, auction.ID, "alice", decimal.NewFromInt(200))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		last, err := ledger.FindLastBid(context.Background(), auction.ID)
		return err == nil && last != nil && last.BidderID == "carol" && last.Amount.Equal(decimal.NewFromInt(250))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestAutoBidWorkerWithoutQueueIsDone(t *testing.T) {
	t.Parallel()

	done := StartAutoBidWorker(context.Background(), nil, nil, nil)
	_, open := <-done
	assert.False(t, open)
}
