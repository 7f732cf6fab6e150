package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/events"
	"github.com/spec-kit/auction-service/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) pop() (events.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return events.Event{}, false
	}
	event := p.events[0]
	p.events = p.events[1:]
	return event, true
}

func (p *recordingPublisher) pending() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	auctions []string
}

func (b *recordingBroadcaster) PublishAuction(_ context.Context, auctionID, _ string, _ any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auctions = append(b.auctions, auctionID)
	return true
}

type fixture struct {
	store       *memory.Store
	events      *recordingPublisher
	broadcaster *recordingBroadcaster
	ledger      *BidLedger
	engine      *AutoBidEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var (
		mu   sync.Mutex
		tick = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	)
	// strictly increasing timestamps keep creation order observable
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Millisecond)
		return tick
	}

	logger := zaptest.NewLogger(t)
	store := memory.NewStore(memory.WithNow(now))
	publisher := &recordingPublisher{}
	broadcaster := &recordingBroadcaster{}

	ledger := NewBidLedger(BidLedgerDependencies{
		BidRepo:     store.Bids(),
		Publisher:   publisher,
		Broadcaster: broadcaster,
		Logger:      logger,
		Now:         now,
	})
	engine := NewAutoBidEngine(AutoBidDependencies{
		AutoBidRepo: store.AutoBids(),
		AuctionRepo: store.Auctions(),
		Reader:      ledger,
		Writer:      ledger,
		Publisher:   publisher,
		Logger:      logger,
		Now:         now,
	})

	return &fixture{store: store, events: publisher, broadcaster: broadcaster, ledger: ledger, engine: engine}
}

func (f *fixture) auction(t *testing.T, startingPrice int64) *domain.Auction {
	t.Helper()
	auction := &domain.Auction{
		Title:         "Mechanical watch",
		Description:   "Serviced last year",
		StartingPrice: decimal.NewFromInt(startingPrice),
		Status:        domain.AuctionStatusActive,
		OwnerID:       "owner",
		EndsAt:        time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, f.store.Auctions().Create(context.Background(), auction))
	return auction
}

// drain feeds queued events to the engine until the cascade settles.
func (f *fixture) drain(t *testing.T) int {
	t.Helper()
	processed := 0
	for {
		event, ok := f.events.pop()
		if !ok {
			return processed
		}
		require.NoError(t, f.engine.HandleNewBidEvent(context.Background(), event))
		processed++
		require.Less(t, processed, 1000, "cascade did not converge")
	}
}

func (f *fixture) bids(t *testing.T, auctionID string) []domain.Bid {
	t.Helper()
	bids, err := f.ledger.ListBids(context.Background(), auctionID)
	require.NoError(t, err)
	return bids
}

// requireConsistentLedger checks one WINNING bid at most and strictly increasing amounts.
func requireConsistentLedger(t *testing.T, bids []domain.Bid) {
	t.Helper()
	winning := 0
	for i, bid := range bids {
		if bid.Status == domain.BidStatusWinning {
			winning++
		}
		// bids are newest first
		if i > 0 {
			require.True(t, bids[i-1].Amount.GreaterThan(bid.Amount),
				"amount %s followed by %s", bid.Amount, bids[i-1].Amount)
		}
	}
	require.LessOrEqual(t, winning, 1)
}

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
