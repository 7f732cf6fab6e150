package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/persistence"
	"github.com/spec-kit/auction-service/internal/repository"
	"github.com/spec-kit/auction-service/internal/service"
	apperrors "github.com/spec-kit/auction-service/pkg/util/errorutil"
)

// setupPostgres migrates the database named by TEST_POSTGRES_DSN and empties it.
// Tests using it are skipped when no database is available.
func setupPostgres(t *testing.T) repository.Set {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}

	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	_, err = pool.Exec(ctx, `TRUNCATE notifications, auto_bids, bids, auctions, users CASCADE`)
	require.NoError(t, err)

	return repository.NewPostgresSet(pool)
}

func createUsers(t *testing.T, repos repository.Set, names ...string) map[string]string {
	t.Helper()
	ids := make(map[string]string, len(names))
	for _, name := range names {
		user := &domain.User{Name: name, Email: name + "@example.com"}
		require.NoError(t, repos.Users.Create(context.Background(), user))
		ids[name] = user.ID
	}
	return ids
}

func createAuction(t *testing.T, repos repository.Set, ownerID string, endsAt time.Time) *domain.Auction {
	t.Helper()
	auction := &domain.Auction{
		Title:         "Pocket watch",
		Description:   "Runs five minutes fast",
		StartingPrice: decimal.NewFromInt(100),
		Status:        domain.AuctionStatusActive,
		OwnerID:       ownerID,
		EndsAt:        endsAt,
	}
	require.NoError(t, repos.Auctions.Create(context.Background(), auction))
	return auction
}

func TestPostgresConcurrentBidsKeepSingleWinner(t *testing.T) {
	repos := setupPostgres(t)
	ctx := context.Background()

	const bidders = 24
	names := []string{"owner"}
	for i := 0; i < bidders; i++ {
		names = append(names, fmt.Sprintf("bidder%02d", i))
	}
	users := createUsers(t, repos, names...)
	auction := createAuction(t, repos, users["owner"], time.Now().Add(time.Hour))
	ledger := service.NewBidLedger(service.BidLedgerDependencies{BidRepo: repos.Bids})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// several callers race with the same amount
			value := decimal.NewFromInt(int64(110 + (i%8)*10))
			_, err := ledger.Create(ctx, auction.ID, users[fmt.Sprintf("bidder%02d", i)], value)
			if err != nil {
				_, ok := apperrors.ReasonOf(err)
				assert.True(t, ok, "unexpected error: %v", err)
				return
			}
			mu.Lock()
			accepted++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	bids, err := repos.Bids.ListByAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, accepted)

	winning := 0
	for i, bid := range bids {
		if bid.Status == domain.BidStatusWinning {
			winning++
			assert.Equal(t, 0, i, "only the newest bid may be winning")
		}
		if i > 0 {
			assert.True(t, bids[i-1].Amount.GreaterThan(bid.Amount),
				"amount %s followed by %s", bid.Amount, bids[i-1].Amount)
		}
	}
	assert.Equal(t, 1, winning)

	highest, err := repos.Bids.FindHighest(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusWinning, highest.Status)

	_, err = ledger.Create(ctx, "not-a-uuid", users["bidder00"], decimal.NewFromInt(500))
	reason, ok := apperrors.ReasonOf(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperrors.ReasonAuctionNotFound, reason)
}

func TestPostgresCloseDueAndAssignWinners(t *testing.T) {
	repos := setupPostgres(t)
	ctx := context.Background()

	users := createUsers(t, repos, "owner", "alice", "bob")
	now := time.Now()
	sold := createAuction(t, repos, users["owner"], now.Add(time.Hour))
	unsold := createAuction(t, repos, users["owner"], now.Add(time.Hour))
	later := createAuction(t, repos, users["owner"], now.Add(3*time.Hour))

	ledger := service.NewBidLedger(service.BidLedgerDependencies{BidRepo: repos.Bids})
	_, err := ledger.Create(ctx, sold.ID, users["alice"], decimal.NewFromInt(150))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, sold.ID, users["bob"], decimal.NewFromInt(200))
	require.NoError(t, err)

	sweepAt := now.Add(2 * time.Hour)
	closed, err := repos.Auctions.CloseDue(ctx, sweepAt)
	require.NoError(t, err)
	require.Len(t, closed, 2)

	prices := map[string]decimal.Decimal{}
	for _, auction := range closed {
		assert.Equal(t, domain.AuctionStatusClosed, auction.Status)
		require.NotNil(t, auction.ClosedPrice)
		prices[auction.ID] = *auction.ClosedPrice
	}
	assert.True(t, prices[sold.ID].Equal(decimal.NewFromInt(200)), "got %s", prices[sold.ID])
	assert.True(t, prices[unsold.ID].IsZero(), "got %s", prices[unsold.ID])

	open, err := repos.Auctions.GetByID(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusActive, open.Status)

	again, err := repos.Auctions.CloseDue(ctx, sweepAt)
	require.NoError(t, err)
	assert.Empty(t, again)

	won, err := repos.Auctions.AssignWinners(ctx)
	require.NoError(t, err)
	require.Len(t, won, 1)
	assert.Equal(t, sold.ID, won[0].AuctionID)
	assert.Equal(t, users["bob"], won[0].BidderID)
	assert.Equal(t, domain.BidStatusWon, won[0].Status)

	won, err = repos.Auctions.AssignWinners(ctx)
	require.NoError(t, err)
	assert.Empty(t, won)

	latest, err := repos.Bids.LatestPerBidder(ctx, sold.ID)
	require.NoError(t, err)
	assert.Len(t, latest, 2)
}

func TestPostgresNotificationsSkipDuplicates(t *testing.T) {
	repos := setupPostgres(t)
	ctx := context.Background()

	users := createUsers(t, repos, "owner", "alice", "bob", "carol")
	auction := createAuction(t, repos, users["owner"], time.Now().Add(time.Hour))

	outcome := func(userID string, won bool) domain.Notification {
		data := domain.AuctionOutcome{
			AuctionID: auction.ID,
			Message:   "Auction closed",
			BidStatus: domain.BidStatusOutbid,
			Outcome:   domain.LostOutcome(),
		}
		if won {
			data.BidStatus = domain.BidStatusWon
			data.Outcome = domain.WonOutcome(decimal.NewFromInt(200))
		}
		return domain.Notification{UserID: userID, Data: data}
	}

	created, err := repos.Notifications.CreateMany(ctx, []domain.Notification{
		outcome(users["alice"], false),
		outcome(users["bob"], true),
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, n := range created {
		assert.NotEmpty(t, n.ID)
	}

	created, err = repos.Notifications.CreateMany(ctx, []domain.Notification{
		outcome(users["alice"], false),
		outcome(users["carol"], false),
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, users["carol"], created[0].UserID)

	stored, err := repos.Notifications.ListByUser(ctx, users["bob"])
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.True(t, stored[0].Data.Outcome.Won())
	assert.True(t, stored[0].Data.Outcome.Amount.Equal(decimal.NewFromInt(200)))

	deleted, err := repos.Notifications.DeleteByUser(ctx, users["alice"])
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}
