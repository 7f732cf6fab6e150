// Package memory provides an in-process implementation of the repository interfaces.
// A single mutex serializes every operation, so PlaceWinning is atomic per call.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/repository"
)

// Store holds all rows in memory.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	users         map[string]domain.User
	auctions      map[string]domain.Auction
	// slices keep insertion order, which stands in for created_at ordering
	bids          []domain.Bid
	autoBids      []domain.AutoBid
	notifications []domain.Notification
}

// Option customizes a Store.
type Option func(*Store)

// WithNow overrides the timestamp source used for created_at values.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore builds an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:      func() time.Time { return time.Now().UTC() },
		users:    make(map[string]domain.User),
		auctions: make(map[string]domain.Auction),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Auctions() repository.AuctionRepository { return auctionRepo{s} }
func (s *Store) Bids() repository.BidRepository { return bidRepo{s} }
func (s *Store) AutoBids() repository.AutoBidRepository { return autoBidRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) Statistics() repository.StatisticsRepository { return statisticsRepo{s} }

// Set exposes the store through the repository interfaces.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Users:         s.Users(),
		Auctions:      s.Auctions(),
		Bids:          s.Bids(),
		AutoBids:      s.AutoBids(),
		Notifications: s.Notifications(),
		Statistics:    s.Statistics(),
	}
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// highestBid returns the index of the highest bid for the auction, or -1.
func (s *Store) highestBid(auctionID string) int {
	idx := -1
	for i, bid := range s.bids {
		if bid.AuctionID != auctionID {
			continue
		}
		if idx == -1 || bid.Amount.GreaterThan(s.bids[idx].Amount) {
			idx = i
		}
	}
	return idx
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = newID(user.ID)
	if _, exists := r.s.users[user.ID]; exists {
		return repository.ErrConflict
	}
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

type auctionRepo struct{ s *Store }

func (r auctionRepo) Create(_ context.Context, auction *domain.Auction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	auction.ID = newID(auction.ID)
	if _, exists := r.s.auctions[auction.ID]; exists {
		return repository.ErrConflict
	}
	if auction.Status == "" {
		auction.Status = domain.AuctionStatusActive
	}
	auction.CreatedAt = r.s.now()
	auction.UpdatedAt = auction.CreatedAt
	r.s.auctions[auction.ID] = *auction
	return nil
}

func (r auctionRepo) Update(_ context.Context, auction *domain.Auction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.auctions[auction.ID]
	if !ok || current.Status != domain.AuctionStatusActive {
		return repository.ErrNotFound
	}
	current.Title = auction.Title
	current.Description = auction.Description
	current.ImageURL = auction.ImageURL
	current.EndsAt = auction.EndsAt
	current.UpdatedAt = r.s.now()
	r.s.auctions[auction.ID] = current
	auction.UpdatedAt = current.UpdatedAt
	return nil
}

func (r auctionRepo) GetByID(_ context.Context, id string) (*domain.Auction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	auction, ok := r.s.auctions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &auction, nil
}

func (r auctionRepo) ListActive(_ context.Context, limit, offset int) ([]domain.Auction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var active []domain.Auction
	for _, auction := range r.s.auctions {
		if auction.Status == domain.AuctionStatusActive {
			active = append(active, auction)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].EndsAt.Equal(active[j].EndsAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].EndsAt.Before(active[j].EndsAt)
	})
	if offset >= len(active) {
		return nil, nil
	}
	active = active[offset:]
	if len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (r auctionRepo) CloseDue(_ context.Context, now time.Time) ([]domain.Auction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var closed []domain.Auction
	for id, auction := range r.s.auctions {
		if !auction.IsDue(now) {
			continue
		}
		price := decimal.Zero
		if idx := r.s.highestBid(id); idx >= 0 {
			price = r.s.bids[idx].Amount
		}
		auction.Status = domain.AuctionStatusClosed
		auction.ClosedPrice = &price
		auction.UpdatedAt = r.s.now()
		r.s.auctions[id] = auction
		closed = append(closed, auction)
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ID < closed[j].ID })
	return closed, nil
}

func (r auctionRepo) AssignWinners(_ context.Context) ([]domain.Bid, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	hasWinner := make(map[string]bool)
	for _, bid := range r.s.bids {
		if bid.Status == domain.BidStatusWon {
			hasWinner[bid.AuctionID] = true
		}
	}

	var won []domain.Bid
	for id, auction := range r.s.auctions {
		if auction.Status != domain.AuctionStatusClosed || hasWinner[id] {
			continue
		}
		idx := r.s.highestBid(id)
		if idx < 0 {
			continue
		}
		r.s.bids[idx].Status = domain.BidStatusWon
		won = append(won, r.s.bids[idx])
	}
	sort.Slice(won, func(i, j int) bool { return won[i].AuctionID < won[j].AuctionID })
	return won, nil
}

type bidRepo struct{ s *Store }

func (r bidRepo) PlaceWinning(_ context.Context, auctionID string, build repository.BidBuilder) (*domain.Bid, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var auction *domain.Auction
	if found, ok := r.s.auctions[auctionID]; ok {
		auction = &found
	}
	var last *domain.Bid
	if auction != nil {
		if idx := r.s.highestBid(auctionID); idx >= 0 {
			current := r.s.bids[idx]
			last = &current
		}
	}

	bid, err := build(auction, last)
	if err != nil {
		return nil, err
	}

	for i := range r.s.bids {
		if r.s.bids[i].AuctionID == auctionID && r.s.bids[i].Status == domain.BidStatusWinning {
			r.s.bids[i].Status = domain.BidStatusOutbid
		}
	}

	bid.ID = uuid.NewString()
	bid.AuctionID = auctionID
	bid.Status = domain.BidStatusWinning
	bid.CreatedAt = r.s.now()
	r.s.bids = append(r.s.bids, *bid)
	return bid, nil
}

func (r bidRepo) FindHighest(_ context.Context, auctionID string) (*domain.Bid, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	idx := r.s.highestBid(auctionID)
	if idx < 0 {
		return nil, repository.ErrNotFound
	}
	bid := r.s.bids[idx]
	return &bid, nil
}

func (r bidRepo) ListByAuction(_ context.Context, auctionID string) ([]domain.Bid, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Bid
	for i := len(r.s.bids) - 1; i >= 0; i-- {
		if r.s.bids[i].AuctionID == auctionID {
			result = append(result, r.s.bids[i])
		}
	}
	return result, nil
}

func (r bidRepo) LatestPerBidder(_ context.Context, auctionID string) ([]domain.Bid, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]bool)
	var result []domain.Bid
	for i := len(r.s.bids) - 1; i >= 0; i-- {
		bid := r.s.bids[i]
		if bid.AuctionID != auctionID || seen[bid.BidderID] {
			continue
		}
		seen[bid.BidderID] = true
		result = append(result, bid)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BidderID < result[j].BidderID })
	return result, nil
}

type autoBidRepo struct{ s *Store }

func (r autoBidRepo) Create(_ context.Context, autoBid *domain.AutoBid) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.autoBids {
		if existing.AuctionID == autoBid.AuctionID && existing.BidderID == autoBid.BidderID {
			return repository.ErrConflict
		}
	}
	autoBid.ID = newID(autoBid.ID)
	autoBid.CreatedAt = r.s.now()
	r.s.autoBids = append(r.s.autoBids, *autoBid)
	return nil
}

func (r autoBidRepo) ListEligible(_ context.Context, auctionID, excludeBidderID string, minMax decimal.Decimal) ([]domain.AutoBid, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.AutoBid
	for _, ab := range r.s.autoBids {
		if ab.AuctionID != auctionID || ab.BidderID == excludeBidderID || ab.MaxAmount.LessThan(minMax) {
			continue
		}
		result = append(result, ab)
	}
	return result, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) CreateMany(_ context.Context, notifications []domain.Notification) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	exists := func(userID, auctionID string) bool {
		for _, n := range r.s.notifications {
			if n.UserID == userID && n.Data.AuctionID == auctionID {
				return true
			}
		}
		return false
	}

	var created []domain.Notification
	for _, n := range notifications {
		if exists(n.UserID, n.Data.AuctionID) {
			continue
		}
		n.ID = uuid.NewString()
		n.CreatedAt = r.s.now()
		r.s.notifications = append(r.s.notifications, n)
		created = append(created, n)
	}
	return created, nil
}

func (r notificationRepo) ListByUser(_ context.Context, userID string) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if n := r.s.notifications[i]; n.UserID == userID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (r notificationRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.notifications[:0]
	var deleted int64
	for _, n := range r.s.notifications {
		if n.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	r.s.notifications = kept
	return deleted, nil
}

type statisticsRepo struct{ s *Store }

func (r statisticsRepo) ForUser(_ context.Context, userID string) (*domain.UserStatistics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stats := &domain.UserStatistics{Earnings: decimal.Zero}
	for _, auction := range r.s.auctions {
		if auction.OwnerID != userID {
			continue
		}
		stats.PostedAuctions++
		if auction.Status == domain.AuctionStatusClosed && auction.ClosedPrice != nil {
			stats.Earnings = stats.Earnings.Add(*auction.ClosedPrice)
		}
	}

	bidOn := make(map[string]bool)
	for _, bid := range r.s.bids {
		if bid.BidderID != userID || r.s.auctions[bid.AuctionID].Status != domain.AuctionStatusActive {
			continue
		}
		bidOn[bid.AuctionID] = true
		if bid.Status == domain.BidStatusWinning {
			stats.CurrentlyWinning++
		}
	}
	stats.ActiveBids = int64(len(bidOn))
	return stats, nil
}
