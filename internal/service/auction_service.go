package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/repository"
	apperrors "github.com/spec-kit/auction-service/pkg/util/errorutil"
)

const (
	maxTitleLength       = 64
	maxDescriptionLength = 255
)

// AuctionService manages auction listings.
type AuctionService struct {
	auctions repository.AuctionRepository
	logger   *zap.Logger
	now      func() time.Time
}

// AuctionDependencies bundles collaborators for the auction service.
type AuctionDependencies struct {
	AuctionRepo repository.AuctionRepository
	Logger      *zap.Logger
	Now         func() time.Time
}

// AuctionCreateInput describes a new listing.
type AuctionCreateInput struct {
	Title         string
	Description   string
	ImageURL      string
	StartingPrice decimal.Decimal
	EndsAt        time.Time
}

// AuctionUpdateInput describes editable listing fields.
type AuctionUpdateInput struct {
	Title       string
	Description string
	ImageURL    *string
	EndsAt      time.Time
}

// NewAuctionService constructs the service.
func NewAuctionService(deps AuctionDependencies) *AuctionService {
	s := &AuctionService{auctions: deps.AuctionRepo, logger: deps.Logger, now: deps.Now}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// CreateAuction lists a new ACTIVE auction owned by ownerID.
func (s *AuctionService) CreateAuction(ctx context.Context, ownerID string, input AuctionCreateInput) (*domain.Auction, error) {
	title, description, err := s.validateListing(input.Title, input.Description, input.EndsAt)
	if err != nil {
		return nil, err
	}
	if !input.StartingPrice.IsPositive() || !input.StartingPrice.Equal(input.StartingPrice.Round(moneyPlaces)) {
		return nil, apperrors.NewValidationError("starting_price must be positive with at most two decimals", nil)
	}

	auction := &domain.Auction{
		Title:         title,
		Description:   description,
		ImageURL:      strings.TrimSpace(input.ImageURL),
		StartingPrice: input.StartingPrice,
		Status:        domain.AuctionStatusActive,
		OwnerID:       ownerID,
		EndsAt:        input.EndsAt.UTC(),
	}
	if err := s.auctions.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}
	s.logger.Info("auction created", zap.String("auction_id", auction.ID), zap.String("owner_id", ownerID))
	return auction, nil
}

// UpdateAuction edits an ACTIVE auction; only its owner may do so.
func (s *AuctionService) UpdateAuction(ctx context.Context, ownerID, auctionID string, input AuctionUpdateInput) (*domain.Auction, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.OwnerID != ownerID {
		return nil, apperrors.NewForbidden("you do not have permission for this auction")
	}
	if !auction.IsActive() {
		return nil, apperrors.NewBusinessRuleError(apperrors.ReasonAuctionNotActive, "auction is not active", map[string]any{
			"auction_id": auction.ID,
		})
	}

	title, description, err := s.validateListing(input.Title, input.Description, input.EndsAt)
	if err != nil {
		return nil, err
	}
	auction.Title = title
	auction.Description = description
	auction.EndsAt = input.EndsAt.UTC()
	if input.ImageURL != nil {
		auction.ImageURL = strings.TrimSpace(*input.ImageURL)
	}

	if err := s.auctions.Update(ctx, auction); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// closed between the read and the write
			return nil, apperrors.NewBusinessRuleError(apperrors.ReasonAuctionNotActive, "auction is not active", nil)
		}
		return nil, fmt.Errorf("update auction: %w", err)
	}
	return auction, nil
}

// GetAuction loads a single auction.
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("auction", map[string]any{"auction_id": auctionID})
		}
		return nil, fmt.Errorf("get auction: %w", err)
	}
	return auction, nil
}

// ListActiveAuctions pages through open auctions, soonest ending first.
func (s *AuctionService) ListActiveAuctions(ctx context.Context, limit, offset int) ([]domain.Auction, error) {
	auctions, err := s.auctions.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return auctions, nil
}

func (s *AuctionService) validateListing(title, description string, endsAt time.Time) (string, string, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if n := utf8.RuneCountInString(title); n < 1 || n > maxTitleLength {
		return "", "", apperrors.NewValidationError("title must be 1-64 characters", nil)
	}
	if n := utf8.RuneCountInString(description); n < 1 || n > maxDescriptionLength {
		return "", "", apperrors.NewValidationError("description must be 1-255 characters", nil)
	}
	if !endsAt.After(s.now()) {
		return "", "", apperrors.NewValidationError("ends_at must be in the future", nil)
	}
	return title, description, nil
}
