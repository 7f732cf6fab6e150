package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/auction-service/internal/api/dto"
	"github.com/spec-kit/auction-service/internal/auth"
	"github.com/spec-kit/auction-service/internal/service"
	apperrors "github.com/spec-kit/auction-service/pkg/util/errorutil"
)

const maxPageSize = 100

// AuctionsHandler serves listings, bids and auto-bids.
type AuctionsHandler struct {
	auctions *service.AuctionService
	ledger   *service.BidLedger
	autoBids *service.AutoBidEngine
}

// NewAuctionsHandler constructs handler.
func NewAuctionsHandler(auctions *service.AuctionService, ledger *service.BidLedger, autoBids *service.AutoBidEngine) *AuctionsHandler {
	return &AuctionsHandler{auctions: auctions, ledger: ledger, autoBids: autoBids}
}

// CreateAuction POST /auctions.
func (h *AuctionsHandler) CreateAuction(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	var req dto.CreateAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	auction, err := h.auctions.CreateAuction(c.UserContext(), userID, service.AuctionCreateInput{
		Title:         req.Title,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		StartingPrice: req.StartingPrice,
		EndsAt:        req.EndsAt,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAuctionResponse(auction)})
}

// ListAuctions GET /auctions.
func (h *AuctionsHandler) ListAuctions(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	auctions, err := h.auctions.ListActiveAuctions(c.UserContext(), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.AuctionResponse, 0, len(auctions))
	for i := range auctions {
		items = append(items, dto.NewAuctionResponse(&auctions[i]))
	}
	return c.JSON(fiber.Map{"data": items, "page": page, "page_size": pageSize})
}

// GetAuction GET /auctions/:id.
func (h *AuctionsHandler) GetAuction(c *fiber.Ctx) error {
	auction, err := h.auctions.GetAuction(c.UserContext(), auctionID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuctionResponse(auction)})
}

// UpdateAuction PUT /auctions/:id.
func (h *AuctionsHandler) UpdateAuction(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	auction, err := h.auctions.UpdateAuction(c.UserContext(), userID, auctionID(c), service.AuctionUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuctionResponse(auction)})
}

// PlaceBid POST /auctions/:id/bids.
func (h *AuctionsHandler) PlaceBid(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	var req dto.PlaceBidRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	bid, err := h.ledger.Create(c.UserContext(), auctionID(c), userID, req.Amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewBidResponse(bid)})
}

// ListBids GET /auctions/:id/bids.
func (h *AuctionsHandler) ListBids(c *fiber.Ctx) error {
	auction, err := h.auctions.GetAuction(c.UserContext(), auctionID(c))
	if err != nil {
		return err
	}
	bids, err := h.ledger.ListBids(c.UserContext(), auction.ID)
	if err != nil {
		return err
	}
	items := make([]dto.BidResponse, 0, len(bids))
	for i := range bids {
		items = append(items, dto.NewBidResponse(&bids[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateAutoBid POST /auctions/:id/auto-bids.
func (h *AuctionsHandler) CreateAutoBid(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	var req dto.CreateAutoBidRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	autoBid, err := h.autoBids.Create(c.UserContext(), auctionID(c), userID, req.IncrementAmount, req.MaxAmount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAutoBidResponse(autoBid)})
}

// auctionID copies the route param, which fiber backs with the reusable request buffer.
func auctionID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
