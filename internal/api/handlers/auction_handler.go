package handlers

import (
	"auction-engine/internal/api/middleware"
	"auction-engine/internal/domain"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	auctionManager *services.AuctionManager
	log            logger.Logger
}

func NewAuctionHandler(auctionManager *services.AuctionManager, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		log:            log,
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	p := middleware.PrincipalFrom(c)
	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), p, req.toCommand())
	if err != nil {
		return respondError(c, h.log, err)
	}

	h.log.Info("Auction created", "auction_id", auction.ID, "created_by", p.UserID)
	return c.JSON(http.StatusCreated, newAuctionResponse(auction, p))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	p := middleware.PrincipalFrom(c)
	auction, err := h.auctionManager.GetAuction(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction, p))
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	offset, limit, err := pagination(c, 10)
	if err != nil {
		return respondError(c, h.log, err)
	}
	filter := domain.AuctionFilter{
		Status:    domain.AuctionStatus(c.QueryParam("status")),
		CreatedBy: c.QueryParam("created_by"),
		Offset:    offset,
		Limit:     limit,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return respondError(c, h.log, domain.NewValidationError("Invalid status filter"))
	}

	p := middleware.PrincipalFrom(c)
	auctions, total, err := h.auctionManager.ListAuctions(c.Request().Context(), p, filter)
	if err != nil {
		return respondError(c, h.log, err)
	}

	items := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		items = append(items, newAuctionResponse(a, p))
	}
	return c.JSON(http.StatusOK, PageResponse{Items: items, Total: total, Offset: offset, Limit: limit})
}

func (h *AuctionHandler) UpdateAuction(c echo.Context) error {
	var req UpdateAuctionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	p := middleware.PrincipalFrom(c)
	auction, err := h.auctionManager.UpdateAuction(c.Request().Context(), p, c.Param("id"), req.toCommand())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction, p))
}

func (h *AuctionHandler) ActivateAuction(c echo.Context) error {
	return h.lifecycle(c, "activated", h.auctionManager.ActivateAuction)
}

func (h *AuctionHandler) EndAuction(c echo.Context) error {
	return h.lifecycle(c, "ended", h.auctionManager.EndAuction)
}

func (h *AuctionHandler) CompleteAuction(c echo.Context) error {
	return h.lifecycle(c, "completed", h.auctionManager.CompleteAuction)
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	return h.lifecycle(c, "cancelled", h.auctionManager.CancelAuction)
}

func (h *AuctionHandler) DeleteAuction(c echo.Context) error {
	p := middleware.PrincipalFrom(c)
	id := c.Param("id")
	if err := h.auctionManager.DeleteAuction(c.Request().Context(), p, id); err != nil {
		return respondError(c, h.log, err)
	}
	h.log.Info("Auction deleted", "auction_id", id, "by", p.UserID)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Auction deleted successfully",
	})
}

type lifecycleFunc func(ctx context.Context, p domain.Principal, auctionID string) (*domain.Auction, error)

func (h *AuctionHandler) lifecycle(c echo.Context, verb string, fn lifecycleFunc) error {
	p := middleware.PrincipalFrom(c)
	auction, err := fn(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.log.Info("Auction "+verb, "auction_id", auction.ID, "by", p.UserID)
	return c.JSON(http.StatusOK, newAuctionResponse(auction, p))
}

func (h *AuctionHandler) GetWinner(c echo.Context) error {
	info, err := h.auctionManager.GetWinner(c.Request().Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newWinnerResponse(info.Winner, info.WinningBid))
}

func (h *AuctionHandler) NotifyWinner(c echo.Context) error {
	winner, err := h.auctionManager.NotifyWinner(c.Request().Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Winner notified successfully",
		"winner":  newWinnerResponse(*winner, nil),
	})
}

func (h *AuctionHandler) ListBids(c echo.Context) error {
	offset, limit, err := pagination(c, 20)
	if err != nil {
		return respondError(c, h.log, err)
	}
	page, err := h.auctionManager.ListBids(c.Request().Context(), middleware.PrincipalFrom(c), c.Param("id"), offset, limit)
	if err != nil {
		return respondError(c, h.log, err)
	}

	items := make([]BidResponse, 0, len(page.Bids))
	for _, b := range page.Bids {
		items = append(items, newBidResponse(b))
	}
	return c.JSON(http.StatusOK, PageResponse{Items: items, Total: page.Total, Offset: page.Offset, Limit: page.Limit})
}

// pagination reads ?page=&limit= (page is 1-based) into an offset and limit.
func pagination(c echo.Context, defaultLimit int) (offset, limit int, err error) {
	page, limit := 1, defaultLimit
	if v := c.QueryParam("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, domain.NewValidationError("Invalid page")
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 || limit > 100 {
			return 0, 0, domain.NewValidationError("Invalid limit")
		}
	}
	if page-1 > math.MaxInt32/limit {
		return 0, 0, domain.NewValidationError("Invalid page")
	}
	return (page - 1) * limit, limit, nil
}
