package handlers

import (
	"auction-engine/internal/api/middleware"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"
	"net/http"

	"github.com/labstack/echo/v4"
)

type BidHandler struct {
	bidService *services.BidService
	log        logger.Logger
}

func NewBidHandler(bidService *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bidService: bidService,
		log:        log,
	}
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	bid, err := h.bidService.PlaceBid(c.Request().Context(), services.PlaceBidCommand{
		AuctionID: c.Param("id"),
		Bidder:    middleware.PrincipalFrom(c),
		Amount:    *req.Amount,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, newBidResponse(bid))
}
