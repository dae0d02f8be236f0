package api

import (
	"auction-engine/internal/api/handlers"
	apimw "auction-engine/internal/api/middleware"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type RouterDeps struct {
	AuctionManager *services.AuctionManager
	BidService     *services.BidService
	Log            logger.Logger
	ServiceName    string
	// AccessLog turns on echo's JSON request log.
	AccessLog bool
}

// NewRouter builds the echo instance serving /api/v1 and /health.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewCustomValidator()

	e.Use(middleware.RequestID())
	if deps.AccessLog {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
		}))
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			apimw.HeaderUserID,
			apimw.HeaderUserRole,
		},
		MaxAge: 86400,
	}))

	auctionHandler := handlers.NewAuctionHandler(deps.AuctionManager, deps.Log)
	bidHandler := handlers.NewBidHandler(deps.BidService, deps.Log)

	api := e.Group("/api/v1", apimw.Principal())
	api.GET("/auctions", auctionHandler.ListAuctions)
	api.GET("/auctions/:id", auctionHandler.GetAuction)
	api.GET("/auctions/:id/bids", auctionHandler.ListBids)

	authed := api.Group("", apimw.RequireUser)
	authed.POST("/auctions", auctionHandler.CreateAuction)
	authed.PUT("/auctions/:id", auctionHandler.UpdateAuction)
	authed.DELETE("/auctions/:id", auctionHandler.DeleteAuction)
	authed.PUT("/auctions/:id/activate", auctionHandler.ActivateAuction)
	authed.PUT("/auctions/:id/end", auctionHandler.EndAuction)
	authed.PUT("/auctions/:id/complete", auctionHandler.CompleteAuction)
	authed.PUT("/auctions/:id/cancel", auctionHandler.CancelAuction)
	authed.POST("/auctions/:id/bids", bidHandler.PlaceBid)
	authed.GET("/auctions/:id/winner", auctionHandler.GetWinner)
	authed.POST("/auctions/:id/notify-winner", auctionHandler.NotifyWinner)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   deps.ServiceName,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	return e
}
