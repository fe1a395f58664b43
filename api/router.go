package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nft_marketplace/internal/bank"
	"nft_marketplace/internal/events"
	"nft_marketplace/internal/marketplace"
	"nft_marketplace/internal/nft"
)

// Deps are the components the HTTP surface is built from. Hub, Registry and Bank are optional:
// the websocket feed is mounted only with a Hub and the dev routes only with both Registry and Bank.
type Deps struct {
	Service  *marketplace.Service
	Recent   *events.Recorder
	Hub      *events.Hub
	HubPath  string
	Registry *nft.Registry
	Bank     *bank.Ledger
	Logger   *zap.Logger
}

// InitRoutes registers the marketplace endpoints on the given Gin engine.
func InitRoutes(e *gin.Engine, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recent := d.Recent
	if recent == nil {
		recent = events.NewRecorder(0)
	}

	h := NewMarketplaceHandler(d.Service, recent, logger)

	e.GET("/info", h.handleInfo)

	e.GET("/listings", h.handleListings)
	e.POST("/listings", h.handleListItem)
	e.GET("/listings/:collection/:token_id", h.handleGetListing)
	e.PATCH("/listings/:collection/:token_id", h.handleUpdateListing)
	e.DELETE("/listings/:collection/:token_id", h.handleCancelListing)
	e.POST("/listings/:collection/:token_id/buy", h.handleBuyItem)

	e.GET("/proceeds/:account", h.handleGetProceeds)
	e.POST("/proceeds/withdraw", h.handleWithdrawProceeds)

	e.GET("/events", h.handleRecentEvents)
	if d.Hub != nil {
		path := d.HubPath
		if path == "" {
			path = "/events/ws"
		}
		e.GET(path, gin.WrapH(d.Hub))
	}

	if d.Registry != nil && d.Bank != nil {
		dev := newDevHandler(d.Registry, d.Bank, logger)
		g := e.Group("/dev")
		g.POST("/collections", dev.handleDeploy)
		g.GET("/collections/:collection", dev.handleCollection)
		g.POST("/collections/:collection/mint", dev.handleMint)
		g.GET("/collections/:collection/tokens/:token_id", dev.handleToken)
		g.POST("/collections/:collection/tokens/:token_id/approve", dev.handleApprove)
		g.POST("/accounts/:account/deposit", dev.handleDeposit)
		g.GET("/accounts/:account/balance", dev.handleBalance)
	}

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
