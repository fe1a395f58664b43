package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nft_marketplace/internal/bank"
	"nft_marketplace/internal/nft"
	"nft_marketplace/internal/units"
)

// devHandler exposes the development chain so a local marketplace can be driven end to end.
type devHandler struct {
	registry *nft.Registry
	ledger   *bank.Ledger
	logger   *zap.Logger
}

func newDevHandler(registry *nft.Registry, ledger *bank.Ledger, logger *zap.Logger) *devHandler {
	return &devHandler{registry: registry, ledger: ledger, logger: logger}
}

// handleDeploy handles POST /dev/collections. The caller becomes the deployer.
func (h *devHandler) handleDeploy(ctx *gin.Context) {
	caller, ok := callerAccount(ctx)
	if !ok {
		return
	}
	var req struct {
		Name     string `json:"name" binding:"required"`
		Symbol   string `json:"symbol" binding:"required"`
		TokenURI string `json:"token_uri"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	addr, err := h.registry.Deploy(ctx.Request.Context(), caller, req.Name, req.Symbol, req.TokenURI)
	if err != nil {
		writeError(ctx, err)
		return
	}
	h.logger.Info("collection deployed",
		zap.String("collection", addr.Hex()),
		zap.String("deployer", caller.Hex()),
		zap.String("symbol", req.Symbol))
	ctx.JSON(http.StatusCreated, gin.H{"collection": addr.Hex(), "name": req.Name, "symbol": req.Symbol})
}

// handleCollection handles GET /dev/collections/:collection.
func (h *devHandler) handleCollection(ctx *gin.Context) {
	coll, ok := bindAddress(ctx, ctx.Param("collection"))
	if !ok {
		return
	}
	info, err := h.registry.Collection(ctx.Request.Context(), coll)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"collection": info.Address.Hex(),
		"name":       info.Name,
		"symbol":     info.Symbol,
		"minted":     info.Minted,
	})
}

// handleMint handles POST /dev/collections/:collection/mint. The token goes to the caller.
func (h *devHandler) handleMint(ctx *gin.Context) {
	caller, ok := callerAccount(ctx)
	if !ok {
		return
	}
	coll, ok := bindAddress(ctx, ctx.Param("collection"))
	if !ok {
		return
	}
	id, err := h.registry.Mint(ctx.Request.Context(), coll, caller)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"collection": coll.Hex(), "token_id": id.String(), "owner": caller.Hex()})
}

// handleApprove handles POST /dev/collections/:collection/tokens/:token_id/approve.
func (h *devHandler) handleApprove(ctx *gin.Context) {
	caller, ok := callerAccount(ctx)
	if !ok {
		return
	}
	key, ok := bindAssetKey(ctx)
	if !ok {
		return
	}
	var req struct {
		To string `json:"to" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	to, ok := bindAddress(ctx, req.To)
	if !ok {
		return
	}
	if err := h.registry.Approve(ctx.Request.Context(), caller, key.Collection, key.TokenID, to); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"collection": key.Collection.Hex(), "token_id": key.TokenID.String(), "approved": to.Hex()})
}

// handleToken handles GET /dev/collections/:collection/tokens/:token_id.
func (h *devHandler) handleToken(ctx *gin.Context) {
	key, ok := bindAssetKey(ctx)
	if !ok {
		return
	}
	tok, err := h.registry.Token(ctx.Request.Context(), key.Collection, key.TokenID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"collection": key.Collection.Hex(),
		"token_id":   key.TokenID.String(),
		"owner":      tok.Owner.Hex(),
		"approved":   tok.Approved.Hex(),
		"uri":        tok.URI,
	})
}

// handleDeposit handles POST /dev/accounts/:account/deposit.
func (h *devHandler) handleDeposit(ctx *gin.Context) {
	account, ok := bindAddress(ctx, ctx.Param("account"))
	if !ok {
		return
	}
	var req struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	amount, ok := bindAmount(ctx, req.Amount)
	if !ok {
		return
	}
	if err := h.ledger.Deposit(ctx.Request.Context(), account, amount); err != nil {
		writeError(ctx, err)
		return
	}
	balance := h.ledger.BalanceOf(ctx.Request.Context(), account)
	ctx.JSON(http.StatusOK, gin.H{"account": account.Hex(), "balance": balance.String()})
}

// handleBalance handles GET /dev/accounts/:account/balance.
func (h *devHandler) handleBalance(ctx *gin.Context) {
	account, ok := bindAddress(ctx, ctx.Param("account"))
	if !ok {
		return
	}
	balance := h.ledger.BalanceOf(ctx.Request.Context(), account)
	ctx.JSON(http.StatusOK, gin.H{
		"account":     account.Hex(),
		"balance":     balance.String(),
		"balance_eth": units.FromWei(balance),
	})
}
