package api

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nft_marketplace/internal/bank"
	"nft_marketplace/internal/events"
	"nft_marketplace/internal/journal"
	"nft_marketplace/internal/marketplace"
	"nft_marketplace/internal/nft"
	"nft_marketplace/internal/units"
)

// AccountHeader carries the caller's account address.
const AccountHeader = "X-Account"

// marketplaceHandler holds the marketplace service and implements HTTP handlers for its operations.
type marketplaceHandler struct {
	service *marketplace.Service
	recent  *events.Recorder
	logger  *zap.Logger
}

// NewMarketplaceHandler creates a new marketplace handler.
func NewMarketplaceHandler(service *marketplace.Service, recent *events.Recorder, logger *zap.Logger) *marketplaceHandler {
	return &marketplaceHandler{
		service: service,
		recent:  recent,
		logger:  logger,
	}
}

type listingResponse struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Price      string `json:"price"`
	PriceEth   string `json:"price_eth"`
	Seller     string `json:"seller"`
}

func newListingResponse(key marketplace.AssetKey, l marketplace.Listing) listingResponse {
	return listingResponse{
		Collection: key.Collection.Hex(),
		TokenID:    key.TokenID.String(),
		Price:      l.Price.String(),
		PriceEth:   units.FromWei(l.Price),
		Seller:     l.Seller.Hex(),
	}
}

// handleInfo handles GET /info.
func (h *marketplaceHandler) handleInfo(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"marketplace": h.service.Address().Hex()})
}

// handleListItem handles POST /listings.
func (h *marketplaceHandler) handleListItem(ctx *gin.Context) {
	caller, ok := callerAccount(ctx)
	if !ok {
		return
	}
	var req struct {
		Collection string `json:"collection" binding:"required"`
		TokenID    string `json:"token_id" binding:"required"`
		Price      string `json:"price" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	key, err := marketplace.ParseAssetKey(req.Collection, req.TokenID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	price, ok := bindAmount(ctx, req.Price)
	if !ok {
		return
	}

	if err := h.service.ListItem(ctx.Request.Context(), caller, key, price); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newListingResponse(key, marketplace.Listing{Price: price, Seller: caller}))
}

// handleGetListing handles GET /listings/:collection/:token_id. Unlisted keys return the zero listing.
func (h *marketplaceHandler) handleGetListing(ctx *gin.Context) {
	key, ok := bindAssetKey(ctx)
	if !ok {
		return
	}
	listing, err := h.service.GetListing(ctx.Request.Context(), key)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newListingResponse(key, listing))
}

// handleListings handles GET /listings.
func (h *marketplaceHandler) handleListings(ctx *gin.Context) {
	items, err := h.service.Listings(ctx.Request.Context())
	if err != nil {
		h.logger.Error("failed to read listings", zap.Error(err))
		writeError(ctx, err)
		return
	}
	results := make([]listingResponse, 0, len(items))
	for _, item := range items {
		results = append(results, newListingResponse(item.Key, item.Listing))
	}
	ctx.JSON(http.StatusOK, gin.H{"results": results, "quantity": len(results)})
}

// handleUpdateListing handles PATCH /listings/:collection/:token_id.
func (h *marketplaceHandler) handleUpdateListing(ctx *gin.Context) {
	caller, ok := callerAccount(ctx)
	if !ok {
		return
	}
	key, ok := bindAssetKey(ctx)
	if !ok {
		return
	}
	var req struct {
		Price string `json:"price" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	price, ok := bindAmount(ctx, req.Price)
	if !ok {
		return
	}

	if err := h.service.UpdateListing(ctx.Request.Context(), caller, key, price); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newListingResponse(key, marketplace.Listing{Price: price, Seller: caller}))
}

// handleCancelListing handles DELETE /listings/:collection/:token_id.
func (h *marketplaceHandler) handleCancelListing(ctx *gin.Context) {
	caller, ok := callerAccount(ctx)
	if !ok {
		return
	}
	key, ok := bindAssetKey(ctx)
	if !ok {
		return
	}
	if err := h.service.CancelListing(ctx.Request.Context(), caller, key); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// handleBuyItem handles POST /listings/:collection/:token_id/buy.
func (h *marketplaceHandler) handleBuyItem(ctx *gin.Context) {
	caller, ok := callerAccount(ctx)
	if !ok {
		return
	}
	key, ok := bindAssetKey(ctx)
	if !ok {
		return
	}
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	value, ok := bindAmount(ctx, req.Value)
	if !ok {
		return
	}

	if err := h.service.Purchase(ctx.Request.Context(), caller, key, value); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"collection": key.Collection.Hex(),
		"token_id":   key.TokenID.String(),
		"buyer":      caller.Hex(),
		"paid":       value.String(),
	})
}

// handleGetProceeds handles GET /proceeds/:account.
func (h *marketplaceHandler) handleGetProceeds(ctx *gin.Context) {
	account, ok := bindAddress(ctx, ctx.Param("account"))
	if !ok {
		return
	}
	amount, err := h.service.GetProceeds(ctx.Request.Context(), account)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"account":      account.Hex(),
		"proceeds":     amount.String(),
		"proceeds_eth": units.FromWei(amount),
	})
}

// handleWithdrawProceeds handles POST /proceeds/withdraw.
func (h *marketplaceHandler) handleWithdrawProceeds(ctx *gin.Context) {
	caller, ok := callerAccount(ctx)
	if !ok {
		return
	}
	amount, err := h.service.WithdrawProceeds(ctx.Request.Context(), caller)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": caller.Hex(), "withdrawn": amount.String()})
}

// handleRecentEvents handles GET /events?limit=n.
func (h *marketplaceHandler) handleRecentEvents(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	ctx.JSON(http.StatusOK, gin.H{"results": h.recent.Recent(limit)})
}

func callerAccount(ctx *gin.Context) (common.Address, bool) {
	raw := ctx.GetHeader(AccountHeader)
	if raw == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": AccountHeader + " header is required"})
		return common.Address{}, false
	}
	return bindAddress(ctx, raw)
}

func bindAddress(ctx *gin.Context, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid address " + strconv.Quote(raw)})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func bindAssetKey(ctx *gin.Context) (marketplace.AssetKey, bool) {
	key, err := marketplace.ParseAssetKey(ctx.Param("collection"), ctx.Param("token_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return marketplace.AssetKey{}, false
	}
	return key, true
}

func bindAmount(ctx *gin.Context, raw string) (*big.Int, bool) {
	v, err := units.ParseWei(raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "InvalidAmount"})
		return nil, false
	}
	return v, true
}

// writeError maps service errors onto HTTP responses carrying the error kind and its payload.
func writeError(ctx *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if code := marketplace.ErrorCode(err); code != "" {
		body["code"] = code
	}

	var (
		already  *marketplace.AlreadyListedError
		missing  *marketplace.NotListedError
		notOwner *marketplace.NotOwnerError
		notMet   *marketplace.PriceNotMetError
		none     *marketplace.NoProceedsError
		failed   *marketplace.TransferFailedError
	)
	switch {
	case errors.As(err, &failed):
		body["account"] = failed.Account.Hex()
		body["amount"] = failed.Amount.String()
	case errors.As(err, &notMet):
		body["collection"] = notMet.Key.Collection.Hex()
		body["token_id"] = notMet.Key.TokenID.String()
		body["price"] = notMet.Price.String()
	case errors.As(err, &already):
		body["collection"] = already.Key.Collection.Hex()
		body["token_id"] = already.Key.TokenID.String()
	case errors.As(err, &missing):
		body["collection"] = missing.Key.Collection.Hex()
		body["token_id"] = missing.Key.TokenID.String()
	case errors.As(err, &notOwner):
		body["account"] = notOwner.Caller.Hex()
	case errors.As(err, &none):
		body["account"] = none.Account.Hex()
	}

	ctx.JSON(statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, journal.ErrRevertFailed):
		return http.StatusInternalServerError
	case errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, marketplace.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, marketplace.ErrPriceMustBeAboveZero),
		errors.Is(err, marketplace.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, marketplace.ErrNotOwner),
		errors.Is(err, marketplace.ErrNotApprovedForMarketplace):
		return http.StatusForbidden
	case errors.Is(err, marketplace.ErrNotListed),
		errors.Is(err, nft.ErrNonexistentToken),
		errors.Is(err, nft.ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, marketplace.ErrPriceNotMet):
		return http.StatusPaymentRequired
	case errors.Is(err, marketplace.ErrAlreadyListed),
		errors.Is(err, marketplace.ErrNoProceeds),
		errors.Is(err, marketplace.ErrReentrantCall),
		errors.Is(err, nft.ErrNotAuthorized),
		errors.Is(err, nft.ErrIncorrectOwner):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
