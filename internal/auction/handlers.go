package auction

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stellarion/auction-api/internal/auth"
	"github.com/stellarion/auction-api/internal/types"
	"github.com/stellarion/auction-api/pkg/response"
)

// GinHandlers contains HTTP handlers for marketplace endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for marketplace endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// callerIdentity pulls the player identity out of the JWT claims set by
// the auth middleware.
func callerIdentity(c *gin.Context) (username, clan string, ok bool) {
	claims, exists := c.Get("claims")
	if !exists {
		response.Unauthorized(c, "Missing authentication claims")
		return "", "", false
	}
	username = auth.GetUsername(claims)
	if username == "" {
		response.Unauthorized(c, "Invalid username in token")
		return "", "", false
	}
	return username, auth.GetClan(claims), true
}

// CreateListingHandler handles POST requests to list an item for auction.
// Requires a valid JWT token and idempotency key in headers.
func (h *GinHandlers) CreateListingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		username, clan, ok := callerIdentity(c)
		if !ok {
			return
		}

		var req types.CreateListingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		listing, fee, err := h.service.CreateListing(username, clan, &req, idempotencyKey)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, types.CreateListingResponse{
			AuctionID:  listing.AuctionID,
			FeeCharged: fee,
			ExpiresAt:  listing.ExpiresAt,
		})
	}
}

// BidHandler handles POST requests to place a bid on a listing.
func (h *GinHandlers) BidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, clan, ok := callerIdentity(c)
		if !ok {
			return
		}

		var req types.BidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		listing, err := h.service.PlaceBid(req.AuctionID, username, clan, req.Amount)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, types.BidResponse{
			Accepted:   true,
			CurrentBid: listing.CurrentBid,
		})
	}
}

// BuyoutHandler handles POST requests to buy out a listing immediately.
func (h *GinHandlers) BuyoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, clan, ok := callerIdentity(c)
		if !ok {
			return
		}

		var req struct {
			AuctionID string `json:"auction_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		listing, err := h.service.Buyout(req.AuctionID, username, clan)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"accepted":    true,
			"final_price": listing.FinalPrice,
		})
	}
}

// CancelHandler handles POST requests to withdraw a bid-free listing.
func (h *GinHandlers) CancelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, _, ok := callerIdentity(c)
		if !ok {
			return
		}

		var req struct {
			AuctionID string `json:"auction_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if _, err := h.service.Cancel(req.AuctionID, username); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"accepted": true})
	}
}

// ListHandler handles GET requests for the filtered marketplace view.
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, clan, ok := callerIdentity(c)
		if !ok {
			return
		}

		filters := ListFilters{
			ItemType:   c.Query("item_type"),
			MinPrice:   queryInt64(c, "min_price"),
			MaxPrice:   queryInt64(c, "max_price"),
			HasBuyout:  c.Query("has_buyout") == "true",
			Seller:     c.Query("seller"),
			ViewerClan: clan,
		}
		page := queryInt(c, "page", 1)
		limit := queryInt(c, "limit", 25)

		pageResult, err := h.service.ListListings(filters, c.Query("sort_by"), page, limit)
		response.Handle(c, pageResult, err)
	}
}

// GetListingHandler handles GET requests for a single listing with its
// bid history.
func (h *GinHandlers) GetListingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, _, ok := callerIdentity(c)
		if !ok {
			return
		}

		auctionID := c.Param("auction_id")
		if auctionID == "" {
			response.BadRequest(c, "Auction ID is required")
			return
		}

		listing, err := h.service.GetListing(auctionID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		view := types.NewListingView(listing, username, true)
		response.Success(c, view)
	}
}

// MyListingsHandler handles GET requests for the caller's own listings.
func (h *GinHandlers) MyListingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, _, ok := callerIdentity(c)
		if !ok {
			return
		}

		views, err := h.service.MyListings(username)
		response.Handle(c, views, err)
	}
}

// MyBidsHandler handles GET requests for listings the caller has bid on.
func (h *GinHandlers) MyBidsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, _, ok := callerIdentity(c)
		if !ok {
			return
		}

		views, err := h.service.MyBids(username)
		response.Handle(c, views, err)
	}
}

func queryInt64(c *gin.Context, key string) int64 {
	value, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return value
}
