package handler

import (
	"context"
	"fmt"
	"net/http"

	"lot-auction/internal/auctionerrors"
	"lot-auction/internal/auth"
	"lot-auction/internal/broadcast"
	model "lot-auction/internal/models"
	"lot-auction/services/auction/helpers"
	"lot-auction/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	StartAuction(ctx context.Context, lotID string, duration int) (model.SessionSnapshot, error)
	PlaceBid(ctx context.Context, sessionID, bidderID string, amount int64) (model.SessionSnapshot, error)
	StopAuction(ctx context.Context, sessionID string) (model.SessionSnapshot, error)
	RetrySettlement(ctx context.Context, sessionID string) (model.SessionSnapshot, error)
	Current() *model.SessionSnapshot
	Session(ctx context.Context, sessionID string) (model.SessionSnapshot, error)
	History(ctx context.Context) ([]model.SessionSnapshot, error)
	ResetAll(ctx context.Context) error
	Lot(ctx context.Context, lotID string) (model.Lot, error)
	Organization(ctx context.Context, orgID string) (model.Organization, error)
}

// EventSource is the auction channel observers join
type EventSource interface {
	Subscribe(buffer int) (*broadcast.Subscription, error)
	SubscriberCount() int
}

type AuctionHandler struct {
	service AuctionServiceInterface
	events  EventSource
	buffer  int
}

func NewAuctionHandler(service AuctionServiceInterface, events EventSource, subscriberBuffer int) *AuctionHandler {
	return &AuctionHandler{service: service, events: events, buffer: subscriberBuffer}
}

// StartAuctionHandler handles POST /auctions/start
func (h *AuctionHandler) StartAuctionHandler(c *gin.Context) {
	var req helpers.StartAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "StartAuctionHandler", err)
		return
	}

	snap, err := h.service.StartAuction(c.Request.Context(), req.LotID, req.Duration)
	if err != nil {
		helpers.RespondError(c, "StartAuctionHandler", err, map[string]any{"lot_id": req.LotID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, snap, "auction started successfully")
	helpers.LogSuccess("StartAuctionHandler", "auction started successfully", map[string]any{
		"session_id": snap.SessionID,
		"lot_id":     snap.LotID,
		"duration":   snap.Duration,
	})
}

// CurrentAuctionHandler handles GET /auctions/current
func (h *AuctionHandler) CurrentAuctionHandler(c *gin.Context) {
	current := h.service.Current()
	if current == nil {
		utils.JSONResponse(c, http.StatusOK, nil, "no auction in progress")
		return
	}
	utils.JSONResponse(c, http.StatusOK, current, "current auction retrieved successfully")
}

// HistoryHandler handles GET /auctions/history
func (h *AuctionHandler) HistoryHandler(c *gin.Context) {
	history, err := h.service.History(c.Request.Context())
	if err != nil {
		helpers.RespondError(c, "HistoryHandler", err, nil)
		return
	}
	if history == nil {
		history = []model.SessionSnapshot{}
	}

	utils.JSONResponse(c, http.StatusOK, history, "auction history retrieved successfully")
	helpers.LogSuccess("HistoryHandler", "auction history retrieved successfully", map[string]any{"count": len(history)})
}

// GetSessionHandler handles GET /auctions/:session_id
func (h *AuctionHandler) GetSessionHandler(c *gin.Context) {
	sessionID := c.Param("session_id")
	snap, err := h.service.Session(c.Request.Context(), sessionID)
	if err != nil {
		helpers.RespondError(c, "GetSessionHandler", err, map[string]any{"session_id": sessionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, snap, "auction retrieved successfully")
}

// PlaceBidHandler handles POST /auctions/:session_id/bid.
// Captains always bid for their own organization; admins name the bidder.
//
// A rejected bid answers 409 when it does not beat the highest bid by the
// minimum increment, since it lost a race clients should refresh for. Every
// other rejection of the bid itself (budget, highest bidder, inactive
// session, bad amount) answers 400. Clients treat both as a rejected bid.
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bidderID, err := resolveBidder(c.Request.Context(), req.BidderID)
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{"session_id": sessionID, "bidder_id": req.BidderID})
		return
	}

	snap, err := h.service.PlaceBid(c.Request.Context(), sessionID, bidderID, req.Amount)
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"session_id": sessionID,
			"bidder_id":  bidderID,
			"amount":     req.Amount,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, snap, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"session_id": sessionID,
		"bidder_id":  bidderID,
		"amount":     req.Amount,
		"remaining":  snap.Remaining,
	})
}

func resolveBidder(ctx context.Context, requested string) (string, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return "", fmt.Errorf("%w: no identity on request", auth.ErrUnauthenticated)
	}

	switch id.Role {
	case auth.RoleCaptain:
		if id.OrganizationID == "" {
			return "", fmt.Errorf("%w: captain %s is not assigned to any organization", auth.ErrForbidden, id.UserID)
		}
		if requested != "" && requested != id.OrganizationID {
			return "", fmt.Errorf("%w: captain %s cannot bid for %s", auth.ErrForbidden, id.UserID, requested)
		}
		return id.OrganizationID, nil
	case auth.RoleAdmin:
		if requested == "" {
			return "", fmt.Errorf("%w - bidder_id is required", auctionerrors.ErrInvalidBid)
		}
		return requested, nil
	default:
		return "", fmt.Errorf("%w: role %s cannot bid", auth.ErrForbidden, id.Role)
	}
}

// StopAuctionHandler handles POST /auctions/:session_id/stop
func (h *AuctionHandler) StopAuctionHandler(c *gin.Context) {
	sessionID := c.Param("session_id")
	snap, err := h.service.StopAuction(c.Request.Context(), sessionID)
	if err != nil {
		helpers.RespondError(c, "StopAuctionHandler", err, map[string]any{"session_id": sessionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snap, "auction stopped successfully")
	helpers.LogSuccess("StopAuctionHandler", "auction stopped successfully", map[string]any{
		"session_id": sessionID,
		"status":     snap.Status,
	})
}

// RetrySettlementHandler handles POST /auctions/:session_id/settle
func (h *AuctionHandler) RetrySettlementHandler(c *gin.Context) {
	sessionID := c.Param("session_id")
	snap, err := h.service.RetrySettlement(c.Request.Context(), sessionID)
	if err != nil {
		helpers.RespondError(c, "RetrySettlementHandler", err, map[string]any{"session_id": sessionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snap, "settlement completed successfully")
	helpers.LogSuccess("RetrySettlementHandler", "settlement completed successfully", map[string]any{
		"session_id": sessionID,
		"status":     snap.Status,
	})
}

// ResetHandler handles POST /auctions/reset
func (h *AuctionHandler) ResetHandler(c *gin.Context) {
	if err := h.service.ResetAll(c.Request.Context()); err != nil {
		helpers.RespondError(c, "ResetHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ResetResponse{Reset: true}, "auctions reset successfully")
	helpers.LogSuccess("ResetHandler", "auctions reset successfully", nil)
}

// GetLotHandler handles GET /lots/:lot_id
func (h *AuctionHandler) GetLotHandler(c *gin.Context) {
	lotID := c.Param("lot_id")
	lot, err := h.service.Lot(c.Request.Context(), lotID)
	if err != nil {
		helpers.RespondError(c, "GetLotHandler", err, map[string]any{"lot_id": lotID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, lot, "lot retrieved successfully")
}

// GetOrganizationHandler handles GET /organizations/:organization_id
func (h *AuctionHandler) GetOrganizationHandler(c *gin.Context) {
	orgID := c.Param("organization_id")
	org, err := h.service.Organization(c.Request.Context(), orgID)
	if err != nil {
		helpers.RespondError(c, "GetOrganizationHandler", err, map[string]any{"organization_id": orgID})
		return
	}
	if org.Roster == nil {
		org.Roster = []string{}
	}
	utils.JSONResponse(c, http.StatusOK, org, "organization retrieved successfully")
}

// EventsHandler handles GET /auctions/events. The observer first receives a
// snapshot of the current session, then every broadcast event until it
// disconnects. Events are dropped while the observer lags; gaps show in seq.
func (h *AuctionHandler) EventsHandler(c *gin.Context) {
	sub, err := h.events.Subscribe(h.buffer)
	if err != nil {
		helpers.RespondError(c, "EventsHandler", fmt.Errorf("failed to join auction channel: %w", err), nil)
		return
	}
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	utils.Debug("EventsHandler: observer joined", map[string]any{"subscription_id": sub.ID})
	defer func() {
		utils.Debug("EventsHandler: observer left", map[string]any{
			"subscription_id": sub.ID,
			"dropped":         sub.Dropped(),
		})
	}()

	utils.StreamEvent(c, "snapshot", gin.H{"session": h.service.Current()})

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			utils.StreamEvent(c, event.Name, event)
		}
	}
}
