package server

import (
	"net/http"

	"lot-auction/internal/auth"
	"lot-auction/services/auction/handler"
	"lot-auction/services/auction/helpers"
	"lot-auction/utils"

	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators the HTTP layer is built from
type Dependencies struct {
	Service          handler.AuctionServiceInterface
	Events           handler.EventSource
	Resolver         auth.Resolver
	StoreName        string
	SubscriberBuffer int
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	auctionHandler := handler.NewAuctionHandler(deps.Service, deps.Events, deps.SubscriberBuffer)

	router.GET("/health", healthHandler(deps))

	authenticated := router.Group("", IdentityMiddleware(deps.Resolver))

	auctions := authenticated.Group("/auctions")
	{
		auctions.POST("/start", RequireRole(auth.RoleAdmin), auctionHandler.StartAuctionHandler)
		auctions.POST("/reset", RequireRole(auth.RoleAdmin), auctionHandler.ResetHandler)
		auctions.GET("/current", auctionHandler.CurrentAuctionHandler)
		auctions.GET("/history", auctionHandler.HistoryHandler)
		auctions.GET("/events", auctionHandler.EventsHandler)
		auctions.GET("/:session_id", auctionHandler.GetSessionHandler)
		// rejected bids: 409 when too low, 400 for any other bid rule
		auctions.POST("/:session_id/bid", RequireRole(auth.RoleCaptain, auth.RoleAdmin), auctionHandler.PlaceBidHandler)
		auctions.POST("/:session_id/stop", RequireRole(auth.RoleAdmin), auctionHandler.StopAuctionHandler)
		auctions.POST("/:session_id/settle", RequireRole(auth.RoleAdmin), auctionHandler.RetrySettlementHandler)
	}

	lots := authenticated.Group("/lots")
	{
		lots.GET("/:lot_id", auctionHandler.GetLotHandler)
	}

	organizations := authenticated.Group("/organizations")
	{
		organizations.GET("/:organization_id", auctionHandler.GetOrganizationHandler)
	}

	return router
}

func healthHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := helpers.HealthResponse{Status: "ok", Store: deps.StoreName}
		if deps.Events != nil {
			resp.Subscribers = deps.Events.SubscriberCount()
		}
		utils.JSONResponse(c, http.StatusOK, resp, "service healthy")
	}
}
