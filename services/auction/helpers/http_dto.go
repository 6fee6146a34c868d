package helpers

// Request/Response DTOs
type StartAuctionRequest struct {
	LotID    string `json:"lot_id" binding:"required"`
	Duration int    `json:"duration" binding:"gte=0"`
}

type PlaceBidRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	BidderID string `json:"bidder_id"` // required for admins, captains bid for their own organization
}

type ResetResponse struct {
	Reset bool `json:"reset"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Subscribers int    `json:"subscribers"`
}
