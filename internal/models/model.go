package models

import "time"

// LotStatus is the display label a lot carries for its auction outcome
type LotStatus string

const (
	LotPending LotStatus = "pending"
	LotActive  LotStatus = "active"
	LotSold    LotStatus = "sold"
	LotUnsold  LotStatus = "unsold"
)

// SessionStatus is the lifecycle state of an auction session
type SessionStatus string

const (
	StatusPending              SessionStatus = "pending"
	StatusActive               SessionStatus = "active"
	StatusSettling             SessionStatus = "settling"
	StatusSold                 SessionStatus = "settled-sold"
	StatusUnsold               SessionStatus = "settled-unsold"
	StatusSettlementIncomplete SessionStatus = "settlement-incomplete"
	StatusCancelled            SessionStatus = "cancelled"
)

// IsTerminal reports whether the session can no longer change outcome.
// settlement-incomplete is not terminal: its writes can still be retried.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case StatusSold, StatusUnsold, StatusCancelled:
		return true
	}
	return false
}

// Lot represents the item put up for auction
type Lot struct {
	LotID         string    `json:"lot_id" yaml:"lot_id"`
	Name          string    `json:"name" yaml:"name"`
	Role          string    `json:"role,omitempty" yaml:"role,omitempty"`
	BasePrice     int64     `json:"base_price" yaml:"base_price"`
	IsSold        bool      `json:"is_sold" yaml:"-"`
	OwnerID       string    `json:"owner_id,omitempty" yaml:"-"`
	SoldPrice     int64     `json:"sold_price,omitempty" yaml:"-"`
	AuctionStatus LotStatus `json:"auction_status" yaml:"-"`
}

// Organization represents a bidder organization with a budget and roster
type Organization struct {
	OrganizationID  string   `json:"organization_id" yaml:"organization_id"`
	Name            string   `json:"name" yaml:"name"`
	CaptainID       string   `json:"captain_id,omitempty" yaml:"captain_id,omitempty"`
	TotalBudget     int64    `json:"total_budget" yaml:"total_budget"`
	RemainingBudget int64    `json:"remaining_budget" yaml:"-"`
	Roster          []string `json:"roster" yaml:"-"`
}

// HasLot reports whether the lot is already on the organization's roster
func (o Organization) HasLot(lotID string) bool {
	for _, id := range o.Roster {
		if id == lotID {
			return true
		}
	}
	return false
}

// BidEntry is one accepted bid in a session's bid log
type BidEntry struct {
	BidderID   string    `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// SettlementResult is the fixed outcome of a settled session
type SettlementResult struct {
	FinalPrice int64  `json:"final_price"`
	WinnerID   string `json:"winner_id,omitempty"`
	WinnerName string `json:"winner_name,omitempty"`
}

// Sale is the set of registry writes applied when a lot is sold
type Sale struct {
	LotID          string `json:"lot_id"`
	OrganizationID string `json:"organization_id"`
	Price          int64  `json:"price"`
}

// SessionSnapshot is a point-in-time copy of an auction session.
// Version increases with every mutation so observers can drop stale copies.
type SessionSnapshot struct {
	SessionID         string            `json:"session_id"`
	LotID             string            `json:"lot_id"`
	LotName           string            `json:"lot_name"`
	BasePrice         int64             `json:"base_price"`
	HighestBid        int64             `json:"highest_bid"`
	HighestBidderID   string            `json:"highest_bidder_id,omitempty"`
	HighestBidderName string            `json:"highest_bidder_name,omitempty"`
	Bids              []BidEntry        `json:"bids"`
	Status            SessionStatus     `json:"status"`
	Duration          int               `json:"duration"`
	Remaining         int               `json:"remaining"`
	Version           uint64            `json:"version"`
	StartedAt         time.Time         `json:"started_at"`
	EndedAt           *time.Time        `json:"ended_at,omitempty"`
	Result            *SettlementResult `json:"result,omitempty"`
	SettlementError   string            `json:"settlement_error,omitempty"`
}

// TimerPayload is broadcast on every countdown tick and late-bid extension
type TimerPayload struct {
	SessionID string `json:"session_id"`
	LotID     string `json:"lot_id"`
	Remaining int    `json:"remaining"`
	Version   uint64 `json:"version"`
}

// SalePayload is broadcast when a lot is sold
type SalePayload struct {
	SessionID  string `json:"session_id"`
	LotID      string `json:"lot_id"`
	LotName    string `json:"lot_name"`
	WinnerID   string `json:"winner_id"`
	WinnerName string `json:"winner_name"`
	Price      int64  `json:"price"`
}
