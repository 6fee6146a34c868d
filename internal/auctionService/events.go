package auction

import "lot-auction/internal/models"

// Event names published on the auction channel
const (
	EventAuctionStarted       = "auction-started"
	EventBidPlaced            = "bid-placed"
	EventTimerTick            = "timer-tick"
	EventTimerReset           = "timer-reset"
	EventLotSold              = "lot-sold"
	EventAuctionEnded         = "auction-ended"
	EventSettlementIncomplete = "settlement-incomplete"
	EventAuctionReset         = "auction-reset"
)

// Publisher is the broadcast side of the engine. Implementations must not block.
type Publisher interface {
	Publish(name string, payload any)
}

func timerPayload(s models.SessionSnapshot) models.TimerPayload {
	return models.TimerPayload{
		SessionID: s.SessionID,
		LotID:     s.LotID,
		Remaining: s.Remaining,
		Version:   s.Version,
	}
}

func salePayload(s models.SessionSnapshot) models.SalePayload {
	return models.SalePayload{
		SessionID:  s.SessionID,
		LotID:      s.LotID,
		LotName:    s.LotName,
		WinnerID:   s.Result.WinnerID,
		WinnerName: s.Result.WinnerName,
		Price:      s.Result.FinalPrice,
	}
}
