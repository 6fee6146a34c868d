package auction

import (
	"context"
	"fmt"

	"lot-auction/internal/auctionerrors"
	"lot-auction/internal/models"
	"lot-auction/internal/repository"

	"code.cloudfoundry.org/clock"
)

// BidProcessor validates and applies bids against a session
type BidProcessor struct {
	registry  repository.LotRegistry
	publisher Publisher
	clock     clock.Clock
	rules     Rules
}

// NewBidProcessor creates a new BidProcessor instance
func NewBidProcessor(registry repository.LotRegistry, publisher Publisher, clk clock.Clock, rules Rules) *BidProcessor {
	return &BidProcessor{
		registry:  registry,
		publisher: publisher,
		clock:     clk,
		rules:     rules,
	}
}

// PlaceBid validates and records an organization's bid on the session.
// The bidder is looked up before the session lock is taken; its budget is
// then compared under the lock. Budgets only move through settlement of this
// session or a reset, and both take the session out of active first.
func (p *BidProcessor) PlaceBid(ctx context.Context, s *Session, bidderID string, amount int64) (models.SessionSnapshot, error) {
	if bidderID == "" {
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - missing bidder ID", auctionerrors.ErrInvalidBid)
	}
	if amount <= 0 {
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - non-positive bid amount", auctionerrors.ErrInvalidBid)
	}
	if status := s.Status(); status != models.StatusActive {
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - session %s is %s", auctionerrors.ErrAuctionNotActive, s.ID(), status)
	}

	bidder, err := p.registry.GetOrganization(ctx, bidderID)
	if err != nil {
		return models.SessionSnapshot{}, fmt.Errorf("service: failed to load bidder %s: %w", bidderID, err)
	}

	outcome, err := s.applyBid(bidder, amount, p.rules, p.clock.Now().UTC())
	if err != nil {
		return models.SessionSnapshot{}, fmt.Errorf("service: %w", err)
	}

	p.publisher.Publish(EventBidPlaced, outcome.snapshot)
	if outcome.extended {
		p.publisher.Publish(EventTimerReset, timerPayload(outcome.snapshot))
	}
	return outcome.snapshot, nil
}
