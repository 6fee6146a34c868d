package auction

import (
	"context"
	"fmt"
	"time"

	"lot-auction/internal/auctionerrors"
	"lot-auction/internal/models"
	"lot-auction/internal/repository"
	"lot-auction/utils"

	"code.cloudfoundry.org/clock"
)

const settlementWriteTimeout = 10 * time.Second

// Coordinator is the only component allowed to move a session out of active.
// Whichever of the timer and a manual stop claims the session first applies
// the side effects; every other caller waits for and returns that outcome.
type Coordinator struct {
	registry  repository.LotRegistry
	publisher Publisher
	clock     clock.Clock
	rules     Rules
	retire    func(*Session)
}

// NewCoordinator creates a settlement coordinator. retire is called once a
// session has settled and its terminal events are out.
func NewCoordinator(registry repository.LotRegistry, publisher Publisher, clk clock.Clock, rules Rules, retire func(*Session)) *Coordinator {
	if retire == nil {
		retire = func(*Session) {}
	}
	return &Coordinator{
		registry:  registry,
		publisher: publisher,
		clock:     clk,
		rules:     rules,
		retire:    retire,
	}
}

// Settle ends the session exactly once. It is safe to call concurrently and
// repeatedly; late callers get the same snapshot and error as the winner.
func (c *Coordinator) Settle(ctx context.Context, s *Session) (models.SessionSnapshot, error) {
	if s.claimSettlement() {
		return c.complete(ctx, s)
	}
	return c.await(ctx, s)
}

// Retry re-runs the settlement writes of a session left in settlement-incomplete
func (c *Coordinator) Retry(ctx context.Context, s *Session) (models.SessionSnapshot, error) {
	if s.reclaimSettlement() {
		return c.complete(ctx, s)
	}
	if s.Status() == models.StatusSettling {
		return c.await(ctx, s)
	}
	snap := s.Snapshot()
	return snap, fmt.Errorf("service: %w - session %s is %s", auctionerrors.ErrNotSettlementPending, s.ID(), snap.Status)
}

// expire is the timer path: the tick already claimed the session
func (c *Coordinator) expire(ctx context.Context, s *Session) {
	if _, err := c.complete(ctx, s); err != nil {
		utils.Warn("settlement: timer expiry did not settle cleanly", map[string]any{
			"session_id": s.ID(),
			"error":      err.Error(),
		})
	}
}

func (c *Coordinator) await(ctx context.Context, s *Session) (models.SessionSnapshot, error) {
	select {
	case <-s.settled():
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
	return s.outcome()
}

// complete applies the side effects of a claimed session. Only the claimant
// calls it.
func (c *Coordinator) complete(ctx context.Context, s *Session) (models.SessionSnapshot, error) {
	claimed := s.Snapshot()
	endedAt := c.clock.Now().UTC()

	status := models.StatusUnsold
	result := models.SettlementResult{}
	if claimed.HighestBidderID != "" {
		status = models.StatusSold
		result = models.SettlementResult{
			FinalPrice: claimed.HighestBid,
			WinnerID:   claimed.HighestBidderID,
			WinnerName: claimed.HighestBidderName,
		}
	}
	terminal := s.preview(status, result, endedAt)

	// the caller going away must not abandon a half-written settlement
	writeCtx := context.WithoutCancel(ctx)
	err := c.withRetry(writeCtx, func(ctx context.Context) error {
		if status == models.StatusSold {
			sale := models.Sale{LotID: claimed.LotID, OrganizationID: result.WinnerID, Price: result.FinalPrice}
			if err := c.registry.ApplySale(ctx, sale); err != nil {
				return err
			}
		} else if err := c.registry.SetLotStatus(ctx, claimed.LotID, models.LotUnsold); err != nil {
			return err
		}
		return c.registry.RecordAuction(ctx, terminal)
	})
	if err != nil {
		snap := s.fail(err)
		utils.Error("settlement: writes failed, session left in settlement-incomplete", map[string]any{
			"severity":   "critical",
			"session_id": snap.SessionID,
			"lot_id":     snap.LotID,
			"winner_id":  result.WinnerID,
			"price":      result.FinalPrice,
			"error":      err.Error(),
		})
		c.publisher.Publish(EventSettlementIncomplete, snap)
		return snap, fmt.Errorf("service: %w - session %s: %w", auctionerrors.ErrSettlementIncomplete, snap.SessionID, err)
	}

	final := s.finish(status, result, endedAt)
	if status == models.StatusSold {
		c.publisher.Publish(EventLotSold, salePayload(final))
	}
	c.publisher.Publish(EventAuctionEnded, final)
	c.retire(s)

	utils.Info("settlement: auction settled", map[string]any{
		"session_id": final.SessionID,
		"lot_id":     final.LotID,
		"status":     final.Status,
		"winner_id":  result.WinnerID,
		"price":      result.FinalPrice,
	})
	return final, nil
}

func (c *Coordinator) withRetry(ctx context.Context, write func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= c.rules.SettlementRetries; attempt++ {
		if attempt > 0 && c.rules.RetryBackoff > 0 {
			c.clock.Sleep(c.rules.RetryBackoff)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, settlementWriteTimeout)
		err = write(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		utils.Warn("settlement: write attempt failed", map[string]any{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	return err
}
