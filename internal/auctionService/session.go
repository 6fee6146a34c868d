package auction

import (
	"fmt"
	"sync"
	"time"

	"lot-auction/internal/auctionerrors"
	"lot-auction/internal/models"
)

// Session is the authoritative in-memory state of one running auction.
// Every read and write goes through mu; bids, ticks, settlement claims and
// cancellation are therefore applied in one total order.
type Session struct {
	mu sync.Mutex

	id        string
	lotID     string
	lotName   string
	basePrice int64

	highestBid        int64
	highestBidderID   string
	highestBidderName string
	bids              []models.BidEntry

	status    models.SessionStatus
	duration  int
	remaining int
	ticks     int
	version   uint64

	startedAt time.Time
	endedAt   *time.Time
	result    *models.SettlementResult
	settleErr error

	// done is closed when the session leaves active or settling. A retried
	// settlement installs a fresh channel.
	done chan struct{}
}

func newSession(id string, lot models.Lot, duration int, now time.Time) *Session {
	return &Session{
		id:         id,
		lotID:      lot.LotID,
		lotName:    lot.Name,
		basePrice:  lot.BasePrice,
		highestBid: lot.BasePrice,
		bids:       []models.BidEntry{},
		status:     models.StatusPending,
		duration:   duration,
		remaining:  duration,
		startedAt:  now,
		done:       make(chan struct{}),
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Status returns the current lifecycle status
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.SessionSnapshot {
	snap := models.SessionSnapshot{
		SessionID:         s.id,
		LotID:             s.lotID,
		LotName:           s.lotName,
		BasePrice:         s.basePrice,
		HighestBid:        s.highestBid,
		HighestBidderID:   s.highestBidderID,
		HighestBidderName: s.highestBidderName,
		Bids:              append([]models.BidEntry{}, s.bids...),
		Status:            s.status,
		Duration:          s.duration,
		Remaining:         s.remaining,
		Version:           s.version,
		StartedAt:         s.startedAt,
	}
	if s.endedAt != nil {
		t := *s.endedAt
		snap.EndedAt = &t
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if s.settleErr != nil {
		snap.SettlementError = s.settleErr.Error()
	}
	return snap
}

func (s *Session) activate() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == models.StatusPending {
		s.status = models.StatusActive
		s.version++
	}
	return s.snapshotLocked()
}

type bidOutcome struct {
	snapshot models.SessionSnapshot
	extended bool
}

// applyBid checks and applies one bid. The checks run in a fixed order
// against the state held under the lock, so two bids can never both be
// accepted on top of the same previous highest bid.
func (s *Session) applyBid(bidder models.Organization, amount int64, rules Rules, now time.Time) (bidOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.StatusActive {
		return bidOutcome{}, fmt.Errorf("%w - session %s is %s", auctionerrors.ErrAuctionNotActive, s.id, s.status)
	}
	// amount and highestBid are both non-negative, so the difference cannot overflow
	if amount-s.highestBid < rules.MinIncrement {
		return bidOutcome{}, fmt.Errorf("%w - bid must beat %d by at least %d", auctionerrors.ErrBidTooLow, s.highestBid, rules.MinIncrement)
	}
	if amount > bidder.RemainingBudget {
		return bidOutcome{}, fmt.Errorf("%w - remaining budget is %d", auctionerrors.ErrInsufficientBudget, bidder.RemainingBudget)
	}
	if bidder.OrganizationID == s.highestBidderID {
		return bidOutcome{}, fmt.Errorf("%w - %s already holds the highest bid", auctionerrors.ErrAlreadyHighestBidder, bidder.OrganizationID)
	}

	s.highestBid = amount
	s.highestBidderID = bidder.OrganizationID
	s.highestBidderName = bidder.Name
	s.bids = append(s.bids, models.BidEntry{
		BidderID:   bidder.OrganizationID,
		BidderName: bidder.Name,
		Amount:     amount,
		Timestamp:  now,
	})

	extended := false
	if s.remaining <= rules.ExtensionThreshold {
		s.remaining = rules.ExtensionThreshold
		extended = true
	}
	s.version++

	return bidOutcome{snapshot: s.snapshotLocked(), extended: extended}, nil
}

type tickOutcome struct {
	snapshot models.SessionSnapshot
	ticks    int
	expired  bool // this tick claimed settlement
	stale    bool // session no longer active, the countdown must stop
}

// tick advances the countdown by one unit. The tick that brings remaining
// time to zero also claims settlement, so no bid can land between expiry and
// the settlement transition.
func (s *Session) tick() tickOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.StatusActive {
		return tickOutcome{stale: true}
	}
	if s.remaining > 0 {
		s.remaining--
	}
	s.ticks++
	s.version++

	expired := false
	if s.remaining == 0 {
		s.status = models.StatusSettling
		expired = true
	}
	return tickOutcome{snapshot: s.snapshotLocked(), ticks: s.ticks, expired: expired}
}

// claimSettlement flips active to settling. Only the caller that gets true
// may apply settlement side effects.
func (s *Session) claimSettlement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusActive {
		return false
	}
	s.status = models.StatusSettling
	s.version++
	return true
}

// reclaimSettlement flips settlement-incomplete back to settling for a retry
func (s *Session) reclaimSettlement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusSettlementIncomplete {
		return false
	}
	s.status = models.StatusSettling
	s.settleErr = nil
	s.version++
	s.done = make(chan struct{})
	return true
}

// preview returns the snapshot finish would produce, without applying it
func (s *Session) preview(status models.SessionStatus, result models.SettlementResult, endedAt time.Time) models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked()
	snap.Status = status
	snap.Result = &result
	snap.EndedAt = &endedAt
	snap.SettlementError = ""
	snap.Version++
	return snap
}

// finish freezes a settling session in its terminal state
func (s *Session) finish(status models.SessionStatus, result models.SettlementResult, endedAt time.Time) models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusSettling {
		return s.snapshotLocked()
	}
	s.status = status
	s.result = &result
	s.endedAt = &endedAt
	s.settleErr = nil
	s.version++
	close(s.done)
	return s.snapshotLocked()
}

// fail parks a settling session in settlement-incomplete
func (s *Session) fail(err error) models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusSettling {
		return s.snapshotLocked()
	}
	s.status = models.StatusSettlementIncomplete
	s.settleErr = err
	s.version++
	close(s.done)
	return s.snapshotLocked()
}

// cancel discards an active session without settlement
func (s *Session) cancel(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusActive && s.status != models.StatusPending {
		return false
	}
	s.status = models.StatusCancelled
	s.endedAt = &now
	s.version++
	close(s.done)
	return true
}

// settled returns the channel closed when the current settlement attempt ends
func (s *Session) settled() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) outcome() (models.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked()
	switch s.status {
	case models.StatusSettlementIncomplete:
		return snap, fmt.Errorf("%w - session %s: %v", auctionerrors.ErrSettlementIncomplete, s.id, s.settleErr)
	case models.StatusCancelled:
		return snap, fmt.Errorf("%w - session %s was cancelled", auctionerrors.ErrInvalidState, s.id)
	}
	return snap, nil
}
