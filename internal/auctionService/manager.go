package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lot-auction/internal/auctionerrors"
	"lot-auction/internal/models"
	"lot-auction/internal/repository"
	"lot-auction/utils"

	"code.cloudfoundry.org/clock"
)

// Manager owns the single auction slot: at most one session holds it at a
// time, from start until it settles or is discarded by a reset.
type Manager struct {
	registry  repository.LotRegistry
	publisher Publisher
	clock     clock.Clock
	rules     Rules

	bids       *BidProcessor
	settlement *Coordinator

	mu        sync.Mutex // guards the slot; never held across registry calls
	current   *Session
	countdown *Countdown
	reserving bool
	resetting int // resets in progress; no session may start until they finish
	epoch     uint64
}

// NewManager creates a new session manager
func NewManager(registry repository.LotRegistry, publisher Publisher, clk clock.Clock, rules Rules) *Manager {
	m := &Manager{
		registry:  registry,
		publisher: publisher,
		clock:     clk,
		rules:     rules,
	}
	m.bids = NewBidProcessor(registry, publisher, clk, rules)
	m.settlement = NewCoordinator(registry, publisher, clk, rules, m.retire)
	return m
}

// StartAuction opens an auction for the lot and starts its countdown
func (m *Manager) StartAuction(ctx context.Context, lotID string, duration int) (models.SessionSnapshot, error) {
	if lotID == "" {
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - empty lot ID", auctionerrors.ErrValidation)
	}
	if duration < 0 {
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - duration %d", auctionerrors.ErrInvalidDuration, duration)
	}
	if duration == 0 {
		duration = m.rules.DefaultDuration
	}

	m.mu.Lock()
	if m.resetting > 0 {
		m.mu.Unlock()
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - a reset is in progress", auctionerrors.ErrConflict)
	}
	if m.current != nil || m.reserving {
		busy := "a start request"
		if m.current != nil {
			busy = "session " + m.current.ID()
		}
		m.mu.Unlock()
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - %s holds the auction slot", auctionerrors.ErrAuctionInProgress, busy)
	}
	m.reserving = true
	epoch := m.epoch
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		if m.epoch == epoch {
			m.reserving = false
		}
		m.mu.Unlock()
	}

	lot, err := m.registry.GetLot(ctx, lotID)
	if err != nil {
		release()
		return models.SessionSnapshot{}, fmt.Errorf("service: failed to load lot %s: %w", lotID, err)
	}
	if lot.IsSold {
		release()
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - lot %s is owned by %s", auctionerrors.ErrAlreadyOwned, lotID, lot.OwnerID)
	}
	if err := m.registry.SetLotStatus(ctx, lotID, models.LotActive); err != nil {
		release()
		return models.SessionSnapshot{}, fmt.Errorf("service: failed to mark lot %s active: %w", lotID, err)
	}

	s := newSession(utils.NewSessionID(), lot, duration, m.clock.Now().UTC())

	m.mu.Lock()
	if m.epoch != epoch {
		// a reset ran while the lot was being loaded
		m.mu.Unlock()
		if err := m.registry.SetLotStatus(ctx, lotID, models.LotPending); err != nil {
			utils.Warn("service: failed to revert lot status after reset", map[string]any{"lot_id": lotID, "error": err.Error()})
		}
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - auction was reset during start", auctionerrors.ErrConflict)
	}
	snap := s.activate()
	cd := newCountdown(s, m.clock, m.rules, m.registry, m.publisher, m.settlement.expire)
	m.current = s
	m.countdown = cd
	m.reserving = false
	cd.Start()
	m.mu.Unlock()

	m.publisher.Publish(EventAuctionStarted, snap)
	utils.Info("service: auction started", map[string]any{
		"session_id": snap.SessionID,
		"lot_id":     snap.LotID,
		"base_price": snap.BasePrice,
		"duration":   snap.Duration,
	})
	return snap, nil
}

// PlaceBid routes a bid to the session's bid processor
func (m *Manager) PlaceBid(ctx context.Context, sessionID, bidderID string, amount int64) (models.SessionSnapshot, error) {
	s, err := m.activeSession(ctx, sessionID)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	return m.bids.PlaceBid(ctx, s, bidderID, amount)
}

// StopAuction settles the session now instead of waiting for its timer
func (m *Manager) StopAuction(ctx context.Context, sessionID string) (models.SessionSnapshot, error) {
	s, err := m.activeSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrAuctionNotActive) {
			return models.SessionSnapshot{}, fmt.Errorf("service: %w - session %s is not active", auctionerrors.ErrInvalidState, sessionID)
		}
		return models.SessionSnapshot{}, err
	}
	if status := s.Status(); status != models.StatusActive {
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - session %s is %s", auctionerrors.ErrInvalidState, sessionID, status)
	}
	return m.settlement.Settle(ctx, s)
}

// RetrySettlement re-runs the settlement writes of a session left incomplete
func (m *Manager) RetrySettlement(ctx context.Context, sessionID string) (models.SessionSnapshot, error) {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s == nil || s.ID() != sessionID {
		if _, err := m.historical(ctx, sessionID); err != nil {
			return models.SessionSnapshot{}, err
		}
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - session %s already settled", auctionerrors.ErrNotSettlementPending, sessionID)
	}
	return m.settlement.Retry(ctx, s)
}

// Current returns the session holding the slot, or nil
func (m *Manager) Current() *models.SessionSnapshot {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	snap := s.Snapshot()
	return &snap
}

// Session returns the live or finished session with the given id
func (m *Manager) Session(ctx context.Context, sessionID string) (models.SessionSnapshot, error) {
	if cur := m.Current(); cur != nil && cur.SessionID == sessionID {
		return *cur, nil
	}
	return m.historical(ctx, sessionID)
}

// History returns finished auctions, most recently ended first
func (m *Manager) History(ctx context.Context) ([]models.SessionSnapshot, error) {
	auctions, err := m.registry.ListAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// Lot returns a lot as recorded in the registry
func (m *Manager) Lot(ctx context.Context, lotID string) (models.Lot, error) {
	if lotID == "" {
		return models.Lot{}, fmt.Errorf("service: %w - empty lot ID", auctionerrors.ErrValidation)
	}
	lot, err := m.registry.GetLot(ctx, lotID)
	if err != nil {
		return models.Lot{}, fmt.Errorf("service: failed to get lot %s: %w", lotID, err)
	}
	return lot, nil
}

// Organization returns a bidder organization as recorded in the registry
func (m *Manager) Organization(ctx context.Context, orgID string) (models.Organization, error) {
	if orgID == "" {
		return models.Organization{}, fmt.Errorf("service: %w - empty organization ID", auctionerrors.ErrValidation)
	}
	org, err := m.registry.GetOrganization(ctx, orgID)
	if err != nil {
		return models.Organization{}, fmt.Errorf("service: failed to get organization %s: %w", orgID, err)
	}
	return org, nil
}

// ResetAll discards any running session without settling it and reverts
// every prior settlement in the registry.
func (m *Manager) ResetAll(ctx context.Context) error {
	m.mu.Lock()
	s, cd := m.current, m.countdown
	m.current, m.countdown = nil, nil
	m.reserving = false
	m.resetting++
	m.epoch++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.resetting--
		m.mu.Unlock()
	}()

	if cd != nil {
		cd.Stop()
	}
	if s != nil {
		if !s.cancel(m.clock.Now().UTC()) && s.Status() == models.StatusSettling {
			// let in-flight settlement writes land before reverting them
			select {
			case <-s.settled():
			case <-ctx.Done():
				return fmt.Errorf("service: reset interrupted waiting for settlement: %w", ctx.Err())
			}
		}
	}

	if err := m.registry.ResetAll(ctx); err != nil {
		return fmt.Errorf("service: failed to reset registry: %w", err)
	}

	var discarded string
	if s != nil {
		discarded = s.ID()
	}
	m.publisher.Publish(EventAuctionReset, map[string]any{"discarded_session_id": discarded})
	utils.Info("service: auctions reset", map[string]any{"discarded_session_id": discarded})
	return nil
}

// Shutdown frees the slot when the process stops. An active session is
// cancelled and its lot returned to pending; an in-flight settlement is
// allowed to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	s, cd := m.current, m.countdown
	m.current, m.countdown = nil, nil
	m.reserving = false
	m.epoch++
	m.mu.Unlock()

	if cd != nil {
		cd.Stop()
	}
	if s == nil {
		return nil
	}

	snap := s.Snapshot()
	if s.cancel(m.clock.Now().UTC()) {
		if err := m.registry.SetLotStatus(ctx, snap.LotID, models.LotPending); err != nil {
			return fmt.Errorf("service: failed to revert lot %s on shutdown: %w", snap.LotID, err)
		}
		utils.Info("service: session cancelled on shutdown", map[string]any{"session_id": snap.SessionID, "lot_id": snap.LotID})
		return nil
	}

	if s.Status() == models.StatusSettling {
		select {
		case <-s.settled():
		case <-ctx.Done():
			return fmt.Errorf("service: shutdown interrupted waiting for settlement: %w", ctx.Err())
		}
	}
	return nil
}

// retire frees the slot if s still holds it
func (m *Manager) retire(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != s {
		return
	}
	if m.countdown != nil {
		m.countdown.Stop()
	}
	m.current, m.countdown = nil, nil
}

// activeSession resolves the id to the session holding the slot
func (m *Manager) activeSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("service: %w - empty session ID", auctionerrors.ErrValidation)
	}

	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s != nil && s.ID() == sessionID {
		return s, nil
	}
	if _, err := m.historical(ctx, sessionID); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("service: %w - session %s has ended", auctionerrors.ErrAuctionNotActive, sessionID)
}

func (m *Manager) historical(ctx context.Context, sessionID string) (models.SessionSnapshot, error) {
	if !utils.ValidSessionID(sessionID) {
		return models.SessionSnapshot{}, fmt.Errorf("service: %w - %s", auctionerrors.ErrSessionNotFound, sessionID)
	}
	auctions, err := m.registry.ListAuctions(ctx)
	if err != nil {
		return models.SessionSnapshot{}, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	for _, a := range auctions {
		if a.SessionID == sessionID {
			return a, nil
		}
	}
	return models.SessionSnapshot{}, fmt.Errorf("service: %w - %s", auctionerrors.ErrSessionNotFound, sessionID)
}
