package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lot-auction/internal/auctionerrors"
	model "lot-auction/internal/models"
)

// LotRegistry is the system of record for lots, bidder organizations and
// finished auctions. The auction engine only touches it at transition points.
type LotRegistry interface {
	GetLot(ctx context.Context, lotID string) (model.Lot, error)
	GetOrganization(ctx context.Context, orgID string) (model.Organization, error)
	GetOrganizationByCaptain(ctx context.Context, userID string) (model.Organization, error)
	SetLotStatus(ctx context.Context, lotID string, status model.LotStatus) error
	MirrorRemaining(ctx context.Context, sessionID string, remaining int) error
	ApplySale(ctx context.Context, sale model.Sale) error
	RecordAuction(ctx context.Context, snapshot model.SessionSnapshot) error
	ListAuctions(ctx context.Context) ([]model.SessionSnapshot, error)
	ResetAll(ctx context.Context) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of LotRegistry
type MemoryRepo struct {
	mu        sync.RWMutex
	lots      map[string]model.Lot             // key: lotID
	orgs      map[string]model.Organization    // key: organizationID
	captains  map[string]string                // key: captain userID -> organizationID
	remaining map[string]int                   // key: sessionID -> mirrored remaining time
	auctions  map[string]model.SessionSnapshot // key: sessionID -> terminal snapshot
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		lots:      make(map[string]model.Lot),
		orgs:      make(map[string]model.Organization),
		captains:  make(map[string]string),
		remaining: make(map[string]int),
		auctions:  make(map[string]model.SessionSnapshot),
	}
}

// GetLot returns a lot by ID
func (r *MemoryRepo) GetLot(_ context.Context, lotID string) (model.Lot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lot, ok := r.lots[lotID]
	if !ok {
		return model.Lot{}, fmt.Errorf("get lot %s: %w", lotID, auctionerrors.ErrLotNotFound)
	}
	return lot, nil
}

// GetOrganization returns an organization by ID
func (r *MemoryRepo) GetOrganization(_ context.Context, orgID string) (model.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	org, ok := r.orgs[orgID]
	if !ok {
		return model.Organization{}, fmt.Errorf("get organization %s: %w", orgID, auctionerrors.ErrOrganizationNotFound)
	}
	return copyOrg(org), nil
}

// GetOrganizationByCaptain returns the organization a captain bids for
func (r *MemoryRepo) GetOrganizationByCaptain(ctx context.Context, userID string) (model.Organization, error) {
	r.mu.RLock()
	orgID, ok := r.captains[userID]
	r.mu.RUnlock()

	if !ok {
		return model.Organization{}, fmt.Errorf("get organization for captain %s: %w", userID, auctionerrors.ErrOrganizationNotFound)
	}
	return r.GetOrganization(ctx, orgID)
}

// SetLotStatus updates the auction status label of a lot
func (r *MemoryRepo) SetLotStatus(_ context.Context, lotID string, status model.LotStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lot, ok := r.lots[lotID]
	if !ok {
		return fmt.Errorf("set status for lot %s: %w", lotID, auctionerrors.ErrLotNotFound)
	}
	lot.AuctionStatus = status
	r.lots[lotID] = lot
	return nil
}

// MirrorRemaining stores the last known remaining time of a session
func (r *MemoryRepo) MirrorRemaining(_ context.Context, sessionID string, remaining int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining[sessionID] = remaining
	return nil
}

// MirroredRemaining returns the last mirrored remaining time of a session
func (r *MemoryRepo) MirroredRemaining(sessionID string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.remaining[sessionID]
	return v, ok
}

// ApplySale debits the winner, adds the lot to its roster and marks the lot
// sold in one step. Re-applying the same sale is a no-op.
func (r *MemoryRepo) ApplySale(_ context.Context, sale model.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lot, ok := r.lots[sale.LotID]
	if !ok {
		return fmt.Errorf("apply sale of lot %s: %w", sale.LotID, auctionerrors.ErrLotNotFound)
	}
	org, ok := r.orgs[sale.OrganizationID]
	if !ok {
		return fmt.Errorf("apply sale to organization %s: %w", sale.OrganizationID, auctionerrors.ErrOrganizationNotFound)
	}

	if lot.IsSold {
		if lot.OwnerID == sale.OrganizationID && lot.SoldPrice == sale.Price {
			return nil
		}
		return fmt.Errorf("apply sale of lot %s: %w", sale.LotID, auctionerrors.ErrAlreadyOwned)
	}
	if org.RemainingBudget < sale.Price {
		return fmt.Errorf("apply sale to organization %s: %w", sale.OrganizationID, auctionerrors.ErrInsufficientBudget)
	}

	org.RemainingBudget -= sale.Price
	if !org.HasLot(sale.LotID) {
		org.Roster = append(append([]string(nil), org.Roster...), sale.LotID)
	}
	lot.IsSold = true
	lot.OwnerID = sale.OrganizationID
	lot.SoldPrice = sale.Price
	lot.AuctionStatus = model.LotSold

	r.orgs[org.OrganizationID] = org
	r.lots[lot.LotID] = lot
	return nil
}

// RecordAuction stores the terminal snapshot of a finished auction
func (r *MemoryRepo) RecordAuction(_ context.Context, snapshot model.SessionSnapshot) error {
	if snapshot.SessionID == "" {
		return fmt.Errorf("record auction: %w - empty session ID", auctionerrors.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[snapshot.SessionID] = snapshot
	return nil
}

// ListAuctions returns finished auctions, most recently ended first
func (r *MemoryRepo) ListAuctions(_ context.Context) ([]model.SessionSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SessionSnapshot, 0, len(r.auctions))
	for _, s := range r.auctions {
		out = append(out, s)
	}
	sortByEndedDesc(out)
	return out, nil
}

// ResetAll reverts every settlement: budgets are restored, rosters emptied,
// lots returned to pending and the auction history cleared.
func (r *MemoryRepo) ResetAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, org := range r.orgs {
		org.RemainingBudget = org.TotalBudget
		org.Roster = nil
		r.orgs[id] = org
	}
	for id, lot := range r.lots {
		lot.IsSold = false
		lot.OwnerID = ""
		lot.SoldPrice = 0
		lot.AuctionStatus = model.LotPending
		r.lots[id] = lot
	}
	r.auctions = make(map[string]model.SessionSnapshot)
	r.remaining = make(map[string]int)
	return nil
}

// AddLot adds a lot to the repository. Used for seeding and tests.
func (r *MemoryRepo) AddLot(lot model.Lot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lot.AuctionStatus == "" {
		lot.AuctionStatus = model.LotPending
	}
	r.lots[lot.LotID] = lot
}

// AddOrganization adds an organization to the repository. Used for seeding and tests.
func (r *MemoryRepo) AddOrganization(org model.Organization) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if org.RemainingBudget == 0 && len(org.Roster) == 0 {
		org.RemainingBudget = org.TotalBudget
	}
	r.orgs[org.OrganizationID] = copyOrg(org)
	if org.CaptainID != "" {
		r.captains[org.CaptainID] = org.OrganizationID
	}
}

func copyOrg(org model.Organization) model.Organization {
	org.Roster = append([]string(nil), org.Roster...)
	return org
}

func sortByEndedDesc(s []model.SessionSnapshot) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i].EndedAt, s[j].EndedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
}
