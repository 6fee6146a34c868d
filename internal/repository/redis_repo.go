package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"lot-auction/internal/auctionerrors"
	model "lot-auction/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisRepo is a LotRegistry backed by Redis. All keys are namespaced with
// the configured prefix so several deployments can share one server.
//
// Layout:
//   - {ns}:lot:{id}            hash of lot fields
//   - {ns}:lots                set of lot ids
//   - {ns}:org:{id}            hash of organization fields
//   - {ns}:org:{id}:roster     set of owned lot ids
//   - {ns}:orgs                set of organization ids
//   - {ns}:captain:{user}      organization id bid for by the captain
//   - {ns}:remaining           hash sessionID -> mirrored remaining time
//   - {ns}:auction:{id}        terminal session snapshot JSON
//   - {ns}:auctions            zset of session ids scored by end time (ms)
type RedisRepo struct {
	rdb *redis.Client
	ns  string
}

// hashReader is satisfied by both *redis.Client and *redis.Tx
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// NewRedisRepo creates a Redis-backed registry
func NewRedisRepo(rdb *redis.Client, namespace string) (*RedisRepo, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &RedisRepo{rdb: rdb, ns: namespace}, nil
}

// Ping verifies Redis connectivity
func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client
func (r *RedisRepo) Close() error {
	return r.rdb.Close()
}

func (r *RedisRepo) lotKey(id string) string     { return r.ns + ":lot:" + id }
func (r *RedisRepo) lotsKey() string             { return r.ns + ":lots" }
func (r *RedisRepo) orgKey(id string) string     { return r.ns + ":org:" + id }
func (r *RedisRepo) rosterKey(id string) string  { return r.ns + ":org:" + id + ":roster" }
func (r *RedisRepo) orgsKey() string             { return r.ns + ":orgs" }
func (r *RedisRepo) captainKey(id string) string { return r.ns + ":captain:" + id }
func (r *RedisRepo) remainingKey() string        { return r.ns + ":remaining" }
func (r *RedisRepo) auctionKey(id string) string { return r.ns + ":auction:" + id }
func (r *RedisRepo) auctionsKey() string         { return r.ns + ":auctions" }

// GetLot returns a lot by ID
func (r *RedisRepo) GetLot(ctx context.Context, lotID string) (model.Lot, error) {
	return r.readLot(ctx, r.rdb, lotID)
}

func (r *RedisRepo) readLot(ctx context.Context, c hashReader, lotID string) (model.Lot, error) {
	h, err := c.HGetAll(ctx, r.lotKey(lotID)).Result()
	if err != nil {
		return model.Lot{}, fmt.Errorf("get lot %s: %w", lotID, err)
	}
	if len(h) == 0 {
		return model.Lot{}, fmt.Errorf("get lot %s: %w", lotID, auctionerrors.ErrLotNotFound)
	}
	return hashToLot(h)
}

// GetOrganization returns an organization by ID, roster included
func (r *RedisRepo) GetOrganization(ctx context.Context, orgID string) (model.Organization, error) {
	return r.readOrg(ctx, r.rdb, orgID)
}

func (r *RedisRepo) readOrg(ctx context.Context, c hashReader, orgID string) (model.Organization, error) {
	h, err := c.HGetAll(ctx, r.orgKey(orgID)).Result()
	if err != nil {
		return model.Organization{}, fmt.Errorf("get organization %s: %w", orgID, err)
	}
	if len(h) == 0 {
		return model.Organization{}, fmt.Errorf("get organization %s: %w", orgID, auctionerrors.ErrOrganizationNotFound)
	}
	org, err := hashToOrg(h)
	if err != nil {
		return model.Organization{}, err
	}
	roster, err := c.SMembers(ctx, r.rosterKey(orgID)).Result()
	if err != nil {
		return model.Organization{}, fmt.Errorf("get roster of organization %s: %w", orgID, err)
	}
	org.Roster = roster
	return org, nil
}

// GetOrganizationByCaptain returns the organization a captain bids for
func (r *RedisRepo) GetOrganizationByCaptain(ctx context.Context, userID string) (model.Organization, error) {
	orgID, err := r.rdb.Get(ctx, r.captainKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Organization{}, fmt.Errorf("get organization for captain %s: %w", userID, auctionerrors.ErrOrganizationNotFound)
	}
	if err != nil {
		return model.Organization{}, fmt.Errorf("get organization for captain %s: %w", userID, err)
	}
	return r.GetOrganization(ctx, orgID)
}

// SetLotStatus updates the auction status label of a lot
func (r *RedisRepo) SetLotStatus(ctx context.Context, lotID string, status model.LotStatus) error {
	n, err := r.rdb.Exists(ctx, r.lotKey(lotID)).Result()
	if err != nil {
		return fmt.Errorf("set status for lot %s: %w", lotID, err)
	}
	if n == 0 {
		return fmt.Errorf("set status for lot %s: %w", lotID, auctionerrors.ErrLotNotFound)
	}
	if err := r.rdb.HSet(ctx, r.lotKey(lotID), "auction_status", string(status)).Err(); err != nil {
		return fmt.Errorf("set status for lot %s: %w", lotID, err)
	}
	return nil
}

// MirrorRemaining stores the last known remaining time of a session
func (r *RedisRepo) MirrorRemaining(ctx context.Context, sessionID string, remaining int) error {
	if err := r.rdb.HSet(ctx, r.remainingKey(), sessionID, remaining).Err(); err != nil {
		return fmt.Errorf("mirror remaining time of session %s: %w", sessionID, err)
	}
	return nil
}

// MirroredRemaining returns the last mirrored remaining time of a session
func (r *RedisRepo) MirroredRemaining(ctx context.Context, sessionID string) (int, error) {
	v, err := r.rdb.HGet(ctx, r.remainingKey(), sessionID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("mirrored remaining of session %s: %w", sessionID, auctionerrors.ErrSessionNotFound)
	}
	return v, err
}

// ApplySale debits the winner, adds the lot to its roster and marks the lot
// sold in a single MULTI/EXEC guarded by WATCH on the lot and organization.
// Re-applying the same sale is a no-op.
func (r *RedisRepo) ApplySale(ctx context.Context, sale model.Sale) error {
	lotKey, orgKey := r.lotKey(sale.LotID), r.orgKey(sale.OrganizationID)

	txf := func(tx *redis.Tx) error {
		lot, err := r.readLot(ctx, tx, sale.LotID)
		if err != nil {
			return fmt.Errorf("apply sale: %w", err)
		}
		org, err := r.readOrg(ctx, tx, sale.OrganizationID)
		if err != nil {
			return fmt.Errorf("apply sale: %w", err)
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

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, orgKey, "remaining_budget", org.RemainingBudget-sale.Price)
			pipe.SAdd(ctx, r.rosterKey(sale.OrganizationID), sale.LotID)
			pipe.HSet(ctx, lotKey,
				"is_sold", "1",
				"owner_id", sale.OrganizationID,
				"sold_price", sale.Price,
				"auction_status", string(model.LotSold),
			)
			return nil
		})
		return err
	}

	if err := r.rdb.Watch(ctx, txf, lotKey, orgKey); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("apply sale of lot %s: concurrent modification: %w", sale.LotID, err)
		}
		return err
	}
	return nil
}

// RecordAuction stores the terminal snapshot of a finished auction
func (r *RedisRepo) RecordAuction(ctx context.Context, snapshot model.SessionSnapshot) error {
	if snapshot.SessionID == "" {
		return fmt.Errorf("record auction: %w - empty session ID", auctionerrors.ErrValidation)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("record auction %s: %w", snapshot.SessionID, err)
	}

	var score float64
	if snapshot.EndedAt != nil {
		score = float64(snapshot.EndedAt.UnixMilli())
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.auctionKey(snapshot.SessionID), data, 0)
		pipe.ZAdd(ctx, r.auctionsKey(), redis.Z{Score: score, Member: snapshot.SessionID})
		pipe.HDel(ctx, r.remainingKey(), snapshot.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record auction %s: %w", snapshot.SessionID, err)
	}
	return nil
}

// ListAuctions returns finished auctions, most recently ended first
func (r *RedisRepo) ListAuctions(ctx context.Context) ([]model.SessionSnapshot, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.auctionsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	out := make([]model.SessionSnapshot, 0, len(ids))
	for _, id := range ids {
		data, err := r.rdb.Get(ctx, r.auctionKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list auctions: read %s: %w", id, err)
		}
		var snap model.SessionSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("list auctions: decode %s: %w", id, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// ResetAll reverts every settlement in a single transaction
func (r *RedisRepo) ResetAll(ctx context.Context) error {
	orgIDs, err := r.rdb.SMembers(ctx, r.orgsKey()).Result()
	if err != nil {
		return fmt.Errorf("reset: list organizations: %w", err)
	}
	lotIDs, err := r.rdb.SMembers(ctx, r.lotsKey()).Result()
	if err != nil {
		return fmt.Errorf("reset: list lots: %w", err)
	}
	auctionIDs, err := r.rdb.ZRange(ctx, r.auctionsKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("reset: list auctions: %w", err)
	}

	totals := make(map[string]string, len(orgIDs))
	for _, id := range orgIDs {
		total, err := r.rdb.HGet(ctx, r.orgKey(id), "total_budget").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("reset: read budget of %s: %w", id, err)
		}
		totals[id] = total
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, total := range totals {
			if total != "" {
				pipe.HSet(ctx, r.orgKey(id), "remaining_budget", total)
			}
			pipe.Del(ctx, r.rosterKey(id))
		}
		for _, id := range lotIDs {
			pipe.HSet(ctx, r.lotKey(id),
				"is_sold", "0",
				"owner_id", "",
				"sold_price", 0,
				"auction_status", string(model.LotPending),
			)
		}
		for _, id := range auctionIDs {
			pipe.Del(ctx, r.auctionKey(id))
		}
		pipe.Del(ctx, r.auctionsKey(), r.remainingKey())
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// AddLot writes a lot. Used for seeding.
func (r *RedisRepo) AddLot(ctx context.Context, lot model.Lot) error {
	if lot.AuctionStatus == "" {
		lot.AuctionStatus = model.LotPending
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.lotKey(lot.LotID), lotToHash(lot))
		pipe.SAdd(ctx, r.lotsKey(), lot.LotID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add lot %s: %w", lot.LotID, err)
	}
	return nil
}

// AddOrganization writes an organization and its captain mapping. Used for seeding.
func (r *RedisRepo) AddOrganization(ctx context.Context, org model.Organization) error {
	if org.RemainingBudget == 0 && len(org.Roster) == 0 {
		org.RemainingBudget = org.TotalBudget
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.orgKey(org.OrganizationID), orgToHash(org))
		pipe.SAdd(ctx, r.orgsKey(), org.OrganizationID)
		pipe.Del(ctx, r.rosterKey(org.OrganizationID))
		if len(org.Roster) > 0 {
			members := make([]any, len(org.Roster))
			for i, id := range org.Roster {
				members[i] = id
			}
			pipe.SAdd(ctx, r.rosterKey(org.OrganizationID), members...)
		}
		if org.CaptainID != "" {
			pipe.Set(ctx, r.captainKey(org.CaptainID), org.OrganizationID, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("add organization %s: %w", org.OrganizationID, err)
	}
	return nil
}

func lotToHash(l model.Lot) map[string]any {
	sold := "0"
	if l.IsSold {
		sold = "1"
	}
	return map[string]any{
		"lot_id":         l.LotID,
		"name":           l.Name,
		"role":           l.Role,
		"base_price":     l.BasePrice,
		"is_sold":        sold,
		"owner_id":       l.OwnerID,
		"sold_price":     l.SoldPrice,
		"auction_status": string(l.AuctionStatus),
	}
}

func hashToLot(h map[string]string) (model.Lot, error) {
	base, err := parseInt(h, "base_price")
	if err != nil {
		return model.Lot{}, err
	}
	sold, err := parseInt(h, "sold_price")
	if err != nil {
		return model.Lot{}, err
	}
	return model.Lot{
		LotID:         h["lot_id"],
		Name:          h["name"],
		Role:          h["role"],
		BasePrice:     base,
		IsSold:        h["is_sold"] == "1",
		OwnerID:       h["owner_id"],
		SoldPrice:     sold,
		AuctionStatus: model.LotStatus(h["auction_status"]),
	}, nil
}

func orgToHash(o model.Organization) map[string]any {
	return map[string]any{
		"organization_id":  o.OrganizationID,
		"name":             o.Name,
		"captain_id":       o.CaptainID,
		"total_budget":     o.TotalBudget,
		"remaining_budget": o.RemainingBudget,
	}
}

func hashToOrg(h map[string]string) (model.Organization, error) {
	total, err := parseInt(h, "total_budget")
	if err != nil {
		return model.Organization{}, err
	}
	remaining, err := parseInt(h, "remaining_budget")
	if err != nil {
		return model.Organization{}, err
	}
	return model.Organization{
		OrganizationID:  h["organization_id"],
		Name:            h["name"],
		CaptainID:       h["captain_id"],
		TotalBudget:     total,
		RemainingBudget: remaining,
	}, nil
}

func parseInt(h map[string]string, field string) (int64, error) {
	v, ok := h[field]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	return n, nil
}
