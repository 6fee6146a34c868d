package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lot-auction/internal/auctionerrors"
	model "lot-auction/internal/models"
)

// Role is what a caller may do in the auction room
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCaptain Role = "captain"
	RoleViewer  Role = "viewer"
)

// Headers set by the upstream gateway after authenticating the caller
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Identity is the authenticated caller of a request
type Identity struct {
	UserID         string `json:"user_id"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"` // set for captains
}

// Is reports whether the identity holds one of the roles
func (i Identity) Is(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// Resolver turns an incoming request into an Identity
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// CaptainLookup finds the organization a captain bids for
type CaptainLookup interface {
	GetOrganizationByCaptain(ctx context.Context, userID string) (model.Organization, error)
}

// HeaderResolver trusts identity headers injected by an authenticating gateway
type HeaderResolver struct {
	captains CaptainLookup
}

// NewHeaderResolver creates a resolver that maps captains to organizations through lookup
func NewHeaderResolver(lookup CaptainLookup) *HeaderResolver {
	return &HeaderResolver{captains: lookup}
}

// Resolve reads the identity headers. A captain with no organization is
// still resolved, with an empty OrganizationID.
func (h *HeaderResolver) Resolve(r *http.Request) (Identity, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: missing %s header", ErrUnauthenticated, HeaderUserID)
	}

	role := Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole))))
	switch role {
	case RoleAdmin, RoleViewer:
		return Identity{UserID: userID, Role: role}, nil
	case RoleCaptain:
		org, err := h.captains.GetOrganizationByCaptain(r.Context(), userID)
		if err != nil {
			if errors.Is(err, auctionerrors.ErrNotFound) {
				return Identity{UserID: userID, Role: role}, nil
			}
			return Identity{}, fmt.Errorf("failed to resolve organization for captain %s: %w", userID, err)
		}
		return Identity{UserID: userID, Role: role, OrganizationID: org.OrganizationID}, nil
	case "":
		return Identity{}, fmt.Errorf("%w: missing %s header", ErrUnauthenticated, HeaderRole)
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, role)
	}
}

type ctxKey struct{}

// WithIdentity stores the identity on the context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
