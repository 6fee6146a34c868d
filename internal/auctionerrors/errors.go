package auctionerrors

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of them so
// callers can branch with errors.Is on either level.
var (
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("conflict")
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrSettlementIncomplete = errors.New("settlement incomplete")
)

// Registry-level errors
var (
	ErrLotNotFound          = fmt.Errorf("lot %w", ErrNotFound)
	ErrOrganizationNotFound = fmt.Errorf("organization %w", ErrNotFound)
	ErrSessionNotFound      = fmt.Errorf("auction session %w", ErrNotFound)
	ErrAlreadyOwned         = fmt.Errorf("%w: lot is already sold", ErrConflict)
)

// business logic errors
var (
	ErrInvalidBid           = fmt.Errorf("%w: invalid bid", ErrValidation)
	ErrInvalidDuration      = fmt.Errorf("%w: invalid auction duration", ErrValidation)
	ErrAuctionNotActive     = fmt.Errorf("%w: auction is not active", ErrValidation)
	ErrBidTooLow            = fmt.Errorf("%w: bid amount too low", ErrValidation)
	ErrInsufficientBudget   = fmt.Errorf("%w: insufficient budget", ErrValidation)
	ErrAlreadyHighestBidder = fmt.Errorf("%w: already the highest bidder", ErrValidation)
	ErrAuctionInProgress    = fmt.Errorf("%w: another auction is in progress", ErrConflict)
	ErrNotSettlementPending = fmt.Errorf("%w: settlement is not pending", ErrInvalidState)
)
