package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"lot-auction/internal/auctionerrors"
	"lot-auction/internal/auth"
	"lot-auction/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message.
// Specific errors are matched before the category they wrap.
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "not allowed for this role"
	case errors.Is(err, auctionerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, auctionerrors.ErrInsufficientBudget):
		return http.StatusBadRequest, "insufficient budget"
	case errors.Is(err, auctionerrors.ErrAlreadyHighestBidder):
		return http.StatusBadRequest, "already the highest bidder"
	case errors.Is(err, auctionerrors.ErrAuctionNotActive):
		return http.StatusBadRequest, "auction is not active"
	case errors.Is(err, auctionerrors.ErrAlreadyOwned):
		return http.StatusConflict, "lot already sold"
	case errors.Is(err, auctionerrors.ErrAuctionInProgress):
		return http.StatusConflict, "another auction is in progress"
	case errors.Is(err, auctionerrors.ErrLotNotFound):
		return http.StatusNotFound, "lot not found"
	case errors.Is(err, auctionerrors.ErrOrganizationNotFound):
		return http.StatusNotFound, "organization not found"
	case errors.Is(err, auctionerrors.ErrSessionNotFound):
		return http.StatusNotFound, "auction session not found"
	case errors.Is(err, auctionerrors.ErrSettlementIncomplete):
		return http.StatusInternalServerError, "settlement incomplete, retry required"
	case errors.Is(err, auctionerrors.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, auctionerrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, auctionerrors.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, auctionerrors.ErrInvalidState):
		return http.StatusBadRequest, "invalid auction state"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError maps err, writes the error envelope and logs the failure
func RespondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["status"] = status
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", fields)
		return
	}
	utils.Warn(handlerName+": request rejected", fields)
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
