package handler

import (
	"errors"
	"net/http"

	"lifecycle-service/internal/checklist"
	"lifecycle-service/internal/lifecycle"
	"lifecycle-service/internal/model"
	"lifecycle-service/internal/retention"
	"lifecycle-service/internal/store"
	"lifecycle-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
)

// currentActor extracts the authenticated actor and tenant from the claims
// set by the auth middleware.
func currentActor(c echo.Context) (model.Actor, uint, bool) {
	claims, ok := c.Get("user").(*jwtutil.UserClaims)
	if !ok || claims.TenantID == nil {
		return model.Actor{}, 0, false
	}
	return model.Actor{UserID: claims.UserID, Role: claims.Role}, *claims.TenantID, true
}

// respondError maps engine errors to HTTP responses. Validation failures
// carry their reason to the caller; everything unexpected is a plain 500.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, checklist.ErrInvalidSkipReason):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrPermissionDenied),
		errors.Is(err, checklist.ErrPermissionDenied),
		errors.Is(err, retention.ErrPermissionDenied):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, checklist.ErrTemplateNotFound),
		errors.Is(err, checklist.ErrInstanceNotFound),
		errors.Is(err, checklist.ErrItemNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, checklist.ErrInstantiationConflict),
		errors.Is(err, lifecycle.ErrConcurrentModification),
		errors.Is(err, checklist.ErrItemNotReopenable),
		errors.Is(err, checklist.ErrItemNotActionable),
		errors.Is(err, checklist.ErrInstanceNotCancellable):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
