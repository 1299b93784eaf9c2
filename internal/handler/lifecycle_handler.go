package handler

import (
	"errors"
	"net/http"
	"strconv"

	"lifecycle-service/internal/lifecycle"
	"lifecycle-service/internal/model"
	"lifecycle-service/pkg/logger"
	"lifecycle-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// LifecycleHandler serves lifecycle transition endpoints.
type LifecycleHandler struct {
	orchestrator *lifecycle.Orchestrator
}

// NewLifecycleHandler creates a lifecycle handler.
func NewLifecycleHandler(orchestrator *lifecycle.Orchestrator) *LifecycleHandler {
	return &LifecycleHandler{orchestrator: orchestrator}
}

// Transition handles a lifecycle transition request
func (h *LifecycleHandler) Transition(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, tenantID, ok := currentActor(c)
	if !ok {
		log.Error("Failed to get user claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	customerID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid customer ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid customer ID"})
	}

	var req struct {
		TargetStatus string `json:"target_status"`
		Notes        string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse transition request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	target := model.LifecycleStatus(req.TargetStatus)
	if !model.IsValidLifecycleStatus(target) {
		log.Error("Invalid target status", zap.String("target_status", req.TargetStatus))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid target status"})
	}

	result, err := h.orchestrator.Transition(c.Request().Context(), tenantID, uint(customerID), target, actor, req.Notes)
	if err != nil {
		prometheus.RecordTransition(string(target), transitionOutcome(err))
		log.Warn("Lifecycle transition rejected",
			zap.Uint64("customer_id", customerID),
			zap.String("target", string(target)),
			zap.Error(err))
		return respondError(c, err)
	}

	prometheus.RecordTransition(string(target), "applied")
	log.Info("Lifecycle transition applied",
		zap.Uint64("customer_id", customerID),
		zap.String("target", string(target)),
		zap.Strings("warnings", result.Warnings))

	return c.JSON(http.StatusOK, echo.Map{
		"status":     result.Status,
		"changed_at": result.ChangedAt,
		"warnings":   result.Warnings,
	})
}

// Trail returns the customer's lifecycle audit records
func (h *LifecycleHandler) Trail(c echo.Context) error {
	log := logger.FromEcho(c)

	_, tenantID, ok := currentActor(c)
	if !ok {
		log.Error("Failed to get user claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	customerID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid customer ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid customer ID"})
	}

	trail, err := h.orchestrator.Trail(c.Request().Context(), tenantID, uint(customerID))
	if err != nil {
		log.Error("Failed to load transition trail", zap.Uint64("customer_id", customerID), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"transitions": trail})
}

// AvailableTransitions lists the legal targets from a given status
func (h *LifecycleHandler) AvailableTransitions(c echo.Context) error {
	status := model.LifecycleStatus(c.QueryParam("status"))
	if !model.IsValidLifecycleStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":      status,
		"transitions": lifecycle.AvailableTransitionOptions(status),
	})
}

func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return "illegal"
	case errors.Is(err, lifecycle.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, lifecycle.ErrPermissionDenied):
		return "denied"
	default:
		return "error"
	}
}
