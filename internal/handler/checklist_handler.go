package handler

import (
	"net/http"
	"strconv"

	"lifecycle-service/internal/checklist"
	"lifecycle-service/pkg/logger"
	"lifecycle-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ChecklistHandler serves checklist instance endpoints.
type ChecklistHandler struct {
	engine *checklist.Engine
}

// NewChecklistHandler creates a checklist handler.
func NewChecklistHandler(engine *checklist.Engine) *ChecklistHandler {
	return &ChecklistHandler{engine: engine}
}

// Instantiate creates a checklist instance for a customer from a template
func (h *ChecklistHandler) Instantiate(c echo.Context) error {
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
		TemplateID uint `json:"template_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse instantiate request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.TemplateID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "template_id is required"})
	}

	inst, err := h.engine.Instantiate(c.Request().Context(), tenantID, uint(customerID), req.TemplateID, actor)
	if err != nil {
		log.Warn("Checklist instantiation rejected",
			zap.Uint64("customer_id", customerID),
			zap.Uint("template_id", req.TemplateID),
			zap.Error(err))
		return respondError(c, err)
	}

	prometheus.RecordChecklistOperation("instantiate")
	log.Info("Checklist instantiated",
		zap.Uint("instance_id", inst.ID),
		zap.Uint64("customer_id", customerID),
		zap.Uint("template_id", req.TemplateID))

	return c.JSON(http.StatusCreated, inst)
}

// ActiveInstance returns the checklist instance shown for a customer
func (h *ChecklistHandler) ActiveInstance(c echo.Context) error {
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

	inst, err := h.engine.ActiveInstance(c.Request().Context(), tenantID, uint(customerID))
	if err != nil {
		log.Error("Failed to load active checklist", zap.Uint64("customer_id", customerID), zap.Error(err))
		return respondError(c, err)
	}
	if inst == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "customer has no checklist instances"})
	}

	return c.JSON(http.StatusOK, inst)
}

// CompleteItem marks a checklist item completed
func (h *ChecklistHandler) CompleteItem(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, tenantID, ok := currentActor(c)
	if !ok {
		log.Error("Failed to get user claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid item ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item ID"})
	}

	var req struct {
		Notes              string `json:"notes"`
		EvidenceDocumentID *uint  `json:"evidence_document_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse complete request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	inst, err := h.engine.CompleteItem(c.Request().Context(), tenantID, uint(itemID), actor, checklist.CompleteOptions{
		Notes:              req.Notes,
		EvidenceDocumentID: req.EvidenceDocumentID,
	})
	if err != nil {
		log.Warn("Checklist item completion rejected", zap.Uint64("item_id", itemID), zap.Error(err))
		return respondError(c, err)
	}

	prometheus.RecordChecklistOperation("complete_item")
	return c.JSON(http.StatusOK, inst)
}

// SkipItem marks a checklist item skipped with a reason
func (h *ChecklistHandler) SkipItem(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, tenantID, ok := currentActor(c)
	if !ok {
		log.Error("Failed to get user claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid item ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item ID"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse skip request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	inst, err := h.engine.SkipItem(c.Request().Context(), tenantID, uint(itemID), actor, req.Reason)
	if err != nil {
		log.Warn("Checklist item skip rejected", zap.Uint64("item_id", itemID), zap.Error(err))
		return respondError(c, err)
	}

	prometheus.RecordChecklistOperation("skip_item")
	return c.JSON(http.StatusOK, inst)
}

// ReopenItem resets a completed or skipped item to pending
func (h *ChecklistHandler) ReopenItem(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, tenantID, ok := currentActor(c)
	if !ok {
		log.Error("Failed to get user claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid item ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item ID"})
	}

	inst, err := h.engine.ReopenItem(c.Request().Context(), tenantID, uint(itemID), actor)
	if err != nil {
		log.Warn("Checklist item reopen rejected", zap.Uint64("item_id", itemID), zap.Error(err))
		return respondError(c, err)
	}

	prometheus.RecordChecklistOperation("reopen_item")
	return c.JSON(http.StatusOK, inst)
}

// CancelInstance cancels an in-progress checklist instance
func (h *ChecklistHandler) CancelInstance(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, tenantID, ok := currentActor(c)
	if !ok {
		log.Error("Failed to get user claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	instanceID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid instance ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid instance ID"})
	}

	if err := h.engine.CancelInstance(c.Request().Context(), tenantID, uint(instanceID), actor); err != nil {
		log.Warn("Checklist cancel rejected", zap.Uint64("instance_id", instanceID), zap.Error(err))
		return respondError(c, err)
	}

	prometheus.RecordChecklistOperation("cancel_instance")
	return c.JSON(http.StatusOK, echo.Map{"message": "checklist instance cancelled"})
}
