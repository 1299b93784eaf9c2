package handler

import (
	"net/http"

	"lifecycle-service/internal/model"
	"lifecycle-service/internal/retention"
	"lifecycle-service/pkg/logger"
	"lifecycle-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RetentionHandler serves retention check and execution endpoints.
type RetentionHandler struct {
	engine *retention.Engine
}

// NewRetentionHandler creates a retention handler.
func NewRetentionHandler(engine *retention.Engine) *RetentionHandler {
	return &RetentionHandler{engine: engine}
}

// RunCheck evaluates all active policies without mutating anything
func (h *RetentionHandler) RunCheck(c echo.Context) error {
	log := logger.FromEcho(c)

	_, tenantID, ok := currentActor(c)
	if !ok {
		log.Error("Failed to get user claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	result, err := h.engine.RunCheck(c.Request().Context(), tenantID)
	if err != nil {
		log.Error("Retention check failed", zap.Error(err))
		return respondError(c, err)
	}

	prometheus.RecordRetentionCheck(result.TotalFlagged)
	log.Info("Retention check finished", zap.Int("total_flagged", result.TotalFlagged))

	return c.JSON(http.StatusOK, result)
}

// Execute applies retention actions to the given records. Distinct from the
// check so destructive actions always require an explicit invocation.
func (h *RetentionHandler) Execute(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, tenantID, ok := currentActor(c)
	if !ok {
		log.Error("Failed to get user claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		RecordType string `json:"record_type"`
		RecordIDs  []uint `json:"record_ids"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse execute request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	recordType := model.RecordType(req.RecordType)
	switch recordType {
	case model.RecordTypeCustomer, model.RecordTypeAuditEvent, model.RecordTypeDocument:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid record type"})
	}
	if len(req.RecordIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "record_ids is required"})
	}

	result, err := h.engine.Execute(c.Request().Context(), tenantID, recordType, req.RecordIDs, actor)
	if err != nil {
		log.Warn("Retention execution rejected", zap.String("record_type", req.RecordType), zap.Error(err))
		return respondError(c, err)
	}

	prometheus.RecordRetentionExecution(req.RecordType, len(result.Succeeded), len(result.Failed))
	log.Info("Retention execution finished",
		zap.String("record_type", req.RecordType),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))

	return c.JSON(http.StatusOK, result)
}
