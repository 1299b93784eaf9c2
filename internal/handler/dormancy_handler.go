package handler

import (
	"net/http"
	"strconv"

	"lifecycle-service/internal/dormancy"
	"lifecycle-service/pkg/logger"
	"lifecycle-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DormancyHandler serves dormancy detection endpoints.
type DormancyHandler struct {
	detector         *dormancy.Detector
	defaultThreshold int
}

// NewDormancyHandler creates a dormancy handler.
func NewDormancyHandler(detector *dormancy.Detector, defaultThreshold int) *DormancyHandler {
	return &DormancyHandler{detector: detector, defaultThreshold: defaultThreshold}
}

// Candidates lists customers whose inactivity exceeds the threshold. The
// result is a recommendation; confirming the DORMANT transition is a
// separate, explicit operator action.
func (h *DormancyHandler) Candidates(c echo.Context) error {
	log := logger.FromEcho(c)

	_, tenantID, ok := currentActor(c)
	if !ok {
		log.Error("Failed to get user claims from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	threshold := h.defaultThreshold
	if raw := c.QueryParam("threshold_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "threshold_days must be a positive integer"})
		}
		threshold = parsed
	}

	candidates, err := h.detector.FindCandidates(c.Request().Context(), tenantID, threshold)
	if err != nil {
		log.Error("Dormancy scan failed", zap.Int("threshold_days", threshold), zap.Error(err))
		return respondError(c, err)
	}

	prometheus.RecordDormancyScan(len(candidates))

	return c.JSON(http.StatusOK, echo.Map{
		"threshold_days": threshold,
		"candidates":     candidates,
	})
}
