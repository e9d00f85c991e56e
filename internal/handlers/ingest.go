package handlers

import (
	"errors"
	"net/http"

	"packhouse/internal/service"

	"github.com/gin-gonic/gin"
)

// ingestRequest is the device's telemetry payload. Weight is a pointer so
// a missing field is distinguishable from a literal zero reading.
type ingestRequest struct {
	Token     string   `json:"token"`
	Weight    *float64 `json:"weight"`
	IsRelayOn bool     `json:"isRelayOn"`
}

// respondServiceError maps service errors to the HTTP taxonomy:
// validation -> 400, unknown device -> 404, anything else is treated as a
// transient store failure -> 503 and the device retries next tick.
func (h *Handler) respondServiceError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrUnknownCommand),
		errors.Is(err, service.ErrCommandNoValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
	case errors.Is(err, service.ErrLogNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "packing log not found"})
	default:
		if h.log != nil {
			fields := append([]interface{}{"err", err}, kv...)
			h.log.Errorw(logKey, fields...)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, retry"})
	}
}

// @Summary      Ingest a load-cell reading
// @Description  Device-facing endpoint. Returns current thresholds and any queued command.
// @Tags         loadcell
// @Accept       json
// @Produce      json
// @Param        body  body  ingestRequest  true  "Reading payload"
// @Success      200   {object}  models.Advisory
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/loadcell/ingest [post]
func (h *Handler) ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if req.Token == "" || req.Weight == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and weight are required"})
		return
	}

	adv, err := h.services.Ingest(c.Request.Context(), service.IngestInput{
		Token:          req.Token,
		Weight:         *req.Weight,
		RelayOn:        req.IsRelayOn,
		DeliverCommand: true,
	})
	if err != nil {
		h.respondServiceError(c, err, "ingest_failed")
		return
	}
	c.JSON(http.StatusOK, adv)
}
