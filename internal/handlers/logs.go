package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type assignFarmerRequest struct {
	FarmerID int64 `json:"farmer_id" binding:"required"`
}

// @Summary      Latest raw reading for a device
// @Tags         loadcell
// @Produce      json
// @Param        deviceId  path  int  true  "Device ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/loadcell/latest/{deviceId} [get]
// @Security     BearerAuth
func (h *Handler) latestReading(c *gin.Context) {
	deviceID, ok := paramInt64(c, "deviceId")
	if !ok {
		return
	}
	reading, err := h.services.LatestReading(c.Request.Context(), deviceID)
	if err != nil {
		h.respondServiceError(c, err, "latest_reading_failed", "device_id", deviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reading": reading})
}

// @Summary      Recent packing logs for a device
// @Tags         logs
// @Produce      json
// @Param        deviceId  path  int  true  "Device ID"
// @Success      200  {object}  map[string]interface{}  "count, logs"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/loadcell/logs/{deviceId} [get]
// @Security     BearerAuth
func (h *Handler) packingLogs(c *gin.Context) {
	deviceID, ok := paramInt64(c, "deviceId")
	if !ok {
		return
	}
	logs, err := h.services.PackingLogs(c.Request.Context(), deviceID)
	if err != nil {
		h.respondServiceError(c, err, "packing_logs_failed", "device_id", deviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(logs), "logs": logs})
}

// @Summary      Attribute a packing log to a farmer
// @Tags         logs
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "Packing log ID"
// @Param        body  body  assignFarmerRequest  true  "Attribution payload"
// @Success      200   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/logs/{id}/farmer [patch]
// @Security     BearerAuth
func (h *Handler) assignFarmer(c *gin.Context) {
	logID := c.Param("id")
	var req assignFarmerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if err := h.services.AssignFarmer(c.Request.Context(), logID, req.FarmerID); err != nil {
		h.respondServiceError(c, err, "assign_farmer_failed", "log_id", logID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "assigned"})
}

// @Summary      Delete a packing log
// @Tags         logs
// @Produce      json
// @Param        id  path  string  true  "Packing log ID"
// @Success      200  {object}  map[string]string
// @Router       /api/v1/logs/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deletePackingLog(c *gin.Context) {
	logID := c.Param("id")
	if err := h.services.DeletePackingLog(c.Request.Context(), logID); err != nil {
		h.respondServiceError(c, err, "delete_log_failed", "log_id", logID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// @Summary      Purge a device's history and re-arm it
// @Tags         logs
// @Produce      json
// @Param        deviceId  path  int  true  "Device ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/logs/reset/{deviceId} [delete]
// @Security     BearerAuth
func (h *Handler) resetDevice(c *gin.Context) {
	deviceID, ok := paramInt64(c, "deviceId")
	if !ok {
		return
	}
	if err := h.services.ResetDevice(c.Request.Context(), deviceID); err != nil {
		h.respondServiceError(c, err, "reset_device_failed", "device_id", deviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
