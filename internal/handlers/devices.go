package handlers

import (
	"net/http"
	"strconv"

	"packhouse/internal/models"
	"packhouse/internal/service"

	"github.com/gin-gonic/gin"
)

type deviceRequest struct {
	Name              string   `json:"name"`
	LogThreshold      *float64 `json:"log_threshold,omitempty"`
	RelayThreshold    *float64 `json:"relay_threshold,omitempty"`
	CalibrationFactor *float64 `json:"calibration_factor,omitempty"`
}

type commandRequest struct {
	Type  string   `json:"type" binding:"required"` // TARE | CALIBRATE
	Value *float64 `json:"value,omitempty"`
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	devices, err := h.services.ListDevices(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "devices_list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(devices), "devices": devices})
}

// @Summary      Register a device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        body  body  deviceRequest  true  "Device payload"
// @Success      201   {object}  models.Device
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/devices [post]
// @Security     BearerAuth
func (h *Handler) createDevice(c *gin.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	device, err := h.services.CreateDevice(c.Request.Context(), service.DeviceParams{
		Name:              req.Name,
		LogThreshold:      req.LogThreshold,
		RelayThreshold:    req.RelayThreshold,
		CalibrationFactor: req.CalibrationFactor,
	})
	if err != nil {
		h.respondServiceError(c, err, "device_create_failed", "name", req.Name)
		return
	}
	c.JSON(http.StatusCreated, device)
}

// @Summary      Update device configuration
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path  int            true  "Device ID"
// @Param        body  body  deviceRequest  true  "Fields to update"
// @Success      200   {object}  models.Device
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/devices/{id} [put]
// @Security     BearerAuth
func (h *Handler) updateDevice(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	device, err := h.services.UpdateDevice(c.Request.Context(), id, service.DeviceParams{
		Name:              req.Name,
		LogThreshold:      req.LogThreshold,
		RelayThreshold:    req.RelayThreshold,
		CalibrationFactor: req.CalibrationFactor,
	})
	if err != nil {
		h.respondServiceError(c, err, "device_update_failed", "device_id", id)
		return
	}
	c.JSON(http.StatusOK, device)
}

// @Summary      Delete a device
// @Tags         devices
// @Produce      json
// @Param        id  path  int  true  "Device ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/devices/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteDevice(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	if err := h.services.DeleteDevice(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, err, "device_delete_failed", "device_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// @Summary      Queue a remote command
// @Description  At most one pending command per device; a new one replaces it. Delivered on the device's next synchronous poll.
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        deviceId  path  int             true  "Device ID"
// @Param        body      body  commandRequest  true  "Command payload"
// @Success      202   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/commands/{deviceId} [post]
// @Security     BearerAuth
func (h *Handler) queueCommand(c *gin.Context) {
	deviceID, ok := paramInt64(c, "deviceId")
	if !ok {
		return
	}
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	err := h.services.Queue(c.Request.Context(), deviceID, models.Command{
		Type:  req.Type,
		Value: req.Value,
	})
	if err != nil {
		h.respondServiceError(c, err, "command_queue_failed", "device_id", deviceID, "type", req.Type)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "type": req.Type})
}
