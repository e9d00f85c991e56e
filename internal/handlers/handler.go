package handlers

import (
	"net/http"
	"strings"

	"packhouse/internal/logger"
	"packhouse/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	auth := router.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}

	api := router.Group("/api/v1")
	{
		// Device-facing: authenticated by the device token in the body,
		// never by an operator JWT. Firmware cannot hold a session.
		api.POST("/loadcell/ingest", h.ingest)

		h.registerOperatorRoutes(api)
	}

	// Live weight stream for dashboards, same port.
	router.GET("/ws/:deviceId", h.wsReadings)

	return router
}

func (h *Handler) registerOperatorRoutes(api *gin.RouterGroup) {
	ops := api.Group("", h.operatorAuthMiddleware)
	{
		devices := ops.Group("/devices")
		{
			devices.GET("/", h.listDevices)
			devices.POST("/", h.createDevice)
			devices.PUT("/:id", h.updateDevice)
			devices.DELETE("/:id", h.deleteDevice)
		}

		ops.GET("/loadcell/latest/:deviceId", h.latestReading)
		ops.GET("/loadcell/logs/:deviceId", h.packingLogs)
		ops.POST("/commands/:deviceId", h.queueCommand)

		logs := ops.Group("/logs")
		{
			logs.PATCH("/:id/farmer", h.assignFarmer)
			logs.DELETE("/:id", h.deletePackingLog)
			logs.DELETE("/reset/:deviceId", h.resetDevice)
		}
	}
}

// operatorAuthMiddleware requires a valid operator bearer token.
func (h *Handler) operatorAuthMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	userID, err := h.services.ParseToken(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set("userId", userID)
	c.Next()
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
