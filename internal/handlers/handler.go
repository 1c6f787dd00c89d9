package handlers

import (
	"net/http"

	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	metrics  http.Handler
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. metrics may be
// nil, in which case /metrics is not served.
func NewHandler(services *service.Service, metrics http.Handler, log *logger.Logger) *Handler {
	return &Handler{services: services, metrics: metrics, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// live status stream (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorIdMiddleware)
	{
		api.GET("/status", h.getStatus)
		h.registerPumpRoutes(api)
		h.registerTankRoutes(api)
		h.registerEmergencyRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerPumpRoutes(api *gin.RouterGroup) {
	pumps := api.Group("/pumps")
	{
		pumps.GET("", h.listPumps)
		pumps.GET("/:id", h.getPump)
		// ?type=fill
		pumps.GET("/:id/can-start", h.canStartPump)
		pumps.GET("/:id/runtime", h.checkRuntime)
		// Body example: {"type":"fill","mode":"run"}
		pumps.POST("/:id/start", h.startPump)
		pumps.POST("/:id/stop", h.stopPump)
		pumps.POST("/:id/oscillation/check", h.checkOscillation)
		pumps.POST("/:id/oscillation/reset", h.resetOscillation)
		pumps.POST("/:id/calibrate", h.calibratePump)
		pumps.POST("/:id/fault", h.markFault)
		pumps.DELETE("/:id/fault", h.clearFault)
		pumps.POST("/:id/maintenance", h.enterMaintenance)
		pumps.DELETE("/:id/maintenance", h.completeMaintenance)
	}
}

func (h *Handler) registerTankRoutes(api *gin.RouterGroup) {
	tanks := api.Group("/tanks")
	{
		tanks.GET("", h.listTanks)
		tanks.GET("/stats", h.tankStats)
		tanks.GET("/:id", h.getTank)
		tanks.GET("/:id/history", h.tankHistory)
		tanks.POST("/:id/calibrate", h.calibrateTank)
	}
}

func (h *Handler) registerEmergencyRoutes(api *gin.RouterGroup) {
	em := api.Group("/emergency")
	{
		em.GET("", h.getEmergency)
		em.POST("", h.triggerEmergency)
		em.POST("/reset", h.resetEmergency)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
		logs.GET("/recent", h.recentEvents)
	}
}
