package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"permit-service/internal/auth"
	"permit-service/internal/http/middleware"
	"permit-service/internal/model"
)

type RouterConfig struct {
	Environment string
	CORSOrigins []string
	// HealthCheck is optional; /healthz reports ok when it is nil.
	HealthCheck func(ctx context.Context) error
}

func NewRouter(handler *Handler, parser *auth.Parser, cfg RouterConfig, log zerolog.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.HealthCheck(ctx); err != nil {
				log.Warn().Err(err).Msg("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	public := api.Group("")
	public.Use(middleware.OptionalAuth(parser))
	{
		public.POST("/permits", handler.purchasePermit)
		public.GET("/permits/active", handler.activePermit)
		public.GET("/permits/code/:code", handler.permitByCode)
		public.GET("/zones", handler.listZones)
	}

	protected := api.Group("")
	protected.Use(middleware.Auth(parser))
	{
		protected.GET("/me/permits", handler.myPermits)
		protected.GET("/me/vehicles", handler.myVehicles)
		protected.PUT("/me/vehicles/:plate", handler.updateVehicle)
	}

	fiscal := protected.Group("/fiscal")
	fiscal.Use(middleware.RequireRoles(model.UserRoleFiscal, model.UserRoleManager, model.UserRoleAdmin))
	{
		fiscal.POST("/verify", handler.verifyPlate)
		fiscal.POST("/patrols", handler.recordPatrol)
		fiscal.GET("/actions", handler.listActions)
		fiscal.POST("/infringements", handler.registerInfringement)
		fiscal.GET("/infringements", handler.listInfringements)
		fiscal.GET("/infringements/:id", handler.getInfringement)
		fiscal.PUT("/infringements/:id/status", handler.updateInfringementStatus)
	}

	admin := protected.Group("")
	admin.Use(middleware.RequireRoles(model.UserRoleManager, model.UserRoleAdmin))
	{
		admin.POST("/zones", handler.createZone)
		admin.PUT("/zones/:id", handler.updateZone)
		admin.GET("/zones/:id/prices", handler.priceHistory)
		admin.GET("/zones/:id/prices/current", handler.currentPrice)
		admin.POST("/zones/:id/prices", handler.createPriceConfig)
		admin.PUT("/prices/:id", handler.updatePriceConfig)
		admin.DELETE("/prices/:id", handler.deletePriceConfig)
		admin.PUT("/permits/:id/status", handler.updatePermitStatus)
	}

	return router
}
