package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/lebanonrates/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *slog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/rates/usd", handler.GetUSDRate)
		v1.GET("/rates/eur", handler.GetEURRate)
		v1.GET("/fuel", handler.GetFuelPrices)
		v1.GET("/loto/latest", handler.GetLatestLotto)

		gold := v1.Group("/gold")
		{
			gold.GET("", handler.GetGold)
			gold.GET("/history", handler.GetGoldHistory)
		}
	}

	return router
}
