package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/strdr1/telegram-bot-api-sub001/config"
)

// SetupRouter creates and configures the Gin router. metrics may be nil.
func SetupRouter(cfg *config.Config, handler *Handler, metrics http.Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	if metrics != nil && cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(metrics))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.Server.RatePerIP))
	{
		menu := v1.Group("/menu")
		{
			menu.GET("/status", handler.GetStatus)
			menu.GET("/categories", handler.ListCategories)
			menu.GET("/categories/resolve", handler.ResolveCategory)
			menu.GET("/dishes/search", handler.SearchDishes)
			menu.GET("/ai-context", handler.GetAIContext)
			menu.POST("/refresh", handler.RefreshMenus)
			menu.DELETE("/cache", handler.ClearCache)
		}
	}

	return router
}
