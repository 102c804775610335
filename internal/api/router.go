package api

import (
	"orderbridge/internal/metrics"
	"orderbridge/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(h *SyncHandler, rdb *redis.Client, jwtSecret string, requestsPerSecond int, env string) *gin.Engine {
	r := gin.New()

	// Global Middleware
	r.Use(
		middleware.CorsMiddleware(),
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
		middleware.TraceMiddleware(),
	)
	r.SetTrustedProxies(nil)

	// Public Routes
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Protected Routes (operator surface)
	// Enable Dev-Pass=true for debugging
	devMode := env != "prod"
	protected := r.Group("/v1")
	protected.Use(middleware.JWTMiddleware([]byte(jwtSecret), devMode))

	// Rate Limiter for Write Operations
	writeLimiter := middleware.RateLimitMiddleware(rdb, requestsPerSecond)

	{
		protected.POST("/orders/:id/sync", writeLimiter, h.SyncOrder)
		protected.GET("/pending", h.ListPending)
		protected.GET("/deadletters", h.ListDeadLetters)
		protected.POST("/sweeps/retry", writeLimiter, h.TriggerRetrySweep)
		protected.POST("/sweeps/status/downstream", writeLimiter, h.TriggerDownstreamSweep)
		protected.POST("/sweeps/status/upstream", writeLimiter, h.TriggerUpstreamSweep)
	}
	return r
}
