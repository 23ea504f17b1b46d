package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schedbot-backend/internal/negotiation/delivery"
	"schedbot-backend/internal/negotiation/repository"
	"schedbot-backend/pkg/config"
)

// SetupRoutes wires the read-only status API
func SetupRoutes(r *gin.Engine, repo repository.NegotiationRepository, cfg *config.Config) {
	handler := delivery.NewNegotiationHandler(repo)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		negotiations := api.Group("/negotiations")
		negotiations.Use(delivery.APIKeyMiddleware(cfg.APIKey))
		{
			negotiations.GET("", handler.ListNegotiations)
			negotiations.GET("/:id", handler.GetNegotiation)
		}
	}
}
