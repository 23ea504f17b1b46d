package delivery

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"schedbot-backend/internal/negotiation/repository"
)

// NegotiationHandler serves read-only views of negotiation state
type NegotiationHandler struct {
	repo repository.NegotiationRepository
}

// NewNegotiationHandler creates a new NegotiationHandler
func NewNegotiationHandler(repo repository.NegotiationRepository) *NegotiationHandler {
	return &NegotiationHandler{repo: repo}
}

// ListNegotiations returns all negotiations, newest first
// GET /api/negotiations
func (h *NegotiationHandler) ListNegotiations(c *gin.Context) {
	negotiations, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"negotiations": negotiations,
		"total":        len(negotiations),
	})
}

// GetNegotiation returns one negotiation with its responses and thread
// GET /api/negotiations/:id
func (h *NegotiationHandler) GetNegotiation(c *gin.Context) {
	id := c.Param("id")

	n, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Negotiation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	thread, err := h.repo.Correspondence(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"negotiation": n,
		"thread":      thread,
	})
}

// APIKeyMiddleware rejects requests missing the configured X-API-Key header.
// An empty configured key disables the check.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey != "" && c.GetHeader("X-API-Key") != apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
