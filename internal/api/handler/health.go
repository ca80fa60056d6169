package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RootMessage is returned by GET /.
const RootMessage = "Dirt to Meme Magic API. POST an image to /upload"

// HealthHandler handles health check endpoints
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Root describes the service.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": RootMessage,
	})
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
