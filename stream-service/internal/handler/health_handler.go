package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/JimmyPiedrahita/netflis/pkg/response"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	version string
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// RegisterRoutes registers the health check routes.
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.handleHealth)
	r.GET("/healthz", h.handleHealth)
}

func (h *HealthHandler) handleHealth(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "ok",
		"service": "stream-service",
		"version": h.version,
	})
}

// cors lets browser players on other origins issue ranged reads.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Range")
		h.Set("Access-Control-Expose-Headers", "Accept-Ranges, Content-Length, Content-Range")
		c.Next()
	}
}
