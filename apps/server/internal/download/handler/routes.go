// Package handler exposes the download service over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/dirpack/apps/server/internal/download"
)

// Response headers set on successful downloads.
const (
	HeaderJobID       = "X-Dirpack-Job-Id"
	HeaderPartial     = "X-Dirpack-Partial"
	HeaderFailedPaths = "X-Dirpack-Failed-Paths"
)

// Handler translates HTTP requests into calls on the download.Service.
type Handler struct {
	svc *download.Service
	log *slog.Logger
}

// RegisterRoutes mounts the dirpack API onto the given Gin engine.
func RegisterRoutes(r *gin.Engine, svc *download.Service, log *slog.Logger) {
	h := &Handler{svc: svc, log: log}

	r.POST("/download", h.Download)
	r.GET("/health", h.Health)

	// Job history
	r.GET("/downloads", h.ListJobs)
	r.GET("/downloads/:id", h.GetJob)
}

// Health always reports healthy; it touches no dependencies.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
