package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultJobLimit = 20

// ListJobs returns recent download jobs, newest first.
func (h *Handler) ListJobs(c *gin.Context) {
	limit := defaultJobLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	jobs, err := h.svc.Jobs(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("list jobs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// GetJob returns one job record.
func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")
	job, err := h.svc.Job(c.Request.Context(), id)
	if err != nil {
		h.log.Error("get job failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}
