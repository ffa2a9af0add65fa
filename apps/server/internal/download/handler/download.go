package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/dirpack/apps/server/internal/download"
)

type downloadRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Download fetches the requested directory and streams it back as a zip.
// The archive is deleted once the response has been written.
func (h *Handler) Download(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	archive, err := h.svc.Download(c.Request.Context(), download.Request{URL: req.URL, Token: req.Token})
	if err != nil {
		code := download.StatusCode(err)
		if code >= http.StatusInternalServerError {
			h.log.Error("download failed", "url", req.URL, "status", code, "error", err)
		} else {
			h.log.Info("download rejected", "url", req.URL, "status", code, "error", err)
		}
		c.JSON(code, gin.H{"error": clientMessage(err)})
		return
	}
	defer func() { go h.svc.Discard(archive) }()

	c.Header(HeaderJobID, archive.JobID)
	if archive.Partial() {
		c.Header(HeaderPartial, "true")
		c.Header(HeaderFailedPaths, strconv.Itoa(len(archive.Result.Failures)))
	}
	c.Header("Content-Type", "application/zip")
	c.FileAttachment(archive.Path, archive.Filename)
}

// clientMessage hides internal failure details from callers.
func clientMessage(err error) string {
	var internal download.InternalError
	if errors.As(err, &internal) {
		return "internal server error"
	}
	return err.Error()
}
