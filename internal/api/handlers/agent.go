package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Fariz36/print-arkav/internal/queue"
)

const defaultAgentID = "default-agent"

type AgentHandler struct {
	queue *queue.Queue
}

func NewAgentHandler(q *queue.Queue) *AgentHandler {
	return &AgentHandler{queue: q}
}

type FailJobRequest struct {
	Reason string `json:"reason"`
}

// NextJob atomically hands the oldest pending job to the polling agent. An
// empty queue is a normal answer, not an error.
func (h *AgentHandler) NextJob(c *gin.Context) {
	agentID := strings.TrimSpace(c.Query("agent_id"))
	if agentID == "" {
		agentID = defaultAgentID
	}

	job, err := h.queue.Claim(c.Request.Context(), agentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to claim job"})
		return
	}
	if job == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "job": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"job": gin.H{
			"id":           job.ID,
			"filename":     job.OriginalName,
			"ext":          job.Ext,
			"requested_by": job.RequestedBy,
			"download_url": fmt.Sprintf("/api/agent/jobs/%d/download", job.ID),
		},
	})
}

func (h *AgentHandler) Download(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.queue.Payload(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, queue.ErrPayloadGone):
			c.JSON(http.StatusGone, gin.H{"error": "job file missing"})
		case errors.Is(err, queue.ErrNotDownloadable):
			c.JSON(http.StatusConflict, gin.H{"error": "job is not downloadable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch payload"})
		}
		return
	}

	c.FileAttachment(job.FilePath, job.OriginalName)
}

func (h *AgentHandler) MarkDone(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	status, err := h.queue.Complete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

func (h *AgentHandler) MarkFailed(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	var req FailJobRequest
	c.ShouldBindJSON(&req) // body is optional

	status, err := h.queue.Fail(c.Request.Context(), id, req.Reason)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record failure"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

func (h *AgentHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs/next", h.NextJob)
	r.GET("/jobs/:id/download", h.Download)
	r.POST("/jobs/:id/done", h.MarkDone)
	r.POST("/jobs/:id/failed", h.MarkFailed)
}
