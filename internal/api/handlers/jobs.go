package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Fariz36/print-arkav/internal/db"
	"github.com/Fariz36/print-arkav/internal/queue"
)

type JobHandler struct {
	queue *queue.Queue
	users *db.UserOperations
}

func NewJobHandler(q *queue.Queue, users *db.UserOperations) *JobHandler {
	return &JobHandler{queue: q, users: users}
}

// requesterTeam resolves the team the authenticated user acts for. Accounts
// without an explicit team fall back to their username.
func (h *JobHandler) requesterTeam(c *gin.Context) string {
	username := c.GetString("username")
	if user, err := h.users.GetUserByUsername(c.Request.Context(), username); err == nil {
		return user.Team()
	}
	return username
}

func (h *JobHandler) Upload(c *gin.Context) {
	team := h.requesterTeam(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'file' is required"})
		return
	}
	if fileHeader.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is empty"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer src.Close()

	job, err := h.queue.Submit(c.Request.Context(), team, fileHeader.Filename, fileHeader.Size, src)
	if err != nil {
		var verr *queue.ValidationError
		switch {
		case errors.Is(err, queue.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit job"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"ok":           true,
		"job_id":       job.ID,
		"filename":     job.OriginalName,
		"status":       job.Status,
		"requested_by": job.RequestedBy,
	})
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	jobs, err := h.queue.ListForTeam(c.Request.Context(), h.requesterTeam(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	if jobs == nil {
		jobs = make([]*db.Job, 0)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "jobs": jobs})
}

// GetQueue reports how deep the shared queue is, so teams can see how many
// jobs sit ahead of theirs before walking to the printer.
func (h *JobHandler) GetQueue(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get queue stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "queue": stats})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.queue.GetForTeam(c.Request.Context(), h.requesterTeam(c), id)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "job": job})
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/upload", h.Upload)
	r.GET("/jobs", h.ListJobs)
	r.GET("/jobs/queue", h.GetQueue)
	r.GET("/jobs/:id", h.GetJob)
}
