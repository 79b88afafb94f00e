package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/wafwatch/internal/api/middleware"
	"github.com/Wikid82/wafwatch/internal/services"
)

const defaultRunsLimit = 50

// Trigger starts a run in the background.
type Trigger interface {
	RunAsync(mode services.Mode) error
}

type RunHandler struct {
	history *services.RunHistoryService
	trigger Trigger
}

func NewRunHandler(history *services.RunHistoryService, trigger Trigger) *RunHandler {
	return &RunHandler{history: history, trigger: trigger}
}

func (h *RunHandler) List(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	runs, err := h.history.List(limit)
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (h *RunHandler) Get(c *gin.Context) {
	rec, err := h.history.Get(c.Param("uuid"))
	if errors.Is(err, services.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("failed to load run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type triggerRequest struct {
	Mode string `json:"mode"`
}

// Create starts a run. The body is optional and defaults to auto mode.
func (h *RunHandler) Create(c *gin.Context) {
	var req triggerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	mode, err := services.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.trigger.RunAsync(mode); err != nil {
		if errors.Is(err, services.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "A run is already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start run"})
		return
	}
	middleware.GetRequestLogger(c).WithField("mode", mode).Info("run triggered")
	c.JSON(http.StatusAccepted, gin.H{"message": "Run started", "mode": mode})
}
