package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/wafwatch/internal/analytics"
	"github.com/Wikid82/wafwatch/internal/api/middleware"
	"github.com/Wikid82/wafwatch/internal/blacklist"
	"github.com/Wikid82/wafwatch/internal/models"
)

type BlacklistHandler struct {
	ledger blacklist.Repository
	now    func() time.Time
}

func NewBlacklistHandler(ledger blacklist.Repository) *BlacklistHandler {
	return &BlacklistHandler{ledger: ledger, now: time.Now}
}

type blacklistResponse struct {
	Count   int                     `json:"count"`
	Entries []models.BlacklistEntry `json:"entries"`
}

// List returns the ledger. ?recent=true limits it to the last 24 hours.
func (h *BlacklistHandler) List(c *gin.Context) {
	entries, err := h.ledger.Load(c.Request.Context())
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("failed to load blacklist ledger")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load blacklist"})
		return
	}
	if c.Query("recent") == "true" {
		entries = analytics.RecentlyBlacklisted(entries, h.now(), analytics.RecentWindow)
	}
	if entries == nil {
		entries = []models.BlacklistEntry{}
	}
	c.JSON(http.StatusOK, blacklistResponse{Count: len(entries), Entries: entries})
}
