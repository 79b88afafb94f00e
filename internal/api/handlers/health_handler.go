package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/wafwatch/internal/api/middleware"
	"github.com/Wikid82/wafwatch/internal/blacklist"
	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/services"
	"github.com/Wikid82/wafwatch/internal/version"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

type HealthHandler struct {
	history *services.RunHistoryService
	ledger  blacklist.Repository
}

func NewHealthHandler(history *services.RunHistoryService, ledger blacklist.Repository) *HealthHandler {
	return &HealthHandler{history: history, ledger: ledger}
}

type lastRun struct {
	UUID   string           `json:"uuid"`
	Mode   string           `json:"mode"`
	Status models.RunStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

type healthResponse struct {
	version.Info
	Status        string   `json:"status"`
	LastRun       *lastRun `json:"last_run"`
	BlacklistSize *int     `json:"blacklist_size"`
}

// Get always answers 200 so the process stays routable. The status reads
// degraded when the last run failed or the run history or ledger cannot be
// read.
func (h *HealthHandler) Get(c *gin.Context) {
	log := middleware.GetRequestLogger(c)
	resp := healthResponse{Status: healthOK, Info: version.Get()}

	runs, err := h.history.List(1)
	switch {
	case err != nil:
		log.WithError(err).Warn("health: failed to read run history")
		resp.Status = healthDegraded
	case len(runs) > 0:
		r := runs[0]
		resp.LastRun = &lastRun{UUID: r.UUID, Mode: r.Mode, Status: r.Status, Error: r.Error}
		if r.Status == models.RunStatusFailed {
			resp.Status = healthDegraded
		}
	}

	entries, err := h.ledger.Load(c.Request.Context())
	if err != nil {
		log.WithError(err).Warn("health: failed to load blacklist ledger")
		resp.Status = healthDegraded
	} else {
		n := len(entries)
		resp.BlacklistSize = &n
	}

	c.JSON(http.StatusOK, resp)
}
