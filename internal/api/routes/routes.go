package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Wikid82/wafwatch/internal/api/handlers"
	"github.com/Wikid82/wafwatch/internal/blacklist"
	"github.com/Wikid82/wafwatch/internal/services"
)

var ErrMissingDependency = errors.New("missing route dependency")

// Deps are the services exposed over HTTP. Gatherer defaults to the
// prometheus default registry.
type Deps struct {
	Ledger   blacklist.Repository
	History  *services.RunHistoryService
	Trigger  handlers.Trigger
	Gatherer prometheus.Gatherer
}

// Register wires up the status API and the metrics endpoint.
func Register(router *gin.Engine, deps Deps) error {
	if deps.Ledger == nil || deps.History == nil || deps.Trigger == nil {
		return ErrMissingDependency
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	healthHandler := handlers.NewHealthHandler(deps.History, deps.Ledger)
	router.GET("/api/v1/health", healthHandler.Get)

	api := router.Group("/api/v1")

	blacklistHandler := handlers.NewBlacklistHandler(deps.Ledger)
	api.GET("/blacklist", blacklistHandler.List)

	runHandler := handlers.NewRunHandler(deps.History, deps.Trigger)
	api.GET("/runs", runHandler.List)
	api.GET("/runs/:uuid", runHandler.Get)
	api.POST("/runs", runHandler.Create)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return nil
}
