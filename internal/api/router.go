// Package api wires the HTTP handlers into a gin router.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"market-clearing/internal/api/handlers"
	"market-clearing/internal/api/middleware"
	"market-clearing/internal/clearing"
	"market-clearing/internal/data"
	"market-clearing/internal/metrics"
)

type Options struct {
	Clearing       clearing.Config
	AreaDir        string
	DataDir        string
	AllowedOrigins string
	CacheTTL       time.Duration
	Logger         *slog.Logger
}

func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.ErrorHandler(logger))

	clearingHandler := handlers.NewClearingHandler(opts.Clearing, logger)
	curveHandler := handlers.NewCurveHandler(opts.Clearing.Curve, logger)
	areaHandler := handlers.NewAreaHandler(opts.AreaDir, opts.Clearing, logger)
	replayHandler := handlers.NewReplayHandler(opts.DataDir, data.NewDatasetCache(opts.CacheTTL), opts.Clearing, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/clear", clearingHandler.Clear)
		api.POST("/curve", curveHandler.BuildCurve)

		api.GET("/areas", areaHandler.ListAreas)
		api.GET("/areas/:id/curve", areaHandler.SupplyCurve)
		api.GET("/coordinators", handlers.ListCoordinators)

		api.GET("/datasets", replayHandler.ListDatasets)
		api.POST("/replay", replayHandler.RunReplay)
		api.GET("/replay/:id/ledger", replayHandler.GetLedger)
		api.GET("/rank", replayHandler.RankAreas)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return router
}
