package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sequential-trader/internal/api/handlers"
	"sequential-trader/internal/api/middleware"
	"sequential-trader/internal/api/models"
	"sequential-trader/internal/config"
	"sequential-trader/internal/storage"
)

// Options configures the HTTP router.
type Options struct {
	Store        *storage.RunStore
	Credentials  config.Credentials
	RegistryPath string
	PresetDir    string
	Log          zerolog.Logger

	// StaticDir, when it exists, is served as a single page app.
	StaticDir string
}

// NewRouter builds the gin engine with every API route.
func NewRouter(opts Options) *gin.Engine {
	router := gin.New()

	router.Use(middleware.CORS())
	router.Use(middleware.Logger(opts.Log))
	router.Use(middleware.ErrorHandler(opts.Log))

	backtestHandler := handlers.NewBacktestHandler(opts.Store, opts.Credentials, opts.Log)
	runsHandler := handlers.NewRunsHandler(opts.Store, opts.Log)
	marketsHandler := handlers.NewMarketsHandler(opts.RegistryPath)
	presetHandler := handlers.NewPresetHandler(opts.PresetDir, opts.Log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/backtest", backtestHandler.RunBacktest)
		api.GET("/backtest/:id/ledger", backtestHandler.GetLedger)
		api.POST("/backtest/compare", backtestHandler.CompareBacktests)

		api.GET("/runs", runsHandler.ListRuns)
		api.GET("/runs/rank", runsHandler.RankRuns)

		api.GET("/agents", handlers.ListAgents)
		api.GET("/markets", marketsHandler.ListMarkets)
		api.GET("/presets", presetHandler.ListPresets)
	}

	serveStatic(router, opts.StaticDir, opts.Log)
	return router
}

func serveStatic(router *gin.Engine, staticDir string, log zerolog.Logger) {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "NOT_FOUND", Message: "Not found"},
		})
	}

	if staticDir == "" {
		router.NoRoute(notFound)
		return
	}
	if _, err := os.Stat(staticDir); err != nil {
		log.Info().Str("dir", staticDir).Msg("Static directory not found, skipping static file serving")
		router.NoRoute(notFound)
		return
	}

	router.Static("/assets", filepath.Join(staticDir, "assets"))
	router.StaticFile("/favicon.ico", filepath.Join(staticDir, "favicon.ico"))

	// Everything outside /api falls through to the SPA
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			notFound(c)
			return
		}
		c.File(filepath.Join(staticDir, "index.html"))
	})
	log.Info().Str("dir", staticDir).Msg("Serving static files")
}
