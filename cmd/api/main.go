package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"sequential-trader/internal/api"
	"sequential-trader/internal/config"
	"sequential-trader/internal/logging"
	"sequential-trader/internal/storage"
)

func main() {
	creds := config.LoadCredentials()
	log := logging.New(logging.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Pretty: os.Getenv("API_ENV") != "production",
	})

	// Get configuration from environment
	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/runs.db"
	}
	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./web/dist"
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open run store")
	}
	defer store.Close()

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Options{
		Store:        store,
		Credentials:  creds,
		RegistryPath: os.Getenv("MARKET_REGISTRY_FILE"),
		PresetDir:    os.Getenv("CONFIG_DIR"),
		StaticDir:    staticDir,
		Log:          log,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("db", dbPath).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
