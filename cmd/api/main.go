package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"market-clearing/internal/api"
	"market-clearing/internal/clearing"
	"market-clearing/internal/config"
)

func main() {
	production := os.Getenv("API_ENV") == "production"
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if production {
		handler = slog.NewJSONHandler(os.Stdout, nil)
		gin.SetMode(gin.ReleaseMode)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	// Market settings come from CONFIG when set; areas in it are ignored
	// because every request carries its own resources.
	cc := clearing.DefaultConfig()
	if path := os.Getenv("CONFIG"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			slog.Error("config load failed", "path", path, "err", err)
			os.Exit(1)
		}
		if cc, err = cfg.Market.ToClearingConfig(); err != nil {
			slog.Error("invalid market config", "err", err)
			os.Exit(1)
		}
	}

	cacheTTL := time.Hour
	if s := os.Getenv("DATASET_CACHE_TTL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cacheTTL = d
		} else {
			slog.Warn("invalid DATASET_CACHE_TTL, using default", "value", s, "err", err)
		}
	}

	router := api.NewRouter(api.Options{
		Clearing:       cc,
		AreaDir:        envDir("AREA_DIR", filepath.Join("examples", "areas")),
		DataDir:        envDir("DATA_DIR", filepath.Join("examples", "data")),
		AllowedOrigins: os.Getenv("CORS_ORIGINS"),
		CacheTTL:       cacheTTL,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", port, "max_iterations", cc.MaxIterations, "on_failure", cc.Policy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down api...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
}

// envDir reads a directory from the environment, defaulting relative to the
// working directory.
func envDir(key, def string) string {
	dir := os.Getenv(key)
	if dir == "" {
		dir = def
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		slog.Warn("directory not found", "env", key, "dir", dir)
	}
	return dir
}
