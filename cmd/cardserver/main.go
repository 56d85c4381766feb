package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/cardclusters/internal/api"
	"github.com/nidhogg/cardclusters/internal/config"
	"github.com/nidhogg/cardclusters/internal/kv"
	pgstore "github.com/nidhogg/cardclusters/internal/store"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/cardclusters.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot, _ := zap.NewDevelopment()
		boot.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger, err := config.NewLogger(cfg.Server.LogLevel)
	if err != nil {
		boot, _ := zap.NewDevelopment()
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	rdb, err := kv.NewStore(cfg.Database.Redis.URL, cfg.Database.Redis.BatchSize, logger)
	if err != nil {
		logger.Fatal("Redis unavailable", zap.Error(err))
	}

	// The run archive is optional; without it /runs answers 501.
	var archive api.Archive
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, serving without run archive", zap.Error(pgErr))
		} else {
			pgStore = ps
			archive = ps
		}
	}

	handler := api.NewHandler(rdb, archive, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("cardserver listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down cardserver...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	rdb.Close()
	if pgStore != nil {
		pgStore.Close()
	}
}
