package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nidhogg/cardclusters/internal/card"
	"github.com/nidhogg/cardclusters/internal/config"
	"github.com/nidhogg/cardclusters/internal/graph"
	"github.com/nidhogg/cardclusters/internal/kv"
	"github.com/nidhogg/cardclusters/internal/pipeline"
	"github.com/nidhogg/cardclusters/internal/similarity"
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
	for _, w := range cfg.Validate() {
		logger.Warn("config", zap.String("warning", w))
	}

	selection := card.SelectAll
	if len(os.Args) > 1 {
		selection = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is the primary neighbour store; the run is pointless without it.
	rdb, err := kv.NewStore(cfg.Database.Redis.URL, cfg.Database.Redis.BatchSize, logger)
	if err != nil {
		logger.Fatal("Redis unavailable", zap.Error(err))
	}
	defer rdb.Close()
	sinks := []pipeline.Sink{rdb}

	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without run archive", zap.Error(pgErr))
		} else {
			defer ps.Close()
			if mErr := ps.Migrate(ctx, cfg.Database.Postgres.MigrationsDir); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			sinks = append(sinks, ps)
		}
	}

	if cfg.Database.Neo4j.URI != "" {
		gs, gErr := graph.NewStore(cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, logger)
		if gErr == nil {
			gErr = gs.Ping(ctx)
		}
		if gErr != nil {
			logger.Warn("Neo4j unavailable, running without graph export", zap.Error(gErr))
		} else {
			defer gs.Close(context.Background())
			sinks = append(sinks, gs)
		}
	}

	source := card.NewFileSource(cfg.Source.Path, logger)
	engine := similarity.NewEngine(cfg.EngineOptions(), logger)
	p := pipeline.New(source, engine, cfg.Similarity.TopK, logger, sinks...)

	res, err := p.Run(ctx, selection)
	if err != nil {
		logger.Fatal("run failed", zap.String("selection", selection), zap.Error(err))
	}
	logger.Info("Done",
		zap.String("run", res.RunID),
		zap.Int("cards", res.Cards.Len()),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
}
