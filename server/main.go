package main

import (
	"context"
	"flag"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/config"
	"github.com/meikuraledutech/mlgraph/engine"
	"github.com/meikuraledutech/mlgraph/postgres"
	"github.com/meikuraledutech/mlgraph/session"
)

func main() {
	configPath := flag.String("config", "mlgraph.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	reg := algorithm.Default()
	if cfg.CatalogPath != "" {
		reg, err = algorithm.LoadFile(cfg.CatalogPath)
		if err != nil {
			logger.Fatal("load catalog", zap.String("path", cfg.CatalogPath), zap.Error(err))
		}
	}

	e := engine.New(reg, logger.Named("engine"))
	a := &api{
		engine:   e,
		sessions: session.NewManager(e, nil, logger.Named("session")),
		log:      logger,
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("connect", zap.Error(err))
		}
		defer pool.Close()

		a.store = postgres.New(pool, logger.Named("postgres"))
	} else {
		logger.Warn("DATABASE_URL is not set; workflows will not be persisted")
	}

	app := newApp(a)

	logger.Info("listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("environment", cfg.Environment),
		zap.Int("algorithms", len(reg.List())),
	)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}
