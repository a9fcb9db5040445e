// Package app wires the batch process together: config, database, cache,
// repositories and the pipeline itself.
package app

import (
	"context"
	"log/slog"
	"time"

	"empleo-dw/internal/config"
	"empleo-dw/internal/database"
	dbpostgres "empleo-dw/internal/database/postgres"
	"empleo-dw/internal/extract"
	"empleo-dw/internal/infrastructure/cache"
	"empleo-dw/internal/loader"
	"empleo-dw/internal/pipeline"
	"empleo-dw/internal/repository"
)

type Container struct {
	Config config.Config
	DB     database.DB
	Cache  *cache.Redis
	Batch  *pipeline.Batch
}

func NewContainer(cfg config.Config, log *slog.Logger) (*Container, error) {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	redisCache := cache.NewRedis(cfg.Redis, log)

	registryRepo := repository.NewPostgresKeyRegistryRepository(db, redisCache)
	runRepo := repository.NewPostgresRunRepository(db)
	warehouseRepo := repository.NewPostgresWarehouseRepository()

	ld := loader.New(db, warehouseRepo, cfg.ETL, log)
	extractor := extract.NewExtractor(cfg.ETL.DataDir, log)
	batch := pipeline.NewBatch(cfg.ETL, extractor, registryRepo, runRepo, ld, log)

	return &Container{
		Config: cfg,
		DB:     db,
		Cache:  redisCache,
		Batch:  batch,
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
